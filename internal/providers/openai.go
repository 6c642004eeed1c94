package providers

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI calls the chat completions API through go-openai.
type OpenAI struct {
	model  string
	retry  Policy
	client *openai.Client
	opts   Options
}

// NewOpenAI creates an OpenAI client. The key comes from opts or
// OPENAI_API_KEY; BaseURL points it at any compatible endpoint.
func NewOpenAI(model string, opts Options) (*OpenAI, error) {
	key, err := opts.key("OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	cfg := openai.DefaultConfig(key)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	cfg.HTTPClient = opts.httpClient()
	return &OpenAI{
		model:  model,
		retry:  opts.Retry,
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	chatReq := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		MaxCompletionTokens: maxTokens,
		Temperature:         float32(req.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var resp Response
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		result, err := o.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return fmt.Errorf("chat completion: %w", err)
		}
		if len(result.Choices) == 0 {
			return errors.New("no choices in response")
		}
		if result.Choices[0].Message.Content == "" {
			return errors.New("empty text content in API response")
		}
		resp = Response{
			Content:    result.Choices[0].Message.Content,
			TokensUsed: result.Usage.TotalTokens,
		}
		return nil
	}, o.opts.logRetry(o.Name()))

	return resp, err
}
