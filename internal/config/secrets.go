package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Secrets are credentials and CI context read from the environment only.
type Secrets struct {
	GitHubToken string
	// Repository is owner/repo from GITHUB_REPOSITORY.
	Repository string
	// PRNumber is from GITHUB_EVENT_NUMBER; zero when unset.
	PRNumber int
}

// LoadSecrets reads the environment. An unparsable PR number is an error.
// Provider API keys are resolved by the provider clients themselves.
func LoadSecrets() (Secrets, error) {
	s := Secrets{
		GitHubToken: os.Getenv("GITHUB_TOKEN"),
		Repository:  strings.TrimSpace(os.Getenv("GITHUB_REPOSITORY")),
	}
	if v := strings.TrimSpace(os.Getenv("GITHUB_EVENT_NUMBER")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Secrets{}, &Error{Key: "GITHUB_EVENT_NUMBER", Value: v, Err: errors.New("must be a pull request number")}
		}
		s.PRNumber = n
	}
	return s, nil
}
