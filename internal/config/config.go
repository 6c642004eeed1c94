package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dshills/prrisk/internal/redact"
	"github.com/dshills/prrisk/internal/review"
)

// DefaultPath is the repository-local config file.
const DefaultPath = ".prrisk.yml"

// Config is the complete prrisk configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Comment  CommentConfig  `yaml:"comment"`
	AI       AIConfig       `yaml:"ai"`
	Privacy  PrivacyConfig  `yaml:"privacy"`
	GitHub   GitHubConfig   `yaml:"github"`
	Run      RunConfig      `yaml:"run"`
}

// AnalysisConfig bounds the analyzed file set and gates rule categories.
type AnalysisConfig struct {
	MaxFiles             int  `yaml:"max_files" validate:"gte=1"`
	MaxDiffLines         int  `yaml:"max_diff_lines" validate:"gte=100"`
	EnableSecurity       bool `yaml:"enable_security"`
	EnablePerformance    bool `yaml:"enable_performance"`
	EnableBreakingChange bool `yaml:"enable_breaking_change"`
	EnableTestCoverage   bool `yaml:"enable_test_coverage"`
	// CoverageMinChanges is the changed-line threshold of the missing
	// test heuristic.
	CoverageMinChanges int `yaml:"coverage_min_changes" validate:"gte=1"`
	// Workers bounds parallel file scans. Zero means one per file.
	Workers int `yaml:"workers" validate:"gte=0,lte=256"`
}

// CommentConfig selects what the published comment contains.
type CommentConfig struct {
	IncludeSummary   bool `yaml:"include_summary"`
	IncludeKeyFiles  bool `yaml:"include_key_files"`
	IncludeRisks     bool `yaml:"include_risks"`
	IncludeChecklist bool `yaml:"include_checklist"`
	CollapseFileList bool `yaml:"collapse_file_list"`
	MaxKeyFiles      int  `yaml:"max_key_files" validate:"gte=1,lte=100"`
	// MaxFindingsPerCategory caps listed findings per category; 0 lists all.
	MaxFindingsPerCategory int `yaml:"max_findings_per_category" validate:"gte=0"`
	// MaxBodyBytes keeps the comment under the platform's body limit.
	MaxBodyBytes int `yaml:"max_body_bytes" validate:"gte=1000,lte=65000"`
	// MarkerKey distinguishes comments of separately configured workflows.
	MarkerKey string `yaml:"marker_key" validate:"required"`
}

// AIConfig configures the language model pass.
type AIConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Provider        string        `yaml:"provider" validate:"oneof=anthropic openai"`
	Model           string        `yaml:"model" validate:"required"`
	BaseURL         string        `yaml:"base_url,omitempty" validate:"omitempty,url"`
	MaxTokens       int           `yaml:"max_tokens" validate:"gte=100,lte=8192"`
	Temperature     float64       `yaml:"temperature" validate:"gte=0,lte=1"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries      int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	MaxContextBytes int           `yaml:"max_context_bytes" validate:"gte=1000"`
	MaxFiles        int           `yaml:"max_files" validate:"gte=1"`
	MaxLinesPerFile int           `yaml:"max_lines_per_file" validate:"gte=10"`
	// ShareFindings passes pattern findings to the model, which runs the
	// two analyses one after the other instead of concurrently.
	ShareFindings bool        `yaml:"share_pattern_findings"`
	Cache         CacheConfig `yaml:"cache"`
}

// CacheConfig controls the on-disk AI response cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// Dir defaults to the per-user cache directory.
	Dir string        `yaml:"dir,omitempty"`
	TTL time.Duration `yaml:"ttl" validate:"gte=0"`
}

// PrivacyConfig controls redaction of content sent to the model.
type PrivacyConfig struct {
	RedactSecrets bool     `yaml:"redact_secrets"`
	RedactPaths   []string `yaml:"redact_paths,omitempty"`
}

// GitHubConfig configures the platform client.
type GitHubConfig struct {
	APIURL            string  `yaml:"api_url,omitempty" validate:"omitempty,url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
}

// RunConfig bounds a whole run.
type RunConfig struct {
	Budget time.Duration `yaml:"budget" validate:"gt=0"`
	FailOn string        `yaml:"fail_on" validate:"oneof=none low medium high"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Analysis: AnalysisConfig{
			MaxFiles:             50,
			MaxDiffLines:         1000,
			EnableSecurity:       true,
			EnablePerformance:    true,
			EnableBreakingChange: true,
			EnableTestCoverage:   true,
			CoverageMinChanges:   10,
		},
		Comment: CommentConfig{
			IncludeSummary:   true,
			IncludeKeyFiles:  true,
			IncludeRisks:     true,
			IncludeChecklist: true,
			CollapseFileList: true,
			MaxKeyFiles:      10,
			MarkerKey:        "pr-risk-analysis",

			MaxFindingsPerCategory: 25,
			MaxBodyBytes:           60000,
		},
		AI: AIConfig{
			Enabled:         true,
			Provider:        "anthropic",
			Model:           "claude-sonnet-4-5-20250929",
			MaxTokens:       4096,
			Temperature:     0.3,
			Timeout:         90 * time.Second,
			MaxRetries:      3,
			MaxContextBytes: 100_000,
			MaxFiles:        20,
			MaxLinesPerFile: 400,
			Cache:           CacheConfig{TTL: 24 * time.Hour},
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   append([]string(nil), redact.DefaultPaths...),
		},
		GitHub: GitHubConfig{
			RequestsPerSecond: 10,
		},
		Run: RunConfig{
			Budget: 300 * time.Second,
			FailOn: "none",
		},
	}
}

// EnabledCategories maps each category to its enable flag.
func (a AnalysisConfig) EnabledCategories() map[review.Category]bool {
	return map[review.Category]bool{
		review.CategorySecurity:       a.EnableSecurity,
		review.CategoryPerformance:    a.EnablePerformance,
		review.CategoryBreakingChange: a.EnableBreakingChange,
		review.CategoryTestCoverage:   a.EnableTestCoverage,
	}
}

// Error is a configuration value that cannot be used.
type Error struct {
	Key   string
	Value string
	Err   error
}

func (e *Error) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("config %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	configValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return &Error{Key: key, Value: fmt.Sprint(fe.Value()), Err: fmt.Errorf("must satisfy %s", rule)}
}

// ResolvePath picks the config file: explicit path, then PRRISK_CONFIG,
// then DefaultPath. explicit reports whether the file must exist.
func ResolvePath(path string) (resolved string, explicit bool) {
	if path != "" {
		return path, true
	}
	if env := os.Getenv("PRRISK_CONFIG"); env != "" {
		return env, true
	}
	return DefaultPath, false
}

// LoadFile decodes a YAML file over cfg. A missing implicit file is not an
// error.
func LoadFile(cfg *Config, path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return &Error{Key: "file", Value: path, Err: err}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &Error{Key: "file", Value: path, Err: fmt.Errorf("parsing YAML: %w", err)}
	}
	return nil
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// Override keys are the dotted YAML paths accepted by SetField.
func Load(path string, overrides map[string]string) (Config, error) {
	cfg := Default()

	resolved, explicit := ResolvePath(path)
	if err := LoadFile(&cfg, resolved, explicit); err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKeys maps environment variables to SetField keys.
var envKeys = []struct{ env, key string }{
	{"PRRISK_MAX_FILES", "analysis.max_files"},
	{"PRRISK_MAX_DIFF_LINES", "analysis.max_diff_lines"},
	{"PRRISK_ENABLE_SECURITY", "analysis.enable_security"},
	{"PRRISK_ENABLE_PERFORMANCE", "analysis.enable_performance"},
	{"PRRISK_ENABLE_BREAKING", "analysis.enable_breaking_change"},
	{"PRRISK_ENABLE_TEST_COVERAGE", "analysis.enable_test_coverage"},
	{"PRRISK_AI_ENABLED", "ai.enabled"},
	{"PRRISK_AI_PROVIDER", "ai.provider"},
	{"PRRISK_AI_MODEL", "ai.model"},
	{"PRRISK_AI_TIMEOUT", "ai.timeout"},
	{"PRRISK_AI_CACHE", "ai.cache.enabled"},
	{"PRRISK_AI_CACHE_DIR", "ai.cache.dir"},
	{"PRRISK_RUN_BUDGET", "run.budget"},
	{"PRRISK_FAIL_ON", "run.fail_on"},
}

func mergeEnv(cfg *Config) error {
	for _, e := range envKeys {
		v, ok := os.LookupEnv(e.env)
		if !ok || v == "" {
			continue
		}
		if err := SetField(cfg, e.key, v); err != nil {
			var cerr *Error
			if errors.As(err, &cerr) {
				cerr.Key = e.env
			}
			return err
		}
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if overrides[k] == "" {
			continue
		}
		if err := SetField(cfg, k, overrides[k]); err != nil {
			return err
		}
	}
	return nil
}

// SetField sets a single config field by its dotted YAML key.
func SetField(cfg *Config, key, value string) error {
	bad := func(err error) error { return &Error{Key: key, Value: value, Err: err} }
	setInt := func(dst *int) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return bad(errors.New("must be an integer"))
		}
		*dst = n
		return nil
	}
	setBool := func(dst *bool) error {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return bad(errors.New("must be true or false"))
		}
		*dst = b
		return nil
	}
	setDuration := func(dst *time.Duration) error {
		d, err := parseDuration(value)
		if err != nil {
			return bad(err)
		}
		*dst = d
		return nil
	}

	switch key {
	case "analysis.max_files":
		return setInt(&cfg.Analysis.MaxFiles)
	case "analysis.max_diff_lines":
		return setInt(&cfg.Analysis.MaxDiffLines)
	case "analysis.enable_security":
		return setBool(&cfg.Analysis.EnableSecurity)
	case "analysis.enable_performance":
		return setBool(&cfg.Analysis.EnablePerformance)
	case "analysis.enable_breaking_change":
		return setBool(&cfg.Analysis.EnableBreakingChange)
	case "analysis.enable_test_coverage":
		return setBool(&cfg.Analysis.EnableTestCoverage)
	case "analysis.workers":
		return setInt(&cfg.Analysis.Workers)
	case "ai.enabled":
		return setBool(&cfg.AI.Enabled)
	case "ai.provider":
		cfg.AI.Provider = strings.ToLower(strings.TrimSpace(value))
	case "ai.model":
		cfg.AI.Model = strings.TrimSpace(value)
	case "ai.timeout":
		return setDuration(&cfg.AI.Timeout)
	case "ai.share_pattern_findings":
		return setBool(&cfg.AI.ShareFindings)
	case "ai.cache.enabled":
		return setBool(&cfg.AI.Cache.Enabled)
	case "ai.cache.dir":
		cfg.AI.Cache.Dir = strings.TrimSpace(value)
	case "ai.cache.ttl":
		return setDuration(&cfg.AI.Cache.TTL)
	case "comment.max_findings_per_category":
		return setInt(&cfg.Comment.MaxFindingsPerCategory)
	case "comment.max_body_bytes":
		return setInt(&cfg.Comment.MaxBodyBytes)
	case "comment.marker_key":
		cfg.Comment.MarkerKey = value
	case "run.budget":
		return setDuration(&cfg.Run.Budget)
	case "run.fail_on":
		cfg.Run.FailOn = strings.ToLower(strings.TrimSpace(value))
	default:
		return &Error{Key: key, Err: errors.New("unknown config key")}
	}
	return nil
}

// parseDuration accepts Go duration syntax or a plain number of seconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.New("must be a duration such as 90s or 5m")
	}
	return d, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// Init writes the default configuration to path. It refuses to replace an
// existing file unless force is set.
func Init(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := Marshal(Default())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
