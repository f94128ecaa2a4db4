package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/concept2video/internal/analyzer"
	"github.com/ivlev/concept2video/internal/director"
)

// Config is the full service configuration. Zero values in a YAML file keep
// the defaults from Default.
type Config struct {
	WorkRoot          string        `yaml:"work_root"`
	RetainWorkDirs    bool          `yaml:"retain_work_dirs"`
	GenerationRetries int           `yaml:"generation_retries"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	Preview           bool          `yaml:"preview"`
	PreviewWidth      int           `yaml:"preview_width"`
	BatchWorkers      int           `yaml:"batch_workers"` // 0 sizes from the host

	Defaults   Options             `yaml:"defaults"`
	Classifier string              `yaml:"classifier"`
	Thresholds analyzer.Thresholds `yaml:"thresholds"`
	Animation  director.Tuning     `yaml:"animation"`

	Engine   EngineConfig   `yaml:"engine"`
	Provider ProviderConfig `yaml:"provider"`
	Video    VideoConfig    `yaml:"video"`
	Log      LogConfig      `yaml:"log"`

	DatabaseURL string `yaml:"database_url"`
	AMQPURL     string `yaml:"amqp_url"`
	Queue       string `yaml:"queue"`
	HTTPAddr    string `yaml:"http_addr"`
	OutputRoot  string `yaml:"output_root"` // HTTP job outputs are confined here
}

// EngineConfig describes the external 3D engine invocation. Each stage runs
//
//	<binary> <args...> -- --stage convert|animate|render --input ... --output ...
//
// The default args load scripts/engine.py, the engine-side stage script.
// It is not part of this module and must be installed at that path, or
// args pointed at wherever it lives.
type EngineConfig struct {
	Binary         string        `yaml:"binary"`
	Args           []string      `yaml:"args"`
	ConvertTimeout time.Duration `yaml:"convert_timeout"`
	AnimateTimeout time.Duration `yaml:"animate_timeout"`
	RenderTimeout  time.Duration `yaml:"render_timeout"`
}

// ProviderConfig selects and configures text-generation backends.
type ProviderConfig struct {
	Default   string        `yaml:"default"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
	Anthropic Endpoint      `yaml:"anthropic"`
	OpenAI    Endpoint      `yaml:"openai"`
	Ollama    Endpoint      `yaml:"ollama"`
	StaticSVG string        `yaml:"static_svg"` // file served by the static provider
}

// Endpoint is one HTTP model API.
type Endpoint struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
}

// VideoConfig controls how the rendered file is published.
type VideoConfig struct {
	Transcode bool    `yaml:"transcode"`
	FFmpeg    string  `yaml:"ffmpeg"`
	Encoder   string  `yaml:"encoder"` // empty probes for the best H.264 encoder
	Quality   int     `yaml:"quality"` // CRF for libx264, CQ for nvenc, bitrate/100k for videotoolbox
	Effect    string  `yaml:"effect"`  // none, fade
	FadeSec   float64 `yaml:"fade_seconds"`
	AudioPath string  `yaml:"audio"`
}

// Scripts returns the script files named after --python in Args.
func (e EngineConfig) Scripts() []string {
	var out []string
	for i := 0; i+1 < len(e.Args); i++ {
		if e.Args[i] == "--python" {
			out = append(out, e.Args[i+1])
		}
	}
	return out
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		WorkRoot:          filepath.Join(os.TempDir(), "concept2video"),
		GenerationRetries: 2,
		RetryBackoff:      time.Second,
		PreviewWidth:      480,
		Defaults:          DefaultOptions(),
		Classifier:        "geometry",
		Thresholds:        analyzer.DefaultThresholds(),
		Animation:         director.DefaultTuning(),
		Engine: EngineConfig{
			Binary:         "blender",
			Args:           []string{"--background", "--factory-startup", "--python", "scripts/engine.py"},
			ConvertTimeout: 2 * time.Minute,
			AnimateTimeout: 2 * time.Minute,
			RenderTimeout:  30 * time.Minute,
		},
		Provider: ProviderConfig{
			Default:   "anthropic",
			Timeout:   90 * time.Second,
			MaxTokens: 4096,
			Anthropic: Endpoint{BaseURL: "https://api.anthropic.com", Model: "claude-sonnet-4-5"},
			OpenAI:    Endpoint{BaseURL: "https://api.openai.com", Model: "gpt-4o"},
			Ollama:    Endpoint{BaseURL: "http://localhost:11434", Model: "llama3.1"},
		},
		Video: VideoConfig{
			FFmpeg:  "ffmpeg",
			Quality: 23,
			Effect:  "none",
			FadeSec: 0.5,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "json",
		},
		Queue:      "concept2video.jobs",
		HTTPAddr:   ":8080",
		OutputRoot: "output",
	}
}

// Load reads path over the defaults (an empty path skips the file), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings from the environment. Variable names follow
// the usual service conventions where one exists.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := map[string]*string{
		"C2V_WORK_ROOT":     &c.WorkRoot,
		"C2V_ENGINE_BINARY": &c.Engine.Binary,
		"C2V_PROVIDER":      &c.Provider.Default,
		"C2V_HTTP_ADDR":     &c.HTTPAddr,
		"C2V_OUTPUT_ROOT":   &c.OutputRoot,
		"C2V_QUEUE":         &c.Queue,
		"C2V_FFMPEG":        &c.Video.FFmpeg,
		"DB_URL":            &c.DatabaseURL,
		"RABBITMQ_URL":      &c.AMQPURL,
		"ANTHROPIC_API_KEY": &c.Provider.Anthropic.APIKey,
		"OPENAI_API_KEY":    &c.Provider.OpenAI.APIKey,
		"OLLAMA_HOST":       &c.Provider.Ollama.BaseURL,
		"LOG_LEVEL":         &c.Log.Level,
		"LOG_FORMAT":        &c.Log.Format,
	}
	for key, dst := range str {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv("C2V_RETAIN_WORKDIRS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("C2V_RETAIN_WORKDIRS: %w", err)
		}
		c.RetainWorkDirs = b
	}
	if v := getenv("C2V_GENERATION_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("C2V_GENERATION_RETRIES: %w", err)
		}
		c.GenerationRetries = n
	}
	if v := getenv("C2V_RENDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("C2V_RENDER_TIMEOUT: %w", err)
		}
		c.Engine.RenderTimeout = d
	}
	return nil
}

// Validate checks the settings that cannot be repaired by defaults.
func (c *Config) Validate() error {
	var errs []error
	if c.WorkRoot == "" {
		errs = append(errs, errors.New("work_root is required"))
	}
	if c.OutputRoot == "" {
		errs = append(errs, errors.New("output_root is required"))
	}
	if c.Engine.Binary == "" {
		errs = append(errs, errors.New("engine.binary is required"))
	}
	if c.GenerationRetries < 0 {
		errs = append(errs, fmt.Errorf("generation_retries must not be negative, got %d", c.GenerationRetries))
	}
	for name, d := range map[string]time.Duration{
		"engine.convert_timeout": c.Engine.ConvertTimeout,
		"engine.animate_timeout": c.Engine.AnimateTimeout,
		"engine.render_timeout":  c.Engine.RenderTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if err := c.Defaults.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("defaults: %w", err))
	}
	if _, err := analyzer.NewClassifier(c.Classifier, c.Thresholds); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
