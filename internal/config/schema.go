package config

// Config holds folio configuration.
// Stored at: ~/.folio/config.yaml
type Config struct {
	Store        StoreCfg        `mapstructure:"store" yaml:"store"`
	Provider     ProviderCfg     `mapstructure:"provider" yaml:"provider"`
	ImageService ImageServiceCfg `mapstructure:"image_service" yaml:"image_service"`
	Pipeline     PipelineCfg     `mapstructure:"pipeline" yaml:"pipeline"`
	Batch        BatchCfg        `mapstructure:"batch" yaml:"batch"`
}

// StoreCfg configures the persistent record store.
type StoreCfg struct {
	// URL of the DefraDB HTTP endpoint.
	URL string `mapstructure:"url" yaml:"url"`
}

// ProviderCfg configures the AI inference provider.
type ProviderCfg struct {
	Type        string  `mapstructure:"type" yaml:"type"`                 // "openai"
	Model       string  `mapstructure:"model" yaml:"model"`               // chat/vision model name
	VisionModel string  `mapstructure:"vision_model" yaml:"vision_model"` // geometry detection model (defaults to Model)
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`           // supports ${ENV_VAR} syntax
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`         // optional OpenAI-compatible endpoint
	RateLimit   float64 `mapstructure:"rate_limit" yaml:"rate_limit"`     // requests per minute
	MaxRetries  int     `mapstructure:"max_retries" yaml:"max_retries"`
	TimeoutSecs int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// ImageServiceCfg configures the image transform collaborator.
type ImageServiceCfg struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// PipelineCfg configures the chained transcription pipeline.
type PipelineCfg struct {
	// TargetLanguage is the default translation target.
	TargetLanguage string `mapstructure:"target_language" yaml:"target_language"`
}

// BatchCfg configures the batch orchestrator.
type BatchCfg struct {
	// PacingMillis is the inter-item delay that keeps batch runs under
	// external rate limits.
	PacingMillis int `mapstructure:"pacing_millis" yaml:"pacing_millis"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreCfg{
			URL: "http://localhost:9181",
		},
		Provider: ProviderCfg{
			Type:        "openai",
			Model:       "gpt-4o",
			APIKey:      "${OPENAI_API_KEY}",
			RateLimit:   60.0,
			MaxRetries:  3,
			TimeoutSecs: 120,
		},
		ImageService: ImageServiceCfg{
			URL: "http://localhost:9280",
		},
		Pipeline: PipelineCfg{
			TargetLanguage: "English",
		},
		Batch: BatchCfg{
			PacingMillis: 1000,
		},
	}
}
