package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	LLM       LLMConfig
	Image     ImageConfig
	Speech    SpeechConfig
	R2        R2Config
	Zitadel   ZitadelConfig
	Gateway   GatewayConfig
	Pipeline  PipelineConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	TopicsPerMin   int
	StoriesPerHour int
	UploadsPerHour int
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type ImageConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Size    string
}

type SpeechConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	DefaultVoice string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

type PipelineConfig struct {
	BudgetMinutes        int // wall-clock ceiling for one story run
	SweepIntervalMinutes int
	StaleAfterMinutes    int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("LLM_API_KEY")
	readSecret("IMAGE_API_KEY")
	readSecret("SPEECH_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("llm.api_key", "LLM_API_KEY")
	_ = viper.BindEnv("llm.base_url", "LLM_BASE_URL")
	_ = viper.BindEnv("llm.model", "LLM_MODEL")
	_ = viper.BindEnv("image.api_key", "IMAGE_API_KEY")
	_ = viper.BindEnv("image.base_url", "IMAGE_BASE_URL")
	_ = viper.BindEnv("image.model", "IMAGE_MODEL")
	_ = viper.BindEnv("image.size", "IMAGE_SIZE")
	_ = viper.BindEnv("speech.api_key", "SPEECH_API_KEY")
	_ = viper.BindEnv("speech.base_url", "SPEECH_BASE_URL")
	_ = viper.BindEnv("speech.model", "SPEECH_MODEL")
	_ = viper.BindEnv("speech.default_voice", "SPEECH_DEFAULT_VOICE")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = viper.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = viper.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = viper.BindEnv("pipeline.budget_minutes", "PIPELINE_BUDGET_MINUTES")
	_ = viper.BindEnv("pipeline.sweep_interval_minutes", "PIPELINE_SWEEP_INTERVAL_MINUTES")
	_ = viper.BindEnv("pipeline.stale_after_minutes", "PIPELINE_STALE_AFTER_MINUTES")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.topics_per_min", 20)
	viper.SetDefault("ratelimit.stories_per_hour", 10)
	viper.SetDefault("ratelimit.uploads_per_hour", 30)

	// LLM defaults (OpenAI-compatible chat completions)
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o-mini")

	// Image generation defaults
	viper.SetDefault("image.base_url", "https://api.openai.com/v1")
	viper.SetDefault("image.model", "gpt-image-1")
	viper.SetDefault("image.size", "1024x1024")

	// Speech synthesis defaults (ElevenLabs-compatible)
	viper.SetDefault("speech.base_url", "https://api.elevenlabs.io")
	viper.SetDefault("speech.model", "eleven_multilingual_v2")
	viper.SetDefault("speech.default_voice", "21m00Tcm4TlvDq8ikWAM")

	// Pipeline defaults
	viper.SetDefault("pipeline.budget_minutes", 9)
	viper.SetDefault("pipeline.sweep_interval_minutes", 5)
	viper.SetDefault("pipeline.stale_after_minutes", 15)

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			TopicsPerMin:   viper.GetInt("ratelimit.topics_per_min"),
			StoriesPerHour: viper.GetInt("ratelimit.stories_per_hour"),
			UploadsPerHour: viper.GetInt("ratelimit.uploads_per_hour"),
		},
		LLM: LLMConfig{
			APIKey:  viper.GetString("llm.api_key"),
			BaseURL: viper.GetString("llm.base_url"),
			Model:   viper.GetString("llm.model"),
		},
		Image: ImageConfig{
			APIKey:  viper.GetString("image.api_key"),
			BaseURL: viper.GetString("image.base_url"),
			Model:   viper.GetString("image.model"),
			Size:    viper.GetString("image.size"),
		},
		Speech: SpeechConfig{
			APIKey:       viper.GetString("speech.api_key"),
			BaseURL:      viper.GetString("speech.base_url"),
			Model:        viper.GetString("speech.model"),
			DefaultVoice: viper.GetString("speech.default_voice"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Zitadel: ZitadelConfig{
			Domain:   viper.GetString("zitadel.domain"),
			ClientID: viper.GetString("zitadel.client_id"),
			Issuer:   viper.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
		Pipeline: PipelineConfig{
			BudgetMinutes:        viper.GetInt("pipeline.budget_minutes"),
			SweepIntervalMinutes: viper.GetInt("pipeline.sweep_interval_minutes"),
			StaleAfterMinutes:    viper.GetInt("pipeline.stale_after_minutes"),
		},
	}

	return cfg, nil
}
