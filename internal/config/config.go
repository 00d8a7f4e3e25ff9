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
	Groq      GroqConfig
	YouTube   YouTubeConfig
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
	SessionsPerMin int
	AdvancePerHour int
	UploadPerHour  int
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type YouTubeConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Privacy      string
	CategoryID   string
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

// PipelineConfig holds the media and timing parameters for a session run.
type PipelineConfig struct {
	BaseDir        string
	ShortClipSecs  float64
	CharsPerSecond float64
	MinLineSecs    float64
	VideoWidth     int
	VideoHeight    int
	MaxShorts      int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("GROQ_API_KEY")
	readSecret("YOUTUBE_CLIENT_SECRET")
	readSecret("YOUTUBE_REFRESH_TOKEN")
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
	_ = viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = viper.BindEnv("groq.model", "GROQ_MODEL")
	_ = viper.BindEnv("youtube.client_id", "YOUTUBE_CLIENT_ID")
	_ = viper.BindEnv("youtube.client_secret", "YOUTUBE_CLIENT_SECRET")
	_ = viper.BindEnv("youtube.refresh_token", "YOUTUBE_REFRESH_TOKEN")
	_ = viper.BindEnv("youtube.privacy", "YOUTUBE_PRIVACY")
	_ = viper.BindEnv("youtube.category_id", "YOUTUBE_CATEGORY_ID")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = viper.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = viper.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = viper.BindEnv("pipeline.base_dir", "PIPELINE_BASE_DIR")
	_ = viper.BindEnv("pipeline.short_clip_secs", "PIPELINE_SHORT_CLIP_SECS")
	_ = viper.BindEnv("pipeline.chars_per_second", "PIPELINE_CHARS_PER_SECOND")
	_ = viper.BindEnv("pipeline.min_line_secs", "PIPELINE_MIN_LINE_SECS")
	_ = viper.BindEnv("pipeline.video_width", "PIPELINE_VIDEO_WIDTH")
	_ = viper.BindEnv("pipeline.video_height", "PIPELINE_VIDEO_HEIGHT")
	_ = viper.BindEnv("pipeline.max_shorts", "PIPELINE_MAX_SHORTS")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.sessions_per_min", 30)
	viper.SetDefault("ratelimit.advance_per_hour", 60)
	viper.SetDefault("ratelimit.upload_per_hour", 50)

	// Groq defaults
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.model", "llama-3.3-70b-versatile")

	// YouTube defaults
	viper.SetDefault("youtube.privacy", "unlisted")
	viper.SetDefault("youtube.category_id", "25")

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Pipeline defaults
	viper.SetDefault("pipeline.base_dir", "./sessions")
	viper.SetDefault("pipeline.short_clip_secs", 30.0)
	viper.SetDefault("pipeline.chars_per_second", 15.0)
	viper.SetDefault("pipeline.min_line_secs", 2.0)
	viper.SetDefault("pipeline.video_width", 1080)
	viper.SetDefault("pipeline.video_height", 1920)
	viper.SetDefault("pipeline.max_shorts", 0)

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
			SessionsPerMin: viper.GetInt("ratelimit.sessions_per_min"),
			AdvancePerHour: viper.GetInt("ratelimit.advance_per_hour"),
			UploadPerHour:  viper.GetInt("ratelimit.upload_per_hour"),
		},
		Groq: GroqConfig{
			APIKey:  viper.GetString("groq.api_key"),
			BaseURL: viper.GetString("groq.base_url"),
			Model:   viper.GetString("groq.model"),
		},
		YouTube: YouTubeConfig{
			ClientID:     viper.GetString("youtube.client_id"),
			ClientSecret: viper.GetString("youtube.client_secret"),
			RefreshToken: viper.GetString("youtube.refresh_token"),
			Privacy:      viper.GetString("youtube.privacy"),
			CategoryID:   viper.GetString("youtube.category_id"),
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
			BaseDir:        viper.GetString("pipeline.base_dir"),
			ShortClipSecs:  viper.GetFloat64("pipeline.short_clip_secs"),
			CharsPerSecond: viper.GetFloat64("pipeline.chars_per_second"),
			MinLineSecs:    viper.GetFloat64("pipeline.min_line_secs"),
			VideoWidth:     viper.GetInt("pipeline.video_width"),
			VideoHeight:    viper.GetInt("pipeline.video_height"),
			MaxShorts:      viper.GetInt("pipeline.max_shorts"),
		},
	}

	return cfg, nil
}
