package config

import (
	"os"
	"strings"
	"time"

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
	R2        R2Config
	Transcode TranscodeConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Container       string
	PublicURL       string
}

type TranscodeConfig struct {
	FFmpegPath  string
	FFprobePath string
	WorkDir     string
	Concurrency int           // max concurrent jobs, uniform for HTTP and batch
	ProgressTTL time.Duration // how long finished progress records stay pollable
}

type RateLimitConfig struct {
	UploadPerHour int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

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
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.container", "R2_CONTAINER")
	_ = viper.BindEnv("r2.public_url", "CDN_URL")
	_ = viper.BindEnv("transcode.ffmpeg_path", "FFMPEG_PATH")
	_ = viper.BindEnv("transcode.ffprobe_path", "FFPROBE_PATH")
	_ = viper.BindEnv("transcode.work_dir", "TRANSCODE_WORK_DIR")
	_ = viper.BindEnv("transcode.concurrency", "TRANSCODE_CONCURRENCY")
	_ = viper.BindEnv("transcode.progress_ttl", "TRANSCODE_PROGRESS_TTL")
	_ = viper.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("r2.container", "uploads")
	viper.SetDefault("transcode.ffmpeg_path", "ffmpeg")
	viper.SetDefault("transcode.ffprobe_path", "ffprobe")
	viper.SetDefault("transcode.work_dir", "/tmp/ffmpeg-out")
	viper.SetDefault("transcode.concurrency", 5)
	viper.SetDefault("transcode.progress_ttl", "1h")
	viper.SetDefault("ratelimit.upload_per_hour", 50)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			Container:       viper.GetString("r2.container"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Transcode: TranscodeConfig{
			FFmpegPath:  viper.GetString("transcode.ffmpeg_path"),
			FFprobePath: viper.GetString("transcode.ffprobe_path"),
			WorkDir:     viper.GetString("transcode.work_dir"),
			Concurrency: viper.GetInt("transcode.concurrency"),
			ProgressTTL: viper.GetDuration("transcode.progress_ttl"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour: viper.GetInt("ratelimit.upload_per_hour"),
		},
	}

	return cfg, nil
}
