package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the feedback service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	DatabasePool           DatabasePool
	RedisURL               string
	NATSURL                string
	NATSSubjectBase        string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxMB            int
	AnalysisCacheTTL       time.Duration
	SiteCourseID           uint
	MinAnonymousGroupCount int
	DefaultPageCount       int
	QueueRedisAddr         string
	WorkerConcurrency      int
	MailHost               string
	MailPort               int
	MailUser               string
	MailPassword           string
	MailFrom               string
	AppBaseURL             string
	CORSAllowOrigins       []string
}

// DatabasePool bounds the connections held to postgres.
type DatabasePool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// MailConfigured reports whether SMTP delivery can be attempted.
func (c Config) MailConfigured() bool {
	return c.MailHost != "" && c.MailPort > 0 && c.MailFrom != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FEEDBACK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Feedback API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.base_url", "http://localhost:3000")
	v.SetDefault("nats.subject", "feedback")
	v.SetDefault("cloudinary.folder", "feedback/items")
	v.SetDefault("analysis.cache_ttl", "2m")
	v.SetDefault("site.course_id", 1)
	v.SetDefault("anonymous.min_group_count", 2)
	v.SetDefault("page.default_count", 20)
	v.SetDefault("worker.concurrency", 5)
	v.SetDefault("mail.port", 587)
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("cors.allow_origins", "*")

	ttlString := v.GetString("analysis.cache_ttl")
	if ttlString == "" {
		ttlString = "2m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid analysis cache ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		AppBaseURL:             strings.TrimRight(v.GetString("app.base_url"), "/"),
		DatabaseURL:            v.GetString("database.url"),
		DatabasePool: DatabasePool{
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		NATSSubjectBase:        v.GetString("nats.subject"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		AnalysisCacheTTL:       ttl,
		SiteCourseID:           v.GetUint("site.course_id"),
		MinAnonymousGroupCount: v.GetInt("anonymous.min_group_count"),
		DefaultPageCount:       v.GetInt("page.default_count"),
		QueueRedisAddr:         v.GetString("queue.redis_addr"),
		WorkerConcurrency:      v.GetInt("worker.concurrency"),
		MailHost:               v.GetString("mail.host"),
		MailPort:               v.GetInt("mail.port"),
		MailUser:               v.GetString("mail.user"),
		MailPassword:           v.GetString("mail.password"),
		MailFrom:               v.GetString("mail.from"),
		CORSAllowOrigins:       splitList(v.GetString("cors.allow_origins")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.MinAnonymousGroupCount <= 0 {
		cfg.MinAnonymousGroupCount = 2
	}

	if cfg.DefaultPageCount <= 0 {
		cfg.DefaultPageCount = 20
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 10
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 5
	}

	return cfg, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
