// Package config reads settings from flags, an optional config.toml, an
// optional .env file and the environment. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/campusbuzz/backend/internal/mirror"
	"github.com/campusbuzz/backend/internal/storage"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"console", "json"}
	validDrivers    = []string{"memory", "mongo", "postgres", "sqlite"}
	validDeliveries = []string{"direct", "outbox"}
	validDocuments  = []string{"firebase", "s3"}
)

type Config struct {
	ServerAddress string
	LogLevel      string
	LogFormat     string
	AdminIdentity string
	Seed          bool

	Store     StoreConfig
	Firebase  FirebaseConfig
	Documents DocumentsConfig

	MirrorTimeout  time.Duration
	MirrorDelivery string

	MaxUploadSizeMB int64
	SafeSearch      bool

	RateLimitRPS   float64
	RateLimitBurst int

	SendGridAPIKey    string
	SendGridFromEmail string

	RecaptchaSecret string
}

type StoreConfig struct {
	Driver   string
	DataDir  string
	DSN      string
	MongoURI string
	MongoDB  string
}

type FirebaseConfig struct {
	ProjectID       string
	ClientEmail     string
	PrivateKey      string
	PrivateKeyID    string
	ClientID        string
	CredentialsFile string
	DatabaseURL     string
	StorageBucket   string
}

type DocumentsConfig struct {
	Backend           string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":5000")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")
	v.SetDefault("admin.identity", "admin")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.data_dir", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.db", "campusbuzz")

	for _, k := range []string{
		"project_id", "client_email", "private_key", "private_key_id",
		"client_id", "credentials_file", "database_url",
	} {
		v.SetDefault("firebase."+k, "")
	}
	v.SetDefault("firebase.storage_bucket", "campusbuzz-project.appspot.com")

	v.SetDefault("documents.backend", "firebase")
	for _, k := range []string{"region", "bucket", "access_key_id", "secret_access_key", "endpoint"} {
		v.SetDefault("s3."+k, "")
	}

	v.SetDefault("mirror.timeout", 5*time.Second)
	v.SetDefault("mirror.delivery", "direct")

	v.SetDefault("upload.max_size_mb", 5)
	v.SetDefault("upload.safesearch", false)

	v.SetDefault("rate_limit.rps", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("sendgrid.api_key", "")
	v.SetDefault("sendgrid.from_email", "")
	v.SetDefault("recaptcha.secret", "")
}

// Load parses args (without the program name) and returns validated settings.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("campusbuzz", pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to a config.toml file")
	seed := fs.Bool("seed", false, "load demo data at startup (default on for the memory store)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file, %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file, %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file, %w", err)
			}
		}
	}

	cfg := &Config{
		ServerAddress: v.GetString("server.address"),
		LogLevel:      strings.ToLower(v.GetString("app.log_level")),
		LogFormat:     strings.ToLower(v.GetString("app.log_format")),
		AdminIdentity: v.GetString("admin.identity"),
		Store: StoreConfig{
			Driver:   strings.ToLower(v.GetString("store.driver")),
			DataDir:  v.GetString("store.data_dir"),
			DSN:      v.GetString("store.dsn"),
			MongoURI: v.GetString("mongo.uri"),
			MongoDB:  v.GetString("mongo.db"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       v.GetString("firebase.project_id"),
			ClientEmail:     v.GetString("firebase.client_email"),
			PrivateKey:      v.GetString("firebase.private_key"),
			PrivateKeyID:    v.GetString("firebase.private_key_id"),
			ClientID:        v.GetString("firebase.client_id"),
			CredentialsFile: v.GetString("firebase.credentials_file"),
			DatabaseURL:     v.GetString("firebase.database_url"),
			StorageBucket:   v.GetString("firebase.storage_bucket"),
		},
		Documents: DocumentsConfig{
			Backend:           strings.ToLower(v.GetString("documents.backend")),
			S3Region:          v.GetString("s3.region"),
			S3Bucket:          v.GetString("s3.bucket"),
			S3AccessKeyID:     v.GetString("s3.access_key_id"),
			S3SecretAccessKey: v.GetString("s3.secret_access_key"),
			S3Endpoint:        v.GetString("s3.endpoint"),
		},
		MirrorTimeout:     v.GetDuration("mirror.timeout"),
		MirrorDelivery:    strings.ToLower(v.GetString("mirror.delivery")),
		MaxUploadSizeMB:   v.GetInt64("upload.max_size_mb"),
		SafeSearch:        v.GetBool("upload.safesearch"),
		RateLimitRPS:      v.GetFloat64("rate_limit.rps"),
		RateLimitBurst:    v.GetInt("rate_limit.burst"),
		SendGridAPIKey:    v.GetString("sendgrid.api_key"),
		SendGridFromEmail: v.GetString("sendgrid.from_email"),
		RecaptchaSecret:   v.GetString("recaptcha.secret"),
	}

	cfg.Seed = cfg.Store.Driver == "memory"
	if fs.Changed("seed") {
		cfg.Seed = *seed
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return errors.New("server.address must not be empty")
	}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	if c.AdminIdentity == "" {
		return errors.New("admin.identity must not be empty")
	}

	switch c.Store.Driver {
	case "mongo":
		if c.Store.MongoURI == "" {
			return errors.New("mongo.uri is required for the mongo store")
		}
		if c.Store.MongoDB == "" {
			return errors.New("mongo.db is required for the mongo store")
		}
	case "postgres", "sqlite":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s store", c.Store.Driver)
		}
	}
	if !slices.Contains(validDrivers, c.Store.Driver) {
		return fmt.Errorf("invalid store driver %q", c.Store.Driver)
	}

	if !slices.Contains(validDeliveries, c.MirrorDelivery) {
		return fmt.Errorf("invalid mirror delivery %q", c.MirrorDelivery)
	}
	if c.MirrorTimeout <= 0 {
		return errors.New("mirror.timeout must be bigger than 0")
	}

	if !slices.Contains(validDocuments, c.Documents.Backend) {
		return fmt.Errorf("invalid documents backend %q", c.Documents.Backend)
	}
	if c.Documents.Backend == "s3" {
		if c.Documents.S3Bucket == "" {
			return errors.New("s3.bucket is required for the s3 documents backend")
		}
		if c.Documents.S3Region == "" {
			return errors.New("s3.region is required for the s3 documents backend")
		}
	}

	if c.MaxUploadSizeMB <= 0 {
		return errors.New("upload.max_size_mb must be bigger than 0")
	}
	if c.RateLimitRPS < 0 {
		return errors.New("rate_limit.rps must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		return errors.New("rate_limit.burst must be bigger than 0")
	}
	if c.SendGridAPIKey != "" && c.SendGridFromEmail == "" {
		return errors.New("sendgrid.from_email is required when sendgrid.api_key is set")
	}
	return nil
}

func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Driver:   c.Store.Driver,
		DataDir:  c.Store.DataDir,
		DSN:      c.Store.DSN,
		MongoURI: c.Store.MongoURI,
		MongoDB:  c.Store.MongoDB,
	}
}

func (c *Config) MirrorConfig() mirror.Config {
	return mirror.Config{
		ProjectID:        c.Firebase.ProjectID,
		ClientEmail:      c.Firebase.ClientEmail,
		PrivateKey:       c.Firebase.PrivateKey,
		PrivateKeyID:     c.Firebase.PrivateKeyID,
		ClientID:         c.Firebase.ClientID,
		CredentialsFile:  c.Firebase.CredentialsFile,
		DatabaseURL:      c.Firebase.DatabaseURL,
		StorageBucket:    c.Firebase.StorageBucket,
		Moderator:        c.AdminIdentity,
		DocumentsBackend: c.Documents.Backend,
		S3: mirror.S3Config{
			Region:          c.Documents.S3Region,
			Bucket:          c.Documents.S3Bucket,
			AccessKeyID:     c.Documents.S3AccessKeyID,
			SecretAccessKey: c.Documents.S3SecretAccessKey,
			Endpoint:        c.Documents.S3Endpoint,
		},
	}
}
