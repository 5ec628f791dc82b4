// Package config provides functionality for managing configuration options
// for the server using command-line flags, an optional JSON config file,
// a .env file and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Duration is a time.Duration that reads "30m" style strings from JSON.
type Duration time.Duration

// UnmarshalJSON accepts either a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string or integer: %w", err)
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON writes the duration in its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UserConfig is one entry of the static user table. Either Password
// (plaintext) or PasswordHash (bcrypt) must be set.
type UserConfig struct {
	Username     string `json:"username"`
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"password_hash,omitempty"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
}

// S3Options configures the S3-compatible blob backend.
type S3Options struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Prefix          string `json:"prefix"`
	UsePathStyle    bool   `json:"use_path_style"`
}

// Options holds the configuration values for the server.
type Options struct {
	// Addr is the listening address (ip:port).
	Addr string `json:"addr"`

	// DatabaseDriver selects the store implementation: "sqlite" or "postgres".
	DatabaseDriver string `json:"database_driver"`
	// DatabaseDSN is the driver specific connection string.
	DatabaseDSN string `json:"database_dsn"`

	// BlobBackend selects where raw uploads live: "local" or "s3".
	BlobBackend string    `json:"blob_backend"`
	StorageDir  string    `json:"storage_dir"`
	S3          S3Options `json:"s3"`

	// ModelBackend selects the caption/embedding implementation: "basic" or "onnx".
	ModelBackend string `json:"model_backend"`
	ModelDir     string `json:"model_dir"`
	ONNXLibrary  string `json:"onnx_library"`
	EmbeddingDim int    `json:"embedding_dim"`

	SearchTopK       int      `json:"search_top_k"`
	StrictProcessing bool     `json:"strict_processing"`
	MaxUploadBytes   int64    `json:"max_upload_bytes"`
	ThumbnailWorkers int      `json:"thumbnail_workers"`
	RateLimit        int      `json:"rate_limit_per_minute"`
	CORSOrigins      []string `json:"cors_origins"`
	// SeedDir, when set, is ingested once at startup.
	SeedDir string `json:"seed_dir"`

	JWTSecret string       `json:"jwt_secret"`
	TokenTTL  Duration     `json:"token_ttl"`
	Users     []UserConfig `json:"users"`

	LogLevel       string `json:"log_level"`
	LogDevelopment bool   `json:"log_development"`

	// Config is the path to the JSON config file.
	Config string `json:"-"`
}

// Default returns the built-in defaults.
func Default() *Options {
	return &Options{
		Addr:             ":8000",
		DatabaseDriver:   "sqlite",
		DatabaseDSN:      "images.db",
		BlobBackend:      "local",
		StorageDir:       "./data/raw",
		S3:               S3Options{Region: "auto"},
		ModelBackend:     "basic",
		ModelDir:         "./model",
		ONNXLibrary:      "./model/libonnxruntime.so",
		EmbeddingDim:     512,
		SearchTopK:       3,
		MaxUploadBytes:   50 << 20,
		ThumbnailWorkers: 3,
		RateLimit:        120,
		TokenTTL:         Duration(30 * time.Minute),
		LogLevel:         "info",
		Config:           "config.json",
	}
}

// Parse loads configuration for the running process and exits on error.
func Parse() *Options {
	opts, err := Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	return opts
}

// Load resolves configuration from, in increasing priority: defaults, the
// JSON config file, flags given on the command line and environment
// variables. A .env file in the working directory is loaded into the
// environment first when present.
func Load(args []string) (*Options, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	opts := Default()
	fset := flag.NewFlagSet("server", flag.ContinueOnError)
	fset.StringVar(&opts.Addr, "a", opts.Addr, "run on ip:port server")
	fset.StringVar(&opts.DatabaseDriver, "driver", opts.DatabaseDriver, "database driver (sqlite|postgres)")
	fset.StringVar(&opts.DatabaseDSN, "d", opts.DatabaseDSN, "database dsn")
	fset.StringVar(&opts.StorageDir, "storage", opts.StorageDir, "local blob directory")
	fset.StringVar(&opts.ModelBackend, "models", opts.ModelBackend, "model backend (basic|onnx)")
	fset.StringVar(&opts.SeedDir, "seed", opts.SeedDir, "directory of images to ingest at startup")
	fset.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "log level")
	fset.StringVar(&opts.Config, "config", opts.Config, "path to config file")
	fset.StringVar(&opts.Config, "c", opts.Config, "path to config file (shorthand)")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	explicit := make(map[string]string)
	fset.Visit(func(f *flag.Flag) {
		if f.Name != "c" && f.Name != "config" {
			explicit[f.Name] = f.Value.String()
		}
	})

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}
	if opts.Config != "" {
		if err := readFile(opts.Config, opts); err != nil {
			return nil, err
		}
	}
	for name, value := range explicit {
		if err := fset.Set(name, value); err != nil {
			return nil, fmt.Errorf("flag -%s: %w", name, err)
		}
	}
	if err := applyEnv(opts); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func readFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(opts *Options) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("SERVER_ADDRESS", &opts.Addr)
	setString("DATABASE_DRIVER", &opts.DatabaseDriver)
	setString("DATABASE_URL", &opts.DatabaseDSN)
	setString("BLOB_BACKEND", &opts.BlobBackend)
	setString("STORAGE_DIR", &opts.StorageDir)
	setString("S3_BUCKET", &opts.S3.Bucket)
	setString("S3_REGION", &opts.S3.Region)
	setString("S3_ENDPOINT", &opts.S3.Endpoint)
	setString("S3_ACCESS_KEY_ID", &opts.S3.AccessKeyID)
	setString("S3_SECRET_ACCESS_KEY", &opts.S3.SecretAccessKey)
	setString("MODEL_BACKEND", &opts.ModelBackend)
	setString("MODEL_DIR", &opts.ModelDir)
	setString("ONNX_LIBRARY", &opts.ONNXLibrary)
	setString("JWT_SECRET", &opts.JWTSecret)
	setString("LOG_LEVEL", &opts.LogLevel)
	setString("SEED_DIR", &opts.SeedDir)

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TOKEN_TTL: %w", err)
		}
		opts.TokenTTL = Duration(d)
	}
	if v := os.Getenv("SEARCH_TOP_K"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SEARCH_TOP_K: %w", err)
		}
		opts.SearchTopK = k
	}
	if v := os.Getenv("STRICT_PROCESSING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STRICT_PROCESSING: %w", err)
		}
		opts.StrictProcessing = b
	}
	return nil
}

// Validate reports configuration values the server cannot run with.
func (o *Options) Validate() error {
	switch o.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", o.DatabaseDriver)
	}
	switch o.BlobBackend {
	case "local":
	case "s3":
		if o.S3.Bucket == "" {
			return errors.New("s3 blob backend requires a bucket")
		}
	default:
		return fmt.Errorf("unsupported blob backend %q", o.BlobBackend)
	}
	switch o.ModelBackend {
	case "basic", "onnx":
	default:
		return fmt.Errorf("unsupported model backend %q", o.ModelBackend)
	}
	if o.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim must be positive, got %d", o.EmbeddingDim)
	}
	if o.SearchTopK <= 0 {
		return fmt.Errorf("search_top_k must be positive, got %d", o.SearchTopK)
	}
	if o.TokenTTL <= 0 {
		return errors.New("token_ttl must be positive")
	}
	seen := make(map[string]bool, len(o.Users))
	for _, u := range o.Users {
		if u.Username == "" {
			return errors.New("user entry without username")
		}
		if seen[u.Username] {
			return fmt.Errorf("duplicate user %q", u.Username)
		}
		seen[u.Username] = true
		if u.Password == "" && u.PasswordHash == "" {
			return fmt.Errorf("user %q has neither password nor password_hash", u.Username)
		}
	}
	return nil
}
