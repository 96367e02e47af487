package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Backend settings
	BaseURL        string
	RequestTimeout time.Duration
	UploadTimeout  time.Duration

	// Chat settings
	PageSize int

	// Upload settings
	MaxUploadWorkers int
	MaxFileSize      int64
	MaxFilesPerBatch int
	CollectionName   string
	UploadExpirySecs int

	// Local state
	SessionPath string
	LogPath     string

	// Feature flags
	Verbose bool
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	// A missing .env file is not an error
	_ = godotenv.Load()

	cfg := &Config{
		// Backend defaults
		BaseURL:        "http://localhost:8080",
		RequestTimeout: 60 * time.Second,
		UploadTimeout:  120 * time.Second,

		// Chat defaults
		PageSize: 15,

		// Upload defaults
		MaxUploadWorkers: 3,
		MaxFileSize:      50 * 1024 * 1024, // 50 MB
		MaxFilesPerBatch: 100,
		CollectionName:   "document_embeddings",
		UploadExpirySecs: 3000,

		// Local state defaults
		SessionPath: expandHome("~/.docchat/session.json"),
		LogPath:     expandHome("~/.docchat/docchat.log"),

		// Feature flags
		Verbose: false,
	}

	if url := GetEnv("DOCCHAT_API_URL"); url != "" {
		cfg.BaseURL = url
	}
	if collection := GetEnv("DOCCHAT_COLLECTION"); collection != "" {
		cfg.CollectionName = collection
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("backend URL cannot be empty")
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("page size must be between 1 and 100")
	}
	if c.MaxUploadWorkers < 1 {
		return fmt.Errorf("upload workers must be at least 1")
	}
	if c.MaxFileSize < 1 {
		return fmt.Errorf("max file size must be positive")
	}
	return nil
}

// expandHome expands the ~ in file paths to the user's home directory
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir := getHomeDir()
		return homeDir + path[1:]
	}
	return path
}

// getHomeDir returns the user's home directory
func getHomeDir() string {
	if home := GetEnv("HOME"); home != "" {
		return home
	}
	// Fallback for Windows
	if home := GetEnv("USERPROFILE"); home != "" {
		return home
	}
	return "."
}

// GetEnv is a wrapper around os.Getenv for easier testing
var GetEnv = func(key string) string {
	// Will be replaced with os.Getenv in main
	return ""
}
