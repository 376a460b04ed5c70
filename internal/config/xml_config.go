// Package config provides XML-based configuration management for the score
// analyzer workspace server.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"ScoreAnalyzer"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Upstream score-analysis backend
	Upstream UpstreamConfig `xml:"Upstream"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Workspace behavior
	Workspace WorkspaceConfig `xml:"Workspace"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// UpstreamConfig contains settings for the REST backend this service fronts.
type UpstreamConfig struct {
	BaseURL        string `xml:"BaseURL"`
	AuthToken      string `xml:"AuthToken"`
	UploadTimeout  int    `xml:"UploadTimeoutSeconds"`
	AnalyzeTimeout int    `xml:"AnalyzeTimeoutSeconds"`
	ReadTimeout    int    `xml:"ReadTimeoutSeconds"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
	SnapshotFile     string `xml:"SnapshotFile"`
	MaxUploadSize    string `xml:"MaxUploadSize"`
	EnableSnapshot   bool   `xml:"EnableSnapshot"`
}

// WorkspaceConfig contains work-item orchestration settings
type WorkspaceConfig struct {
	AcceptedExtensions string `xml:"AcceptedExtensions"`
	ProgressTickMillis int    `xml:"ProgressTickMillis"`
	ProgressProfile    string `xml:"ProgressProfile"`
	RecentFilesLimit   int    `xml:"RecentFilesLimit"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8088,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "32M",
		},
		Upstream: UpstreamConfig{
			BaseURL:        "http://localhost:8000",
			AuthToken:      "",
			UploadTimeout:  60,
			AnalyzeTimeout: 180,
			ReadTimeout:    15,
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			SnapshotFile:     "./data/workspace.snapshot",
			MaxUploadSize:    "32M",
			EnableSnapshot:   true,
		},
		Workspace: WorkspaceConfig{
			AcceptedExtensions: ".xlsx",
			ProgressTickMillis: 200,
			ProgressProfile:    "",
			RecentFilesLimit:   20,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		config = &AppConfig{}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Score Analyzer Workspace Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR override
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	// Upstream backend overrides
	if base := os.Getenv("SCORE_API_URL"); base != "" {
		c.Upstream.BaseURL = base
	}
	if token := os.Getenv("SCORE_API_TOKEN"); token != "" {
		c.Upstream.AuthToken = token
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
	if !filepath.IsAbs(c.Storage.SnapshotFile) {
		c.Storage.SnapshotFile = filepath.Join(configDir, c.Storage.SnapshotFile)
	}
	if c.Workspace.ProgressProfile != "" && !filepath.IsAbs(c.Workspace.ProgressProfile) {
		c.Workspace.ProgressProfile = filepath.Join(configDir, c.Workspace.ProgressProfile)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// AcceptedExtensions returns the normalized upload allow-list. This is the
// single source of truth for which file types SubmitFile accepts.
func (c *AppConfig) AcceptedExtensions() []string {
	parts := strings.Split(c.Workspace.AcceptedExtensions, ",")
	exts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, ".") {
			p = "." + p
		}
		exts = append(exts, p)
	}
	return exts
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		filepath.Dir(c.Storage.SnapshotFile),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
