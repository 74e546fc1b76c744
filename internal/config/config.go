// Package config provides configuration management for the site server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vyrodovalexey/safehome-site/internal/mailer"
	"github.com/vyrodovalexey/safehome-site/internal/media"
	"github.com/vyrodovalexey/safehome-site/internal/session"
	"github.com/vyrodovalexey/safehome-site/internal/store"
)

// Default configuration values.
const (
	DefaultServerPort          = 8080
	DefaultLogLevel            = "info"
	DefaultShutdownTimeout     = 30 * time.Second
	DefaultMetricsEnabled      = true
	DefaultStoreBackend        = "file"
	DefaultDataDir             = "data"
	DefaultMediaBackend        = "disk"
	DefaultUploadDir           = "uploads"
	DefaultCloudinaryFolder    = "seguridad_domestica"
	DefaultAdminUsername       = "admin"
	DefaultAdminPassword       = "admin123"
	DefaultSessionBackend      = "memory"
	DefaultSessionFile         = "data/sessions.db"
	DefaultSessionTTL          = 7 * 24 * time.Hour
	DefaultSessionPurge        = "@every 1h"
	DefaultSMTPPort            = 587
	DefaultPublicListEndpoints = true
	DefaultEnvFile             = ".env"
)

// DefaultMediaMaxBytes is the default upload ceiling.
const DefaultMediaMaxBytes int64 = 100 << 20

// Environment variable names.
const (
	EnvServerPort      = "APP_SERVER_PORT"
	EnvLogLevel        = "APP_LOG_LEVEL"
	EnvLogFile         = "APP_LOG_FILE"
	EnvShutdownTimeout = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled  = "APP_METRICS_ENABLED"
	EnvCORSOrigins     = "APP_CORS_ORIGINS"

	EnvStoreBackend    = "APP_STORE_BACKEND"
	EnvDataDir         = "APP_DATA_DIR"
	EnvSurrealURL      = "APP_SURREALDB_URL"
	EnvSurrealNS       = "APP_SURREALDB_NAMESPACE"
	EnvSurrealDB       = "APP_SURREALDB_DATABASE"
	EnvSurrealUser     = "APP_SURREALDB_USERNAME"
	EnvSurrealPassword = "APP_SURREALDB_PASSWORD" //nolint:gosec // env var name, not a credential
	EnvPostgresDSN     = "APP_POSTGRES_DSN"

	EnvMediaBackend        = "APP_MEDIA_BACKEND"
	EnvUploadDir           = "APP_UPLOAD_DIR"
	EnvMediaMaxBytes       = "APP_MEDIA_MAX_BYTES"
	EnvCloudinaryURL       = "APP_CLOUDINARY_URL"
	EnvCloudinaryCloudName = "APP_CLOUDINARY_CLOUD_NAME"
	EnvCloudinaryAPIKey    = "APP_CLOUDINARY_API_KEY"    //nolint:gosec // env var name, not a credential
	EnvCloudinaryAPISecret = "APP_CLOUDINARY_API_SECRET" //nolint:gosec // env var name, not a credential
	EnvCloudinaryFolder    = "APP_CLOUDINARY_FOLDER"

	EnvAdminUsername     = "APP_ADMIN_USERNAME"
	EnvAdminPassword     = "APP_ADMIN_PASSWORD"      //nolint:gosec // env var name, not a credential
	EnvAdminPasswordHash = "APP_ADMIN_PASSWORD_HASH" //nolint:gosec // env var name, not a credential

	EnvSessionBackend = "APP_SESSION_BACKEND"
	EnvSessionFile    = "APP_SESSION_FILE"
	EnvSessionTTL     = "APP_SESSION_TTL"
	EnvSessionSecret  = "APP_SESSION_SECRET" //nolint:gosec // env var name, not a credential
	EnvSessionPurge   = "APP_SESSION_PURGE_SCHEDULE"

	EnvSMTPHost     = "APP_SMTP_HOST"
	EnvSMTPPort     = "APP_SMTP_PORT"
	EnvSMTPUsername = "APP_SMTP_USERNAME"
	EnvSMTPPassword = "APP_SMTP_PASSWORD" //nolint:gosec // env var name, not a credential
	EnvContactFrom  = "APP_CONTACT_FROM"
	EnvContactTo    = "APP_CONTACT_TO"

	EnvPublicListEndpoints = "APP_PUBLIC_LIST_ENDPOINTS"
)

// minSessionSecret is the shortest accepted session signing secret.
const minSessionSecret = 32

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int
	LogLevel        string
	LogFile         string
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	CORSOrigins     []string

	// Record store.
	StoreBackend    string
	DataDir         string
	SurrealURL      string
	SurrealNS       string
	SurrealDB       string
	SurrealUser     string
	SurrealPassword string
	PostgresDSN     string

	// Media storage.
	MediaBackend        string
	UploadDir           string
	MediaMaxBytes       int64
	CloudinaryURL       string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	// Administrator account.
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string

	// Sessions. An empty SessionSecret makes the server generate a key at
	// startup, so sessions do not survive a restart.
	SessionBackend string
	SessionFile    string
	SessionTTL     time.Duration
	SessionSecret  string
	SessionPurge   string

	// Contact email. An empty SMTPHost disables delivery.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	ContactFrom  string
	ContactTo    string

	// PublicListEndpoints leaves GET /admin/{collection}/list open to
	// anonymous clients.
	PublicListEndpoints bool
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidStoreBackend    = errors.New("store backend must be one of: memory, file, surrealdb, postgres")
	ErrInvalidDataDir         = errors.New("data dir must be set for the file store backend")
	ErrInvalidSurrealConfig   = errors.New("SurrealDB URL, namespace and database must be set for the surrealdb backend")
	ErrInvalidPostgresDSN     = errors.New("postgres DSN must be set for the postgres backend")
	ErrInvalidMediaBackend    = errors.New("media backend must be one of: disk, cloudinary")
	ErrInvalidUploadDir       = errors.New("upload dir must be set for the disk media backend")
	ErrInvalidMediaMaxBytes   = errors.New("media max bytes must be positive")
	ErrInvalidCloudinary      = errors.New(
		"cloudinary URL, or cloud name with API key and secret, must be set for the cloudinary backend",
	)
	ErrInvalidAdminUsername  = errors.New("admin username must not be empty")
	ErrInvalidAdminPassword  = errors.New("admin password or password hash must be set")
	ErrInvalidSessionBackend = errors.New("session backend must be one of: memory, bolt")
	ErrInvalidSessionFile    = errors.New("session file must be set for the bolt session backend")
	ErrInvalidSessionTTL     = errors.New("session TTL must be positive")
	ErrInvalidSessionSecret  = fmt.Errorf("session secret must be at least %d bytes", minSessionSecret)
	ErrInvalidSessionPurge   = errors.New("session purge schedule is not a valid cron expression")
	ErrInvalidSMTPPort       = errors.New("SMTP port must be between 1 and 65535")
)

// Load reads configuration from environment variables with defaults.
// A .env file in the working directory is read first; variables already
// set in the environment win over it.
func Load() (*Config, error) {
	return LoadFile(DefaultEnvFile)
}

// LoadFile is Load with an explicit .env path. A missing file is ignored.
func LoadFile(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg := Default()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no variable is set.
func Default() *Config {
	return &Config{
		ServerPort:          DefaultServerPort,
		LogLevel:            DefaultLogLevel,
		ShutdownTimeout:     DefaultShutdownTimeout,
		MetricsEnabled:      DefaultMetricsEnabled,
		StoreBackend:        DefaultStoreBackend,
		DataDir:             DefaultDataDir,
		MediaBackend:        DefaultMediaBackend,
		UploadDir:           DefaultUploadDir,
		MediaMaxBytes:       DefaultMediaMaxBytes,
		CloudinaryFolder:    DefaultCloudinaryFolder,
		AdminUsername:       DefaultAdminUsername,
		AdminPassword:       DefaultAdminPassword,
		SessionBackend:      DefaultSessionBackend,
		SessionFile:         DefaultSessionFile,
		SessionTTL:          DefaultSessionTTL,
		SessionPurge:        DefaultSessionPurge,
		SMTPPort:            DefaultSMTPPort,
		PublicListEndpoints: DefaultPublicListEndpoints,
	}
}

// loadFromEnv loads configuration values from environment variables.
func (c *Config) loadFromEnv() error {
	loaders := []func() error{
		c.loadServerEnv,
		c.loadStoreEnv,
		c.loadMediaEnv,
		c.loadAdminEnv,
		c.loadSessionEnv,
		c.loadMailEnv,
	}
	for _, load := range loaders {
		if err := load(); err != nil {
			return err
		}
	}
	return nil
}

// loadServerEnv loads server-related environment variables.
func (c *Config) loadServerEnv() error {
	if err := envInt(EnvServerPort, &c.ServerPort); err != nil {
		return err
	}

	envString(EnvLogLevel, &c.LogLevel)
	envString(EnvLogFile, &c.LogFile)

	if err := envDuration(EnvShutdownTimeout, &c.ShutdownTimeout); err != nil {
		return err
	}

	if err := envBool(EnvMetricsEnabled, &c.MetricsEnabled); err != nil {
		return err
	}

	if val := os.Getenv(EnvCORSOrigins); val != "" {
		c.CORSOrigins = splitList(val)
	}

	return envBool(EnvPublicListEndpoints, &c.PublicListEndpoints)
}

// loadStoreEnv loads record store environment variables.
func (c *Config) loadStoreEnv() error {
	envString(EnvStoreBackend, &c.StoreBackend)
	envString(EnvDataDir, &c.DataDir)
	envString(EnvSurrealURL, &c.SurrealURL)
	envString(EnvSurrealNS, &c.SurrealNS)
	envString(EnvSurrealDB, &c.SurrealDB)
	envString(EnvSurrealUser, &c.SurrealUser)
	envString(EnvSurrealPassword, &c.SurrealPassword)
	envString(EnvPostgresDSN, &c.PostgresDSN)
	return nil
}

// loadMediaEnv loads media storage environment variables.
func (c *Config) loadMediaEnv() error {
	envString(EnvMediaBackend, &c.MediaBackend)
	envString(EnvUploadDir, &c.UploadDir)

	if val := os.Getenv(EnvMediaMaxBytes); val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMediaMaxBytes, err)
		}
		c.MediaMaxBytes = n
	}

	envString(EnvCloudinaryURL, &c.CloudinaryURL)
	envString(EnvCloudinaryCloudName, &c.CloudinaryCloudName)
	envString(EnvCloudinaryAPIKey, &c.CloudinaryAPIKey)
	envString(EnvCloudinaryAPISecret, &c.CloudinaryAPISecret)
	envString(EnvCloudinaryFolder, &c.CloudinaryFolder)
	return nil
}

// loadAdminEnv loads the administrator account. A password hash replaces
// the default plain password.
func (c *Config) loadAdminEnv() error {
	envString(EnvAdminUsername, &c.AdminUsername)
	envString(EnvAdminPassword, &c.AdminPassword)
	envString(EnvAdminPasswordHash, &c.AdminPasswordHash)
	if c.AdminPasswordHash != "" && os.Getenv(EnvAdminPassword) == "" {
		c.AdminPassword = ""
	}
	return nil
}

// loadSessionEnv loads session environment variables.
func (c *Config) loadSessionEnv() error {
	envString(EnvSessionBackend, &c.SessionBackend)
	envString(EnvSessionFile, &c.SessionFile)
	envString(EnvSessionSecret, &c.SessionSecret)
	envString(EnvSessionPurge, &c.SessionPurge)
	return envDuration(EnvSessionTTL, &c.SessionTTL)
}

// loadMailEnv loads SMTP environment variables.
func (c *Config) loadMailEnv() error {
	envString(EnvSMTPHost, &c.SMTPHost)
	if err := envInt(EnvSMTPPort, &c.SMTPPort); err != nil {
		return err
	}
	envString(EnvSMTPUsername, &c.SMTPUsername)
	envString(EnvSMTPPassword, &c.SMTPPassword)
	envString(EnvContactFrom, &c.ContactFrom)
	envString(EnvContactTo, &c.ContactTo)
	return nil
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateStore,
		c.validateMedia,
		c.validateAdmin,
		c.validateSession,
		c.validateMail,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	return nil
}

// validateStore validates the record store selection.
func (c *Config) validateStore() error {
	switch c.StoreBackend {
	case store.BackendMemory:
	case store.BackendFile:
		if c.DataDir == "" {
			return ErrInvalidDataDir
		}
	case store.BackendSurrealDB:
		if c.SurrealURL == "" || c.SurrealNS == "" || c.SurrealDB == "" {
			return ErrInvalidSurrealConfig
		}
	case store.BackendPostgres:
		if c.PostgresDSN == "" {
			return ErrInvalidPostgresDSN
		}
	default:
		return ErrInvalidStoreBackend
	}
	return nil
}

// validateMedia validates the media storage selection.
func (c *Config) validateMedia() error {
	if c.MediaMaxBytes <= 0 {
		return ErrInvalidMediaMaxBytes
	}

	switch c.MediaBackend {
	case media.BackendDisk:
		if c.UploadDir == "" {
			return ErrInvalidUploadDir
		}
	case media.BackendCloudinary:
		if !c.HasCloudinary() {
			return ErrInvalidCloudinary
		}
	default:
		return ErrInvalidMediaBackend
	}
	return nil
}

// validateAdmin validates the administrator account.
func (c *Config) validateAdmin() error {
	if strings.TrimSpace(c.AdminUsername) == "" {
		return ErrInvalidAdminUsername
	}
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return ErrInvalidAdminPassword
	}
	return nil
}

// validateSession validates session configuration.
func (c *Config) validateSession() error {
	switch c.SessionBackend {
	case session.BackendMemory:
	case session.BackendBolt:
		if c.SessionFile == "" {
			return ErrInvalidSessionFile
		}
	default:
		return ErrInvalidSessionBackend
	}

	if c.SessionTTL <= 0 {
		return ErrInvalidSessionTTL
	}

	if c.SessionSecret != "" && len(c.SessionSecret) < minSessionSecret {
		return ErrInvalidSessionSecret
	}

	if err := session.ValidateSchedule(c.SessionPurge); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSessionPurge, err)
	}

	return nil
}

// validateMail validates SMTP configuration.
func (c *Config) validateMail() error {
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		return ErrInvalidSMTPPort
	}
	return nil
}

// HasCloudinary reports whether Cloudinary credentials are configured.
func (c *Config) HasCloudinary() bool {
	if c.CloudinaryURL != "" {
		return true
	}
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// StoreOptions returns the record store settings.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend: c.StoreBackend,
		DataDir: c.DataDir,
		Surreal: store.SurrealConfig{
			URL:       c.SurrealURL,
			Namespace: c.SurrealNS,
			Database:  c.SurrealDB,
			Username:  c.SurrealUser,
			Password:  c.SurrealPassword,
		},
		PostgresDSN: c.PostgresDSN,
	}
}

// Cloudinary returns the Cloudinary client settings.
func (c *Config) Cloudinary() media.CloudinaryConfig {
	return media.CloudinaryConfig{
		URL:       c.CloudinaryURL,
		CloudName: c.CloudinaryCloudName,
		APIKey:    c.CloudinaryAPIKey,
		APISecret: c.CloudinaryAPISecret,
		Folder:    c.CloudinaryFolder,
	}
}

// Mailer returns the SMTP settings of the contact form.
func (c *Config) Mailer() mailer.Config {
	return mailer.Config{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.ContactFrom,
		To:       c.ContactTo,
	}
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envBool(name string, dst *bool) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = b
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = d
	return nil
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
