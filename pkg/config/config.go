package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredentials is returned when the portal email or password is unset
var ErrMissingCredentials = errors.New("missing portal credentials")

// Config holds all configuration options for the receipt downloader
type Config struct {
	// Portal endpoints and page structure
	Portal PortalConfig `yaml:"portal" json:"portal"`

	// Login credentials
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Headless browser settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Trace export
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// PortalConfig describes where the portal lives and how its pages are shaped
type PortalConfig struct {
	BaseURL         string          `yaml:"base_url" json:"base_url"`
	LoginPath       string          `yaml:"login_path" json:"login_path"`
	DownloadPath    string          `yaml:"download_path" json:"download_path"`
	CookieAllowList []string        `yaml:"cookie_allow_list" json:"cookie_allow_list"`
	Selectors       SelectorsConfig `yaml:"selectors" json:"selectors"`
}

// SelectorsConfig holds the CSS selectors used on the login and listing pages
type SelectorsConfig struct {
	EmailField    string `yaml:"email_field" json:"email_field"`
	PasswordField string `yaml:"password_field" json:"password_field"`
	SubmitButton  string `yaml:"submit_button" json:"submit_button"`
	Container     string `yaml:"container" json:"container"`
	Entry         string `yaml:"entry" json:"entry"`
	Date          string `yaml:"date" json:"date"`
	Description   string `yaml:"description" json:"description"`
	Amount        string `yaml:"amount" json:"amount"`
}

// CredentialsConfig holds the portal login
type CredentialsConfig struct {
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password,omitempty" json:"-"`
}

// BrowserConfig holds chrome settings and the readiness timeouts
type BrowserConfig struct {
	Headless        bool          `yaml:"headless" json:"headless"`
	ExecPath        string        `yaml:"exec_path" json:"exec_path"`
	UserAgent       string        `yaml:"user_agent" json:"user_agent"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout" json:"page_load_timeout"`
	LoginTimeout    time.Duration `yaml:"login_timeout" json:"login_timeout"`
	ListingTimeout  time.Duration `yaml:"listing_timeout" json:"listing_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Directory   string        `yaml:"directory" json:"directory"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	DetailsFile     string `yaml:"details_file" json:"details_file"`
	ManifestEnabled bool   `yaml:"manifest_enabled" json:"manifest_enabled"`
}

// RateLimitConfig holds rate limiting configuration. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// TelemetryConfig holds OTLP trace export settings
type TelemetryConfig struct {
	Enabled     bool              `yaml:"enabled" json:"enabled"`
	Endpoint    string            `yaml:"endpoint" json:"endpoint"`
	Headers     map[string]string `yaml:"headers" json:"headers"`
	ServiceName string            `yaml:"service_name" json:"service_name"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			BaseURL:         "https://mine.spiir.dk",
			LoginPath:       "/bilag",
			DownloadPath:    "/bilag/download/%s.jpg",
			CookieAllowList: []string{"ASP.NET_SessionId", "SessionKey"},
			Selectors: SelectorsConfig{
				EmailField:    "#Email",
				PasswordField: "#Password",
				SubmitButton:  "button.btn.btn-primary.btn-large",
				Container:     ".documents.clearfix",
				Entry:         "li",
				Date:          ".label.date",
				Description:   ".description",
				Amount:        ".label.amount",
			},
		},
		Browser: BrowserConfig{
			Headless:        true,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			PageLoadTimeout: 30 * time.Second,
			LoginTimeout:    30 * time.Second,
			ListingTimeout:  30 * time.Second,
			PollInterval:    250 * time.Millisecond,
		},
		Download: DownloadConfig{
			Directory:   "bilag",
			Timeout:     30 * time.Second,
			Concurrency: 1,
			MaxAttempts: 1,
		},
		Output: OutputConfig{
			DetailsFile:     "item_details.txt",
			ManifestEnabled: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 0,
		},
		Notifications: NotificationConfig{
			Enabled:    false,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "bilagscraper",
		},
	}
}

// LoginURL returns the absolute URL of the page the browser signs in on
func (p PortalConfig) LoginURL() string {
	return strings.TrimRight(p.BaseURL, "/") + p.LoginPath
}

// DownloadURL returns the absolute image URL for a document id
func (p PortalConfig) DownloadURL(id string) string {
	return strings.TrimRight(p.BaseURL, "/") + fmt.Sprintf(p.DownloadPath, id)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// Bare names are what the portal's .env files have always used
	if email := firstEnv("BILAG_EMAIL", "EMAIL"); email != "" {
		c.Credentials.Email = email
	}
	if password := firstEnv("BILAG_PASSWORD", "PASSWORD"); password != "" {
		c.Credentials.Password = password
	}

	if baseURL := os.Getenv("BILAG_BASE_URL"); baseURL != "" {
		c.Portal.BaseURL = baseURL
	}
	if dir := os.Getenv("BILAG_DOWNLOAD_DIR"); dir != "" {
		c.Download.Directory = dir
	}
	if details := os.Getenv("BILAG_DETAILS_FILE"); details != "" {
		c.Output.DetailsFile = details
	}
	if headless := os.Getenv("BILAG_HEADLESS"); headless != "" {
		c.Browser.Headless = strings.ToLower(headless) != "false"
	}
	if chrome := os.Getenv("BILAG_CHROME_PATH"); chrome != "" {
		c.Browser.ExecPath = chrome
	}

	if concurrency := os.Getenv("BILAG_CONCURRENCY"); concurrency != "" {
		var val int
		fmt.Sscanf(concurrency, "%d", &val)
		if val > 0 {
			c.Download.Concurrency = val
		}
	}

	if logLevel := os.Getenv("BILAG_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if endpoint := os.Getenv("BILAG_OTLP_ENDPOINT"); endpoint != "" {
		c.Telemetry.Endpoint = endpoint
		c.Telemetry.Enabled = true
	}

	return nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".bilagscraper.yaml",
		".bilagscraper.yml",
		filepath.Join(home, ".config", "bilagscraper", "config.yaml"),
		filepath.Join(home, ".config", "bilagscraper", "config.yml"),
		filepath.Join(home, ".bilagscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are checked
// separately by ValidateCredentials so that config and auth commands work
// without a login.
func (c *Config) Validate() error {
	var errs []error

	if c.Portal.BaseURL == "" {
		errs = append(errs, errors.New("portal base URL is required"))
	}
	if !strings.Contains(c.Portal.DownloadPath, "%s") {
		errs = append(errs, errors.New("portal download path must contain %s for the document id"))
	}
	if len(c.Portal.CookieAllowList) == 0 {
		errs = append(errs, errors.New("cookie allow-list must name at least one cookie"))
	}
	sel := c.Portal.Selectors
	for _, f := range []struct{ name, value string }{
		{"email_field", sel.EmailField},
		{"password_field", sel.PasswordField},
		{"submit_button", sel.SubmitButton},
		{"container", sel.Container},
		{"entry", sel.Entry},
		{"date", sel.Date},
		{"description", sel.Description},
		{"amount", sel.Amount},
	} {
		if f.value == "" {
			errs = append(errs, fmt.Errorf("selector %s is required", f.name))
		}
	}

	if c.Browser.PageLoadTimeout <= 0 || c.Browser.LoginTimeout <= 0 || c.Browser.ListingTimeout <= 0 {
		errs = append(errs, errors.New("browser timeouts must be positive"))
	}
	if c.Browser.PollInterval <= 0 {
		errs = append(errs, errors.New("browser poll interval must be positive"))
	}

	if c.Download.Directory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.Concurrency <= 0 {
		errs = append(errs, errors.New("download concurrency must be positive"))
	}
	if c.Download.Concurrency > 10 {
		errs = append(errs, errors.New("download concurrency should not exceed 10"))
	}
	if c.Download.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}

	if c.Output.DetailsFile == "" {
		errs = append(errs, errors.New("details file is required"))
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry endpoint is required when telemetry is enabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateCredentials reports which of EMAIL and PASSWORD are missing
func (c *Config) ValidateCredentials() error {
	var missing []string
	if strings.TrimSpace(c.Credentials.Email) == "" {
		missing = append(missing, "EMAIL")
	}
	if c.Credentials.Password == "" {
		missing = append(missing, "PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set", ErrMissingCredentials, strings.Join(missing, " and "))
	}
	return nil
}

// Save saves the configuration to a file. The password is never written.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c.WithoutPassword())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// WithoutPassword returns a copy of c with the password cleared. A password
// may be read from a config file but is never written back to one.
func (c *Config) WithoutPassword() *Config {
	out := *c
	out.Credentials.Password = ""
	return &out
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if email, ok := flags["email"].(string); ok && email != "" {
		c.Credentials.Email = email
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Download.Directory = outputDir
	}
	if details, ok := flags["details-file"].(string); ok && details != "" {
		c.Output.DetailsFile = details
	}
	if concurrency, ok := flags["concurrency"].(int); ok && concurrency > 0 {
		c.Download.Concurrency = concurrency
	}
	if attempts, ok := flags["max-attempts"].(int); ok && attempts > 0 {
		c.Download.MaxAttempts = attempts
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.Download.Timeout = timeout
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm >= 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if chrome, ok := flags["chrome-path"].(string); ok && chrome != "" {
		c.Browser.ExecPath = chrome
	}
	if manifest, ok := flags["manifest"].(bool); ok {
		c.Output.ManifestEnabled = manifest
	}
	if notify, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = notify
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".bilagscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
