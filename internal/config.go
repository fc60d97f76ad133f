package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/algiz/internal/apperr"
	"github.com/starford/algiz/internal/models"
	"github.com/starford/algiz/internal/wayback"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// DefaultProfileName is used when no profile is configured explicitly.
const DefaultProfileName = "default"

// Config represents the application configuration.
type Config struct {
	App           ApplicationConfig         `yaml:"app"`
	Vault         VaultConfig               `yaml:"vault"`
	Ledger        LedgerConfig              `yaml:"ledger"`
	Auth          AuthConfig                `yaml:"auth"`
	Wayback       WaybackConfig             `yaml:"wayback"`
	ActiveProfile string                    `yaml:"active_profile"`
	Profiles      map[string]models.Profile `yaml:"profiles"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Wayback.Validate(); err != nil {
		return err
	}
	if c.ActiveProfile != "" && c.ActiveProfile != DefaultProfileName {
		if _, ok := c.Profiles[c.ActiveProfile]; !ok {
			return fmt.Errorf("active profile %q is not configured", c.ActiveProfile)
		}
	}
	return nil
}

// Profile resolves the active profile. When nothing is configured an empty
// default profile is returned, so every command works out of the box.
func (c *Config) Profile() models.Profile {
	name := c.ActiveProfile
	if name == "" {
		name = DefaultProfileName
	}
	if p, ok := c.Profiles[name]; ok {
		return p
	}
	return models.Profile{FreshnessDays: 90}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LedgerConfig holds the failure-ledger SQLite database path.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds API authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// WaybackConfig holds the archival service connection and capture knobs.
type WaybackConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`

	RequestDelaySeconds int `yaml:"request_delay_seconds"`
	MaxPollRetries      int `yaml:"max_poll_retries"`

	CaptureScreenshot bool `yaml:"capture_screenshot"`
	CaptureAll        bool `yaml:"capture_all"`
	CaptureOutlinks   bool `yaml:"capture_outlinks"`
	ForceGet          bool `yaml:"force_get"`
	JSTimeoutSeconds  int  `yaml:"js_timeout_seconds"`
}

// Validate validates the wayback configuration. Credentials are checked
// separately by RequireCredentials, so read-only commands work without them.
func (c *WaybackConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RequestDelaySeconds, validation.Min(0)),
		validation.Field(&c.MaxPollRetries, validation.Min(0)),
		validation.Field(&c.JSTimeoutSeconds, validation.Min(0)),
	)
}

// RequireCredentials reports the fatal configuration error for commands
// that submit captures. It is checked once per run, before any per-link
// attempt is made.
func (c *WaybackConfig) RequireCredentials() error {
	if c.AccessKey == "" || c.SecretKey == "" {
		return apperr.ErrMissingCredentials
	}
	return nil
}

// ClientOptions builds the archival client options for the given profile.
func (c *WaybackConfig) ClientOptions(p models.Profile, logger *slog.Logger) wayback.Options {
	return wayback.Options{
		BaseURL:           c.BaseURL,
		AccessKey:         c.AccessKey,
		SecretKey:         c.SecretKey,
		Logger:            logger,
		RequestDelay:      time.Duration(c.RequestDelaySeconds) * time.Second,
		MaxPollRetries:    c.MaxPollRetries,
		CaptureScreenshot: c.CaptureScreenshot,
		CaptureAll:        c.CaptureAll,
		CaptureOutlinks:   c.CaptureOutlinks,
		ForceGet:          c.ForceGet,
		JSTimeoutSeconds:  c.JSTimeoutSeconds,
		FreshnessDays:     p.FreshnessDays,
		Substitutions:     p.Substitutions,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Ledger: LedgerConfig{
			Path: "./algiz.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Wayback: WaybackConfig{
			RequestDelaySeconds: 6,
			MaxPollRetries:      12,
			CaptureAll:          true,
		},
		ActiveProfile: DefaultProfileName,
		Profiles: map[string]models.Profile{
			DefaultProfileName: {
				DateFormat:    "2006-01-02",
				Label:         "(archived {date})",
				FreshnessDays: 90,
			},
		},
	}
}
