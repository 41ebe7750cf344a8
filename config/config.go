// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	PromoteAdmin     = pflag.String("promote-admin", "", "Gives the admin role to the account with this email and exits")
	Deactivate       = pflag.String("deactivate", "", "Deactivates the account with this email and exits")
	Activate         = pflag.String("activate", "", "Reactivates the account with this email and exits")
	ReconcileStorage = pflag.Bool("reconcile-storage", false, "Removes store objects no media points to and exits")

	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validDrivers   = []string{"postgres", "sqlite"}
)

// ErrNoJWTSecret is returned when no secret is configured. The error
// message carries a freshly generated one.
var ErrNoJWTSecret = errors.New("security.jwt_secret is not set")

var keys = []string{
	"app.log_level",

	"host.port",
	"host.cors",

	"security.jwt_secret",
	"security.jwt_expiry",
	"security.otp_ttl",
	"security.rate_limit",

	"google.client_id",

	"database.driver",
	"database.dsn",

	"storage.bucket",
	"storage.region",
	"storage.access_key_id",
	"storage.secret_access_key",
	"storage.endpoint",
	"storage.public_url",
	"storage.folder",

	"mail.enabled",
	"mail.host",
	"mail.port",
	"mail.username",
	"mail.password",
	"mail.sender",

	"upload.max_size",

	"turnstile.enabled",
	"turnstile.secret_token",

	"cleanup.codes_schedule",
	"cleanup.orphans_schedule",
}

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup parses the command line and loads the configuration
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	return Load()
}

// Load reads config.toml when present, binds every key to its environment
// variable (host.port -> HOST_PORT), applies the defaults and validates the
// result. Function will return an error if something is critically wrong
// and the application can't run because of that.
func Load() error {
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	//
	// ENVS
	//
	for _, k := range keys {
		v.BindEnv(k, strings.ToUpper(strings.ReplaceAll(k, ".", "_")))
	}

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)

	v.SetDefault("security.jwt_expiry", "168h")
	v.SetDefault("security.otp_ttl", "10m")
	v.SetDefault("security.rate_limit", 20)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "gallery.db")

	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.folder", "media-gallery")

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.port", 587)

	v.SetDefault("upload.max_size", 5)

	v.SetDefault("turnstile.enabled", false)

	v.SetDefault("cleanup.codes_schedule", "@every 1h")
	v.SetDefault("cleanup.orphans_schedule", "@every 24h")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file, %w", err)
		}

		zap.L().Debug("No config.toml found, using environment only")
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetString("security.jwt_secret") == "" {
		return fmt.Errorf("%w. Set it as an environment variable or in the config.toml file, for example:\n\n%s", ErrNoJWTSecret, genSecret())
	}

	if v.GetDuration("security.jwt_expiry") <= 0 {
		return errors.New("security.jwt_expiry must be a positive duration")
	}

	if v.GetDuration("security.otp_ttl") <= 0 {
		return errors.New("security.otp_ttl must be a positive duration")
	}

	if !slices.Contains(validDrivers, v.GetString("database.driver")) {
		return errors.New("database.driver must be postgres or sqlite")
	}

	if v.GetString("database.dsn") == "" {
		return errors.New("database.dsn can't be empty")
	}

	if v.GetString("storage.bucket") == "" {
		return errors.New("storage.bucket can't be empty")
	}

	if v.GetBool("mail.enabled") {
		if v.GetString("mail.host") == "" {
			return errors.New("mail.host can't be empty when mail is enabled")
		}

		if v.GetString("mail.sender") == "" {
			return errors.New("mail.sender can't be empty when mail is enabled")
		}
	} else {
		fmt.Println("[WARNING]: Mail is disabled. One-time codes will only be written to the debug log")
	}

	if v.GetString("google.client_id") == "" {
		fmt.Println("[WARNING]: google.client_id is not set. Google sign-in will reject every token")
	}

	if v.GetInt("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if !v.GetBool("turnstile.enabled") {
		fmt.Println("[WARNING]: Cloudflare's turnstile is disabled. Some public endpoints won't be guarded against bots")
	} else {
		if v.GetString("turnstile.secret_token") == "" {
			return errors.New("turnstile secret token is missing")
		}
	}

	v.Set("upload.max_size", v.GetInt64("upload.max_size")<<20)
	return nil
}

// CORSOrigins returns the configured origins, host.cors is a comma
// separated list
func CORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(v.GetString("host.cors"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return origins
}
