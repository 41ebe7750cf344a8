package app

import (
	"context"
	"fmt"
	"time"

	"bitwise74/gallery-api/aws"
	"bitwise74/gallery-api/config"
	"bitwise74/gallery-api/db"
	"bitwise74/gallery-api/internal"
	"bitwise74/gallery-api/internal/model"
	"bitwise74/gallery-api/internal/service"
	"bitwise74/gallery-api/pkg/middleware"
	"bitwise74/gallery-api/pkg/security"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

// NewDeps connects to the database and the object store and builds every
// service from the loaded configuration
func NewDeps(ctx context.Context) (*internal.Deps, error) {
	gdb, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	if err := db.Migrate(gdb); err != nil {
		return nil, fmt.Errorf("failed to migrate database, %w", err)
	}

	store, err := aws.NewS3(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
	}

	var notifier service.Notifier = service.LogNotifier{}
	if viper.GetBool("mail.enabled") {
		notifier = &service.MailNotifier{
			Host:     viper.GetString("mail.host"),
			Port:     viper.GetInt("mail.port"),
			Username: viper.GetString("mail.username"),
			Password: viper.GetString("mail.password"),
			Sender:   viper.GetString("mail.sender"),
			TTL:      viper.GetDuration("security.otp_ttl"),
		}
	}

	tokens := security.NewTokenIssuer(viper.GetString("security.jwt_secret"), viper.GetDuration("security.jwt_expiry"))
	folder := viper.GetString("storage.folder")

	accounts := &service.Accounts{
		DB:       gdb,
		Argon:    security.New(),
		Tokens:   tokens,
		OTP:      security.NewOTPIssuer(viper.GetDuration("security.otp_ttl")),
		Notifier: notifier,
		Verifier: &service.GoogleVerifier{ClientID: viper.GetString("google.client_id")},
	}

	rps := viper.GetFloat64("security.rate_limit")

	return &internal.Deps{
		DB:       gdb,
		Tokens:   tokens,
		Store:    store,
		Accounts: accounts,
		Media:    &service.Media{DB: gdb, Store: store, Folder: folder},
		Archive:  &service.Archiver{DB: gdb, Store: store},
		Contacts: &service.Contacts{DB: gdb},
		Janitor: &service.Janitor{
			DB:       gdb,
			Accounts: accounts,
			Store:    store,
			Folder:   folder,
			Grace:    service.DefaultOrphanGrace,
		},

		MaxUploadSize: viper.GetInt64("upload.max_size"),
		Turnstile: middleware.TurnstileConfig{
			Enabled: viper.GetBool("turnstile.enabled"),
			Secret:  viper.GetString("turnstile.secret_token"),
		},
		RateLimit: middleware.RateLimiterConfig{
			RequestsPerSecond: rps,
			Burst:             int(rps * 2),
		},
		CORSOrigins: config.CORSOrigins(),
	}, nil
}

// MakeLogger installs the global zap logger at the given level
func MakeLogger(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level, %w", err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger, %w", err)
	}

	zap.ReplaceGlobals(log)
	return nil
}

// RunMaintenance performs the one-off task selected on the command line. It
// reports whether a task ran, in which case the server should not start.
func RunMaintenance(ctx context.Context, d *internal.Deps) (bool, error) {
	switch {
	case *config.PromoteAdmin != "":
		if err := d.Accounts.SetRole(ctx, *config.PromoteAdmin, model.RoleAdmin); err != nil {
			return true, fmt.Errorf("failed to promote %s, %w", *config.PromoteAdmin, err)
		}

		zap.L().Info("Promoted account to admin", zap.String("email", *config.PromoteAdmin))
	case *config.Deactivate != "":
		if err := d.Accounts.SetActive(ctx, *config.Deactivate, false); err != nil {
			return true, fmt.Errorf("failed to deactivate %s, %w", *config.Deactivate, err)
		}

		zap.L().Info("Deactivated account", zap.String("email", *config.Deactivate))
	case *config.Activate != "":
		if err := d.Accounts.SetActive(ctx, *config.Activate, true); err != nil {
			return true, fmt.Errorf("failed to activate %s, %w", *config.Activate, err)
		}

		zap.L().Info("Activated account", zap.String("email", *config.Activate))
	case *config.ReconcileStorage:
		n, err := d.Janitor.ReconcileOrphans(ctx)
		if err != nil {
			return true, err
		}

		zap.L().Info("Storage reconciled", zap.Int("removed", n))
	default:
		return false, nil
	}

	return true, nil
}
