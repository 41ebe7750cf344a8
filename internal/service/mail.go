package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitwise74/gallery-api/pkg/security"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Purpose string

const (
	PurposeVerification  Purpose = "Email Verification"
	PurposePasswordReset Purpose = "Password Reset"
)

// Notifier delivers one-time codes to users
type Notifier interface {
	SendOTP(ctx context.Context, to, code string, purpose Purpose) error
}

// MailNotifier sends codes over SMTP
type MailNotifier struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
	// TTL is the code lifetime quoted in the mail body
	TTL      time.Duration
}

func (m *MailNotifier) SendOTP(ctx context.Context, to, code string, purpose Purpose) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if strings.EqualFold(to, m.Sender) {
		return errors.New("invalid email address")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.Sender)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("Your OTP for %s", purpose))
	msg.SetBody("text/html", otpBody(code, purpose, m.TTL))

	username := m.Username
	if username == "" {
		username = m.Sender
	}

	d := gomail.NewDialer(m.Host, m.Port, username, m.Password)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send otp mail, %w", err)
	}

	return nil
}

// expiryText renders d as "10 minutes", "1 hour" and so on, falling back
// to the duration string for uneven windows
func expiryText(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	if d <= 0 {
		d = security.DefaultOTPTTL
	}

	switch {
	case d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func otpBody(code string, purpose Purpose, ttl time.Duration) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">%s</h2>
  <p>Your OTP code is:</p>
  <div style="background: #f4f4f4; padding: 20px; text-align: center; font-size: 24px; font-weight: bold; letter-spacing: 5px; margin: 20px 0;">%s</div>
  <p>This code will expire in %s.</p>
  <p>If you didn't request this code, please ignore this email.</p>
</div>`, purpose, code, expiryText(ttl))
}

// LogNotifier writes codes to the log instead of sending them. Only meant
// for local development with mail disabled.
type LogNotifier struct{}

func (LogNotifier) SendOTP(_ context.Context, to, code string, purpose Purpose) error {
	zap.L().Debug("OTP issued", zap.String("to", to), zap.String("code", code), zap.String("purpose", string(purpose)))
	return nil
}
