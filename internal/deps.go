package internal

import (
	"bitwise74/gallery-api/internal/service"
	"bitwise74/gallery-api/pkg/middleware"
	"bitwise74/gallery-api/pkg/security"

	"gorm.io/gorm"
)

type Deps struct {
	DB       *gorm.DB
	Tokens   *security.TokenIssuer
	Store    service.ObjectStore
	Accounts *service.Accounts
	Media    *service.Media
	Archive  *service.Archiver
	Contacts *service.Contacts
	Janitor  *service.Janitor

	MaxUploadSize int64
	Turnstile     middleware.TurnstileConfig
	RateLimit     middleware.RateLimiterConfig
	CORSOrigins   []string
}
