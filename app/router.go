// Package app wires the HTTP surface: middleware, routes and the handlers
// behind them
package app

import (
	"net/http"
	"time"

	"bitwise74/gallery-api/app/auth"
	"bitwise74/gallery-api/app/contact"
	"bitwise74/gallery-api/app/media"
	"bitwise74/gallery-api/app/root"
	"bitwise74/gallery-api/internal"
	"bitwise74/gallery-api/internal/model"
	"bitwise74/gallery-api/pkg/middleware"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	jsonBodyLimit = 1 << 20
	// room for the multipart framing and text fields next to the file
	formOverhead = 1 << 20
)

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// NewRouter builds the engine serving every /api route
func NewRouter(d *internal.Deps) *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.ConnectionDropper(),
		cors.New(corsConfig(d.CORSOrigins)),
		ginzap.RecoveryWithZap(zap.L(), true),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == http.MethodHead
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.MaxMultipartMemory = 8 << 20

	store := persist.NewMemoryStore(time.Minute)

	jwt := middleware.NewJWTMiddleware(d.DB, d.Tokens)
	optionalJWT := middleware.NewOptionalJWTMiddleware(d.DB, d.Tokens)
	admin := middleware.RequireRole(model.RoleAdmin)
	turnstile := middleware.NewTurnstileMiddleware(d.Turnstile)
	rateLimiter := middleware.RateLimiterMiddleware(d.RateLimit)
	jsonLimit := middleware.BodySizeLimiter(jsonBodyLimit)

	m := router.Group("/api")
	{
		// HEAD /api/heartbeat		-> Used to check if the server is alive
		m.HEAD("/heartbeat", func(c *gin.Context) { root.Heartbeat(c, d) })

		// GET /api/metrics		-> Prometheus metrics
		m.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	a := m.Group("/auth", rateLimiter, jsonLimit)
	{
		// POST /api/auth/register		-> Creates a pending account and mails an OTP
		a.POST("/register", func(c *gin.Context) { auth.AuthRegister(c, d) })

		// POST /api/auth/verify-otp		-> Verifies an account and logs it in
		a.POST("/verify-otp", func(c *gin.Context) { auth.AuthVerifyOTP(c, d) })

		// POST /api/auth/login		-> Logs in with email and password
		a.POST("/login", func(c *gin.Context) { auth.AuthLogin(c, d) })

		// POST /api/auth/google		-> Logs in with a Google ID token
		a.POST("/google", func(c *gin.Context) { auth.AuthGoogle(c, d) })

		// POST /api/auth/forgot-password	-> Mails a password reset OTP
		a.POST("/forgot-password", func(c *gin.Context) { auth.AuthForgotPassword(c, d) })

		// POST /api/auth/reset-password	-> Sets a new password using the OTP
		a.POST("/reset-password", func(c *gin.Context) { auth.AuthResetPassword(c, d) })

		// GET /api/auth/me			-> Returns the logged in user
		a.GET("/me", jwt, cacheForUser(store, 30*time.Second), func(c *gin.Context) { auth.AuthMe(c, d) })
	}

	md := m.Group("/media", jwt)
	{
		// GET /api/media			-> Lists own or shared media
		md.GET("", func(c *gin.Context) { media.MediaList(c, d) })

		// POST /api/media/upload		-> Uploads an image with its metadata
		md.POST("/upload", middleware.BodySizeLimiter(d.MaxUploadSize+formOverhead), func(c *gin.Context) { media.MediaUpload(c, d) })

		// POST /api/media/download-zip	-> Streams the selected media as a ZIP archive
		md.POST("/download-zip", jsonLimit, func(c *gin.Context) { media.MediaDownloadZip(c, d) })

		// GET /api/media/:id		-> Returns a single media item
		md.GET("/:id", func(c *gin.Context) { media.MediaGet(c, d) })

		// PUT /api/media/:id		-> Updates the metadata of own media
		md.PUT("/:id", jsonLimit, func(c *gin.Context) { media.MediaUpdate(c, d) })

		// DELETE /api/media/:id		-> Deletes own media
		md.DELETE("/:id", func(c *gin.Context) { media.MediaDelete(c, d) })
	}

	ct := m.Group("/contact", jsonLimit)
	{
		// POST /api/contact			-> Sends a message, logged in or not
		ct.POST("", rateLimiter, turnstile, optionalJWT, func(c *gin.Context) { contact.ContactCreate(c, d) })

		// GET /api/contact/messages		-> Lists the messages sent by the user
		ct.GET("/messages", jwt, func(c *gin.Context) { contact.ContactMessages(c, d) })

		// PUT /api/contact/:id		-> Edits one of the user's messages
		ct.PUT("/:id", jwt, func(c *gin.Context) { contact.ContactUpdate(c, d) })

		// DELETE /api/contact/:id		-> Deletes one of the user's messages
		ct.DELETE("/:id", jwt, func(c *gin.Context) { contact.ContactDelete(c, d) })

		// GET /api/contact/admin		-> Lists every message with statistics
		ct.GET("/admin", jwt, admin, func(c *gin.Context) { contact.ContactAdminList(c, d) })

		// PUT /api/contact/admin/:id		-> Changes the status or notes of a message
		ct.PUT("/admin/:id", jwt, admin, func(c *gin.Context) { contact.ContactAdminUpdate(c, d) })

		// DELETE /api/contact/admin/:id	-> Deletes any message
		ct.DELETE("/admin/:id", jwt, admin, func(c *gin.Context) { contact.ContactAdminDelete(c, d) })
	}

	return router
}

// cacheForUser caches successful responses per authenticated user. It must
// run after the JWT middleware.
func cacheForUser(store persist.CacheStore, ttl time.Duration) gin.HandlerFunc {
	return cache.Cache(store, ttl, cache.WithCacheStrategyByRequest(func(c *gin.Context) (bool, cache.Strategy) {
		userID := c.GetString("userID")
		if userID == "" {
			return false, cache.Strategy{}
		}

		return true, cache.Strategy{
			CacheKey: c.Request.URL.Path + ":" + userID,
		}
	}))
}
