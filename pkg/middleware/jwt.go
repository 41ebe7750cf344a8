package middleware

import (
	"errors"
	"net/http"
	"strings"

	"bitwise74/gallery-api/internal/model"
	"bitwise74/gallery-api/internal/policy"
	"bitwise74/gallery-api/pkg/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errNoToken       = errors.New("Access token required")
	errTokenInvalid  = errors.New("Invalid or expired token")
	errUnknownUser   = errors.New("User not found")
	errAdminRequired = errors.New("Admin access required")
)

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")

	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}

// authenticate resolves the bearer token into a user. It returns the status
// and error to answer with when that fails.
func authenticate(c *gin.Context, d *gorm.DB, tokens *security.TokenIssuer, token string) (*model.User, int, error) {
	requestID := RequestID(c)

	userID, err := tokens.Parse(token)
	if err != nil {
		return nil, http.StatusUnauthorized, errTokenInvalid
	}

	var user model.User
	err = d.WithContext(c.Request.Context()).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, http.StatusUnauthorized, errUnknownUser
		}

		zap.L().Error("Failed to check if user exists", zap.Error(err), zap.String("requestID", requestID))
		return nil, http.StatusInternalServerError, errors.New("Internal server error")
	}

	return &user, 0, nil
}

func setUser(c *gin.Context, user *model.User) {
	c.Set("userID", user.ID)
	c.Set("user", user)
}

// NewJWTMiddleware rejects requests without a valid bearer token. The
// authenticated user is stored as user and its ID as userID.
func NewJWTMiddleware(d *gorm.DB, tokens *security.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     errNoToken.Error(),
				"requestID": RequestID(c),
			})
			return
		}

		user, code, err := authenticate(c, d, tokens, token)
		if err != nil {
			c.AbortWithStatusJSON(code, gin.H{
				"error":     err.Error(),
				"requestID": RequestID(c),
			})
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// NewOptionalJWTMiddleware attaches the user when a valid bearer token is
// present and lets every other request through anonymously
func NewOptionalJWTMiddleware(d *gorm.DB, tokens *security.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		user, code, err := authenticate(c, d, tokens, token)
		if err != nil {
			if code == http.StatusInternalServerError {
				c.AbortWithStatusJSON(code, gin.H{
					"error":     err.Error(),
					"requestID": RequestID(c),
				})
				return
			}

			c.Next()
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// RequireRole must run after NewJWTMiddleware
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || user.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     errAdminRequired.Error(),
				"requestID": RequestID(c),
			})
			return
		}

		c.Next()
	}
}

// CurrentUser returns the authenticated user or nil
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get("user")
	if !ok {
		return nil
	}

	user, _ := v.(*model.User)
	return user
}

// Actor returns the authenticated user as a policy actor or nil
func Actor(c *gin.Context) *policy.Actor {
	return policy.ActorFromUser(CurrentUser(c))
}
