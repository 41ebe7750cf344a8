package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitwise74/gallery-api/internal/apperr"
	"bitwise74/gallery-api/internal/metrics"
	"bitwise74/gallery-api/internal/model"
	"bitwise74/gallery-api/pkg/security"
	"bitwise74/gallery-api/pkg/util"
	"bitwise74/gallery-api/pkg/validators"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Accounts drives the account lifecycle: registration, OTP verification,
// logins and password resets. A code is only ever consumed through a single
// conditional UPDATE so two concurrent verifications can't both succeed.
type Accounts struct {
	DB       *gorm.DB
	Argon    *security.ArgonHash
	Tokens   *security.TokenIssuer
	OTP      *security.OTPIssuer
	Notifier Notifier
	Verifier IdentityVerifier
	Now      func() time.Time
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func (s *Accounts) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}

	return time.Now().UTC()
}

// Register creates a pending account and mails it a verification code. If
// the code can't be delivered nothing is persisted.
func (s *Accounts) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)

	if name == "" {
		return nil, invalid("Name is required")
	}

	if err := validators.EmailValidator(email); err != nil {
		return nil, invalid(err.Error())
	}

	if err := validators.PasswordValidator(in.Password); err != nil {
		return nil, invalid(err.Error())
	}

	var count int64
	err := s.DB.WithContext(ctx).
		Model(&model.User{}).
		Where("email = ?", email).
		Count(&count).
		Error
	if err != nil {
		return nil, internalErr("Failed to check if user is registered", err)
	}

	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := s.Argon.GenerateFromPassword(in.Password)
	if err != nil {
		return nil, internalErr("Failed to hash password", err)
	}

	userID, err := util.NewID()
	if err != nil {
		return nil, internalErr("Failed to generate user ID", err)
	}

	code, expires, err := s.OTP.Issue()
	if err != nil {
		return nil, internalErr("Failed to generate OTP", err)
	}

	user := &model.User{
		ID:           userID,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Active:       true,
		Verified:     false,
		OTP:          &code,
		OTPExpires:   &expires,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}

			return internalErr("Failed to create user", err)
		}

		return s.deliver(ctx, email, code, PurposeVerification)
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// VerifyOTP consumes a verification code. Unknown email, wrong code, expired
// code and an already used code all give ErrInvalidOrExpired.
func (s *Accounts) VerifyOTP(ctx context.Context, email, code string) (*AuthResult, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)

	if email == "" || code == "" {
		return nil, invalid("Email and OTP are required")
	}

	// Only pending accounts match, a reset code issued to a verified account
	// stays valid for ResetPassword. The active flag is left alone so an
	// account deactivated before verifying stays that way.
	res := s.DB.WithContext(ctx).
		Model(&model.User{}).
		Where("email = ? AND otp = ? AND otp_expires > ? AND verified = ?", email, code, s.now(), false).
		Updates(map[string]any{
			"verified":    true,
			"otp":         nil,
			"otp_expires": nil,
		})
	if res.Error != nil {
		return nil, internalErr("Failed to verify OTP", res.Error)
	}

	if res.RowsAffected == 0 {
		return nil, ErrInvalidOrExpired
	}

	var user model.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, internalErr("Failed to load verified user", err)
	}

	if !user.Active {
		return nil, ErrDeactivated
	}

	return s.session(&user)
}

func (s *Accounts) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("Email and password are required")
	}

	var user model.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}

		return nil, internalErr("Failed to find user", err)
	}

	// Google-only accounts have no password to compare against
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.Argon.VerifyPasswd(password, user.PasswordHash)
	if err != nil {
		return nil, internalErr("Failed to verify password", err)
	}

	if !ok {
		return nil, ErrInvalidCredentials
	}

	if !user.Verified {
		return nil, ErrNotVerified
	}

	if !user.Active {
		return nil, ErrDeactivated
	}

	if s.Argon.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, &user, password)
	}

	return s.session(&user)
}

// rehash upgrades a stored hash to the current argon parameters. Failure
// is logged only since the login itself already succeeded.
func (s *Accounts) rehash(ctx context.Context, user *model.User, password string) {
	hash, err := s.Argon.GenerateFromPassword(password)
	if err == nil {
		err = s.DB.WithContext(ctx).Model(user).Update("password_hash", hash).Error
	}

	if err != nil {
		zap.L().Warn("Failed to upgrade password hash", zap.String("userID", user.ID), zap.Error(err))
	}
}

// GoogleAuth signs a user in with a Google ID token, linking it to an
// existing account with the same email or creating a new verified one
func (s *Accounts) GoogleAuth(ctx context.Context, idToken string) (*AuthResult, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, invalid("Google token is required")
	}

	id, err := s.Verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, apperr.Wrap(apperr.AuthFailed, ErrGoogleAuthFailed.Msg, err)
	}

	email := normalizeEmail(id.Email)

	user, err := s.findGoogleUser(ctx, id.Subject, email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		user, err = s.createGoogleUser(ctx, id, email)
		if err != nil {
			return nil, err
		}
	} else if err := s.linkGoogle(ctx, user, id); err != nil {
		return nil, err
	}

	if !user.Active {
		return nil, ErrDeactivated
	}

	return s.session(user)
}

func (s *Accounts) findGoogleUser(ctx context.Context, subject, email string) (*model.User, error) {
	var user model.User

	err := s.DB.WithContext(ctx).Where("google_id = ?", subject).First(&user).Error
	if err == nil {
		return &user, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internalErr("Failed to find user", err)
	}

	err = s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	return nil, internalErr("Failed to find user", err)
}

func (s *Accounts) createGoogleUser(ctx context.Context, id *Identity, email string) (*model.User, error) {
	userID, err := util.NewID()
	if err != nil {
		return nil, internalErr("Failed to generate user ID", err)
	}

	name := strings.TrimSpace(id.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	user := &model.User{
		ID:       userID,
		Name:     name,
		Email:    email,
		Role:     model.RoleUser,
		Active:   true,
		Verified: true,
		GoogleID: id.Subject,
		Avatar:   id.Picture,
	}

	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}

		return nil, internalErr("Failed to create user", err)
	}

	return user, nil
}

// linkGoogle backfills the Google subject and avatar. The provider has
// attested the email, so a pending account becomes verified.
func (s *Accounts) linkGoogle(ctx context.Context, user *model.User, id *Identity) error {
	updates := map[string]any{}

	if user.GoogleID == "" {
		updates["google_id"] = id.Subject
		user.GoogleID = id.Subject
	}

	if user.Avatar == "" && id.Picture != "" {
		updates["avatar"] = id.Picture
		user.Avatar = id.Picture
	}

	if !user.Verified {
		updates["verified"] = true
		updates["otp"] = nil
		updates["otp_expires"] = nil
		user.Verified = true
		user.OTP = nil
		user.OTPExpires = nil
	}

	if len(updates) == 0 {
		return nil
	}

	err := s.DB.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", user.ID).
		Updates(updates).
		Error
	if err != nil {
		return internalErr("Failed to link Google account", err)
	}

	return nil
}

// ForgotPassword issues a reset code for an existing account and returns the
// normalized email it was sent to
func (s *Accounts) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", invalid("Email is required")
	}

	var user model.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}

		return "", internalErr("Failed to find user", err)
	}

	code, expires, err := s.OTP.Issue()
	if err != nil {
		return "", internalErr("Failed to generate OTP", err)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{
				"otp":         code,
				"otp_expires": expires,
			}).
			Error
		if err != nil {
			return internalErr("Failed to store OTP", err)
		}

		return s.deliver(ctx, email, code, PurposePasswordReset)
	})
	if err != nil {
		return "", err
	}

	return email, nil
}

// ResetPassword replaces the password when code is live for email. The new
// password is validated before the code is consumed.
func (s *Accounts) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)

	if email == "" || code == "" || newPassword == "" {
		return invalid("Email, OTP, and new password are required")
	}

	if err := validators.PasswordValidator(newPassword); err != nil {
		return invalid(err.Error())
	}

	hash, err := s.Argon.GenerateFromPassword(newPassword)
	if err != nil {
		return internalErr("Failed to hash password", err)
	}

	res := s.DB.WithContext(ctx).
		Model(&model.User{}).
		Where("email = ? AND otp = ? AND otp_expires > ?", email, code, s.now()).
		Updates(map[string]any{
			"password_hash": hash,
			"otp":           nil,
			"otp_expires":   nil,
		})
	if res.Error != nil {
		return internalErr("Failed to reset password", res.Error)
	}

	if res.RowsAffected == 0 {
		return ErrInvalidOrExpired
	}

	return nil
}

func (s *Accounts) Me(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, internalErr("Failed to find user", err)
	}

	return &user, nil
}

func (s *Accounts) SetRole(ctx context.Context, email string, role model.Role) error {
	if role != model.RoleUser && role != model.RoleAdmin {
		return invalid("Invalid role")
	}

	return s.updateByEmail(ctx, email, map[string]any{"role": role})
}

func (s *Accounts) SetActive(ctx context.Context, email string, active bool) error {
	return s.updateByEmail(ctx, email, map[string]any{"active": active})
}

func (s *Accounts) updateByEmail(ctx context.Context, email string, updates map[string]any) error {
	res := s.DB.WithContext(ctx).
		Model(&model.User{}).
		Where("email = ?", normalizeEmail(email)).
		Updates(updates)
	if res.Error != nil {
		return internalErr("Failed to update user", res.Error)
	}

	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ClearExpiredCodes drops codes that can no longer be redeemed
func (s *Accounts) ClearExpiredCodes(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).
		Model(&model.User{}).
		Where("otp_expires IS NOT NULL AND otp_expires <= ?", s.now()).
		Updates(map[string]any{
			"otp":         nil,
			"otp_expires": nil,
		})
	if res.Error != nil {
		return 0, res.Error
	}

	return res.RowsAffected, nil
}

func (s *Accounts) deliver(ctx context.Context, to, code string, purpose Purpose) error {
	if err := s.Notifier.SendOTP(ctx, to, code, purpose); err != nil {
		metrics.OTPDeliveryFailures.Inc()
		zap.L().Warn("Failed to deliver OTP", zap.String("purpose", string(purpose)), zap.Error(err))

		return apperr.Wrap(apperr.DeliveryFailed, "Failed to send OTP email", err)
	}

	metrics.OTPIssued.WithLabelValues(string(purpose)).Inc()
	return nil
}

func (s *Accounts) session(user *model.User) (*AuthResult, error) {
	token, err := s.Tokens.Issue(user.ID)
	if err != nil {
		return nil, internalErr("Failed to generate JWT auth token", err)
	}

	return &AuthResult{
		Token: token,
		User:  user,
	}, nil
}
