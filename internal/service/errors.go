package service

import "bitwise74/gallery-api/internal/apperr"

var (
	ErrEmailTaken         = apperr.New(apperr.Conflict, "User already exists with this email")
	ErrInvalidOrExpired   = apperr.New(apperr.InvalidOrExpired, "Invalid or expired OTP")
	ErrInvalidCredentials = apperr.New(apperr.InvalidCredentials, "Invalid email or password")
	ErrNotVerified        = apperr.New(apperr.NotVerified, "Please verify your email first")
	ErrDeactivated        = apperr.New(apperr.Deactivated, "Account is deactivated")
	ErrGoogleAuthFailed   = apperr.New(apperr.AuthFailed, "Google authentication failed")
	ErrUserNotFound       = apperr.New(apperr.NotFound, "User not found")
	ErrMediaNotFound      = apperr.New(apperr.NotFound, "Media not found")
	ErrContactNotFound    = apperr.New(apperr.NotFound, "Contact message not found")
	ErrForbidden          = apperr.New(apperr.Forbidden, "Access denied")
	ErrInvalidID          = apperr.New(apperr.InvalidInput, "Invalid ID format")
)

func invalid(msg string) error {
	return apperr.New(apperr.InvalidInput, msg)
}

func internalErr(msg string, err error) error {
	return apperr.Wrap(apperr.Internal, msg, err)
}
