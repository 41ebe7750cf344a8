package validators

import "errors"

const minPasswordLength = 6

var (
	ErrPasswordTooShort = errors.New("Password must be at least 6 characters long")
	ErrPasswordTooLong  = errors.New("Password is too long")
	ErrPasswordEmpty    = errors.New("Password is required")
)

func PasswordValidator(p string) error {
	if p == "" {
		return ErrPasswordEmpty
	}

	if len(p) < minPasswordLength {
		return ErrPasswordTooShort
	}

	if len(p) > 255 {
		return ErrPasswordTooLong
	}

	return nil
}
