package validators

import (
	"errors"
	"unicode/utf8"
)

var (
	ErrNameLength    = errors.New("Name must be between 2 and 50 characters")
	ErrMessageLength = errors.New("Message must be between 10 and 1000 characters")
	ErrNotesTooLong  = errors.New("Admin notes cannot exceed 500 characters")
)

func NameValidator(n string) error {
	if l := utf8.RuneCountInString(n); l < 2 || l > 50 {
		return ErrNameLength
	}

	return nil
}

func MessageValidator(m string) error {
	if l := utf8.RuneCountInString(m); l < 10 || l > 1000 {
		return ErrMessageLength
	}

	return nil
}

func AdminNotesValidator(n string) error {
	if utf8.RuneCountInString(n) > 500 {
		return ErrNotesTooLong
	}

	return nil
}
