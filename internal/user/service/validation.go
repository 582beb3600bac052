package service

import (
	"regexp"
	"strings"

	pkgerrors "codearena/pkg/errors"
)

// Email: requires one @ with a dotted domain, printable ASCII local part.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Password: 8-128 chars, must contain at least one letter and one number, printable ASCII only.
var passwordPattern = regexp.MustCompile(`^[\x21-\x7E]{8,128}$`)

func validateEmail(email string) error {
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return pkgerrors.New(pkgerrors.InvalidEmail)
	}
	return nil
}

func validateFirstName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 32 {
		return pkgerrors.New(pkgerrors.ValidationFailed).WithMessage("first name must be 2-32 characters")
	}
	return nil
}

func validatePassword(password string) error {
	if !passwordPattern.MatchString(password) {
		if len(password) < 8 {
			return pkgerrors.New(pkgerrors.PasswordTooWeak)
		}
		return pkgerrors.New(pkgerrors.InvalidPassword)
	}
	if !hasLetterAndNumber(password) {
		return pkgerrors.New(pkgerrors.PasswordTooWeak)
	}
	return nil
}

func validateLoginPassword(password string) error {
	if password == "" || len(password) > 128 {
		return pkgerrors.New(pkgerrors.InvalidCredentials)
	}
	return nil
}

func hasLetterAndNumber(password string) bool {
	hasLetter := false
	hasNumber := false
	for i := 0; i < len(password); i++ {
		b := password[i]
		if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') {
			hasLetter = true
		} else if b >= '0' && b <= '9' {
			hasNumber = true
		}
		if hasLetter && hasNumber {
			return true
		}
	}
	return false
}
