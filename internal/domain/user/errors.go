package user

import "errors"

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already exists")
	ErrWeakPassword       = errors.New("password must be 8 to 72 bytes long with at least one uppercase letter, one number, and one special character")
	ErrInvalidFullName    = errors.New("fullname must be at least 2 characters")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIncorrectPassword  = errors.New("current password is incorrect")
	ErrUnauthenticated    = errors.New("missing access token")
	ErrForbidden          = errors.New("invalid or expired access token")
)
