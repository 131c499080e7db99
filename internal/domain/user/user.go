package user

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultPlan is assigned to every new account.
const DefaultPlan = "free"

type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Plan         string    `json:"plan"`
	Balance      float64   `json:"balance"`
	Phone        *string   `json:"phone,omitempty"`
	Joined       time.Time `json:"joined"`
}

// ProfileUpdate is a partial update: nil fields keep their stored value.
// An empty Phone clears the stored phone number.
type ProfileUpdate struct {
	FullName *string
	Email    *string
	Phone    *string
}

func (p ProfileUpdate) IsEmpty() bool {
	return p.FullName == nil && p.Email == nil && p.Phone == nil
}

type RegisterRequest struct {
	FullName string `json:"fullname" binding:"required,min=2,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,max=72"`
}

// Email is only required here: a malformed address fails as a bad credential.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,max=255"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	FullName *string `json:"fullname" binding:"omitempty,min=2,max=255"`
	Email    *string `json:"email" binding:"omitempty,email,max=255"`
	Phone    *string `json:"phone" binding:"omitempty,max=20"`
}

func (r UpdateProfileRequest) ToUpdate() ProfileUpdate {
	return ProfileUpdate{
		FullName: r.FullName,
		Email:    r.Email,
		Phone:    r.Phone,
	}
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,max=72"`
}

// plan is free text; it is deliberately not checked against the catalog.
type UpdatePlanRequest struct {
	Plan string `json:"plan" binding:"required,max=50"`
}

// New builds a fresh account record with the registration defaults.
func New(fullName, email, passwordHash string) User {
	return User{
		ID:           uuid.NewString(),
		FullName:     strings.TrimSpace(fullName),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Plan:         DefaultPlan,
		Balance:      0,
		Joined:       time.Now().UTC(),
	}
}

// NormalizeEmail trims and lower-cases an address so lookups and the
// unique constraint agree on what "the same email" means.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CleanFullName trims a display name and rejects it when fewer than two
// characters remain.
func CleanFullName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < 2 {
		return "", ErrInvalidFullName
	}

	return name, nil
}
