package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/apextrades/internal/account"
	"github.com/geocoder89/apextrades/internal/auth"
	"github.com/geocoder89/apextrades/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// AccountService is the slice of account.Service the HTTP layer drives.
type AccountService interface {
	Register(ctx context.Context, in account.RegisterInput) (account.Session, error)
	Login(ctx context.Context, email, password string) (account.Session, error)
	Profile(ctx context.Context, id auth.Identity) (user.User, error)
	UpdateProfile(ctx context.Context, id auth.Identity, upd user.ProfileUpdate) (user.User, error)
	ChangePassword(ctx context.Context, id auth.Identity, current, next string) error
	UpdatePlan(ctx context.Context, id auth.Identity, plan string) (user.User, error)
}

type AuthHandler struct {
	accounts AccountService
}

func NewAuthHandler(accounts AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type sessionResponse struct {
	Message   string    `json:"message"`
	User      user.User `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// bcrypt dominates; leave room for it plus the insert
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	sess, err := h.accounts.Register(cctx, account.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondAccountError(ctx, err, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, sessionResponse{
		Message:   "User registered successfully",
		User:      sess.User,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	sess, err := h.accounts.Login(cctx, req.Email, req.Password)
	if err != nil {
		respondAccountError(ctx, err, "Could not log in")
		return
	}

	ctx.JSON(http.StatusOK, sessionResponse{
		Message:   "Login successful",
		User:      sess.User,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	})
}
