package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/apextrades/internal/auth"
	"github.com/geocoder89/apextrades/internal/domain/user"
	"github.com/geocoder89/apextrades/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	accounts AccountService
}

func NewUserHandler(accounts AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

func identity(ctx *gin.Context) (auth.Identity, bool) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Access denied. No token provided.")
		return auth.Identity{}, false
	}
	return id, true
}

func (h *UserHandler) GetUser(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.accounts.Profile(cctx, id)
	if err != nil {
		respondAccountError(ctx, err, "Could not load user")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, u)
}

func (h *UserHandler) UpdateUser(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	var req user.UpdateProfileRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.accounts.UpdateProfile(cctx, id, req.ToUpdate())
	if err != nil {
		respondAccountError(ctx, err, "Could not update user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    u,
	})
}

func (h *UserHandler) ChangePassword(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	var req user.ChangePasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	// two bcrypt runs: verify current, hash new
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.accounts.ChangePassword(cctx, id, req.CurrentPassword, req.NewPassword); err != nil {
		respondAccountError(ctx, err, "Could not update password")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Password updated successfully",
	})
}

func (h *UserHandler) UpdatePlan(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	var req user.UpdatePlanRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.accounts.UpdatePlan(cctx, id, req.Plan)
	if err != nil {
		respondAccountError(ctx, err, "Could not update plan")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Plan updated successfully",
		"user":    u,
	})
}
