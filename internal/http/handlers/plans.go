package handlers

import (
	"net/http"

	"github.com/geocoder89/apextrades/internal/domain/plan"
	"github.com/gin-gonic/gin"
)

// ListPlans serves the static plan catalog and the accepted payment networks.
func ListPlans(ctx *gin.Context) {
	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"plans":    plan.Catalog(),
		"networks": plan.Networks(),
		"featured": plan.DefaultID,
	})
}

// GetPlan resolves unknown ids to the featured plan, as the payment page does.
func GetPlan(ctx *gin.Context) {
	p, matched := plan.Lookup(ctx.Param("id"))

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"plan":     p,
		"matched":  matched,
		"networks": plan.Networks(),
	})
}
