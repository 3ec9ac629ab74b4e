package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/jobmatch-be/internal/api/dto"
	"github.com/cuongbtq/jobmatch-be/internal/auth"
	"github.com/cuongbtq/jobmatch-be/internal/billing"
	"github.com/gin-gonic/gin"
)

// Stripe rejects webhook bodies above this size anyway
const maxWebhookBody = 64 << 10

// ListPlans handles GET /api/plans
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.plans.ListActivePlans(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list plans", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// CreateCheckout handles POST /api/billing/checkout
func (h *Handler) CreateCheckout(c *gin.Context) {
	if h.billing == nil {
		h.logger.Error("Billing not configured")
		h.respondError(c, http.StatusInternalServerError, "errors.billing_unconfigured")
		return
	}

	claims, _ := auth.ClaimsFromContext(c.Request.Context())

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "errors.invalid_input")
		return
	}

	url, err := h.billing.CreateCheckout(c.Request.Context(), claims.Subject, claims.Email, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrPlanNotFound):
			h.respondError(c, http.StatusNotFound, "errors.not_found")
		case errors.Is(err, billing.ErrPlanNotPurchasable):
			h.respondError(c, http.StatusBadRequest, "errors.invalid_input")
		default:
			h.logger.Error("Failed to create checkout", slog.String("error", err.Error()))
			h.respondError(c, http.StatusInternalServerError, "errors.billing_failed")
		}
		return
	}

	c.JSON(http.StatusOK, dto.CheckoutResponse{URL: url})
}

// StripeWebhook handles POST /api/stripe/webhook
func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.billing == nil {
		h.respondError(c, http.StatusInternalServerError, "errors.billing_unconfigured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "errors.invalid_input")
		return
	}

	err = h.billing.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) || errors.Is(err, billing.ErrInvalidEvent) {
			h.logger.Warn("Rejected webhook", slog.String("error", err.Error()))
			h.respondError(c, http.StatusBadRequest, "errors.invalid_input")
			return
		}
		h.logger.Error("Failed to handle webhook", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
