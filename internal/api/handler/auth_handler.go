package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/jobmatch-be/internal/api/domain"
	"github.com/cuongbtq/jobmatch-be/internal/api/dto"
	"github.com/cuongbtq/jobmatch-be/internal/auth"
	"github.com/cuongbtq/jobmatch-be/internal/billing"
	"github.com/cuongbtq/jobmatch-be/internal/i18n"
	"github.com/gin-gonic/gin"
)

const authErrorPath = auth.LoginPath + "?error=auth"

// AuthCallback handles GET /auth/callback?code=
// Exchanges the provider code for a session and sends the browser to the
// home page of the user's role.
func (h *Handler) AuthCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		h.logger.Warn("Auth callback without code")
		c.Redirect(http.StatusFound, authErrorPath)
		return
	}

	verifier, _ := c.Cookie(auth.CodeVerifierCookie)

	session, err := h.provider.ExchangeCode(c.Request.Context(), code, verifier)
	if err != nil {
		h.logger.Error("Failed to exchange auth code", slog.String("error", err.Error()))
		c.Redirect(http.StatusFound, authErrorPath)
		return
	}

	auth.SetSessionCookies(c.Writer, session, h.cookieSecure)

	role, err := h.storage.LookupRole(c.Request.Context(), session.User.ID)
	switch {
	case errors.Is(err, auth.ErrNoRole):
		c.Redirect(http.StatusFound, auth.RegisterPath)
		return
	case err != nil:
		h.logger.Error("Failed to look up role after sign in",
			slog.String("user_id", session.User.ID),
			slog.String("error", err.Error()),
		)
		c.Redirect(http.StatusFound, authErrorPath)
		return
	}

	h.logger.Info("User signed in",
		slog.String("user_id", session.User.ID),
		slog.String("role", string(role)),
	)
	c.Redirect(http.StatusFound, auth.HomePath(role))
}

// Dashboard handles GET /dashboard
// Sends a signed-in browser to its role's home page.
func (h *Handler) Dashboard(c *gin.Context) {
	role, _ := auth.RoleFromContext(c)
	c.Redirect(http.StatusFound, auth.HomePath(role))
}

// Layout handles GET /admin, /factory/dashboard and /worker/dashboard after
// the page gate admitted the caller
func (h *Handler) Layout(c *gin.Context) {
	role, _ := auth.RoleFromContext(c)
	c.JSON(http.StatusOK, gin.H{
		"role":       role,
		"role_label": h.translator.T(i18n.FromRequest(c.Request), "roles."+string(role), nil),
		"home_path":  auth.HomePath(role),
	})
}

// Me handles GET /api/me
func (h *Handler) Me(c *gin.Context) {
	claims, _ := auth.ClaimsFromContext(c.Request.Context())

	profile, err := h.storage.GetProfile(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			h.respondError(c, http.StatusNotFound, "errors.not_found")
			return
		}
		h.logger.Error("Failed to get profile", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return
	}

	out := h.profileDTO(c, profile.ID, profile.Email, profile.FullName, profile.Role, profile.CreatedAt)
	if auth.Role(profile.Role) == auth.RoleFactory && h.plans != nil {
		sub, err := h.plans.GetSubscription(c.Request.Context(), profile.ID)
		switch {
		case err == nil:
			out.Subscription = sub
		case !errors.Is(err, billing.ErrSubscriptionNotFound):
			// the profile is still useful without it
			h.logger.Warn("Failed to get subscription",
				slog.String("factory_id", profile.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	c.JSON(http.StatusOK, out)
}

func (h *Handler) profileDTO(c *gin.Context, id, email, name, role string, createdAt time.Time) dto.ProfileDTO {
	out := dto.ProfileDTO{
		ID:        id,
		Email:     email,
		FullName:  name,
		Role:      role,
		CreatedAt: createdAt.Format(time.RFC3339),
	}
	if r := auth.Role(role); r.Valid() {
		out.RoleLabel = h.translator.T(i18n.FromRequest(c.Request), "roles."+role, nil)
		out.HomePath = auth.HomePath(r)
	}
	return out
}

// SetLocale handles POST /api/locale
func (h *Handler) SetLocale(c *gin.Context) {
	var req dto.SetLocaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "errors.invalid_input")
		return
	}

	loc, ok := i18n.ParseLocale(req.Locale)
	if !ok {
		h.respondError(c, http.StatusBadRequest, "errors.unsupported_locale")
		return
	}

	i18n.SetCookie(c.Writer, loc)
	c.JSON(http.StatusOK, gin.H{"locale": loc})
}
