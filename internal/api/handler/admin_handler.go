package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/jobmatch-be/internal/api/domain"
	"github.com/cuongbtq/jobmatch-be/internal/api/dto"
	"github.com/cuongbtq/jobmatch-be/internal/api/storage"
	"github.com/cuongbtq/jobmatch-be/internal/pagination"
	"github.com/gin-gonic/gin"
)

// AdminStats handles GET /api/admin/stats
func (h *Handler) AdminStats(c *gin.Context) {
	counts, err := h.storage.CountUsersByRole(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to count users", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return
	}

	resp := dto.StatsResponse{ByRole: map[string]int{"admin": 0, "factory": 0, "worker": 0}}
	for _, rc := range counts {
		resp.ByRole[rc.Role] = rc.Count
		resp.Total += rc.Count
	}

	c.JSON(http.StatusOK, resp)
}

// AdminListUsers handles GET /api/admin/users
// Lists profiles newest first with optional role filter and cursor paging
func (h *Handler) AdminListUsers(c *gin.Context) {
	h.logger.Info("AdminListUsers called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
	)

	var req dto.ListUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		h.respondError(c, http.StatusBadRequest, "errors.invalid_input")
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = domain.DefaultUserPageSize
	}

	if req.PageSize > domain.MaxUserPageSize {
		req.PageSize = domain.MaxUserPageSize
	}

	cursor, err := pagination.Decode(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		h.respondError(c, http.StatusBadRequest, "errors.invalid_input")
		return
	}

	users, err := h.storage.ListUsers(c.Request.Context(), storage.UserFilter{
		Role:     req.Role,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list users", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return
	}

	hasMore := len(users) > req.PageSize
	if hasMore {
		users = users[:req.PageSize]
	}

	out := make([]dto.ProfileDTO, len(users))
	for i, u := range users {
		out[i] = h.profileDTO(c, u.ID, u.Email, u.FullName, u.Role, u.CreatedAt)
	}

	var nextCursor string
	if hasMore {
		last := users[len(users)-1]
		nextCursor = pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}

	c.JSON(http.StatusOK, dto.ListUsersResponse{
		Users:      out,
		NextCursor: nextCursor,
	})
}
