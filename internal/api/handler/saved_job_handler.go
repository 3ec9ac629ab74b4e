package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/jobmatch-be/internal/api/domain"
	"github.com/cuongbtq/jobmatch-be/internal/api/dto"
	"github.com/cuongbtq/jobmatch-be/internal/auth"
	"github.com/cuongbtq/jobmatch-be/internal/geo"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ToggleSavedJob handles POST /api/saved-jobs/:job_id
func (h *Handler) ToggleSavedJob(c *gin.Context) {
	claims, _ := auth.ClaimsFromContext(c.Request.Context())
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		h.respondError(c, http.StatusBadRequest, "errors.invalid_input")
		return
	}

	saved, err := h.storage.ToggleSavedJob(c.Request.Context(), claims.Subject, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			h.respondError(c, http.StatusNotFound, "errors.not_found")
			return
		}
		h.logger.Error("Failed to toggle saved job", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return
	}

	c.JSON(http.StatusOK, dto.ToggleSavedJobResponse{JobID: jobID, Saved: saved})
}

// ListSavedJobs handles GET /api/saved-jobs
func (h *Handler) ListSavedJobs(c *gin.Context) {
	claims, _ := auth.ClaimsFromContext(c.Request.Context())

	jobs, err := h.storage.ListSavedJobs(c.Request.Context(), claims.Subject)
	if err != nil {
		h.logger.Error("Failed to list saved jobs", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return
	}

	out := make([]dto.SavedJobDTO, len(jobs))
	for i, j := range jobs {
		out[i] = dto.SavedJobDTO{
			JobID:       j.JobID,
			Title:       j.Title,
			FactoryName: j.FactoryName,
			Address:     j.Address,
			SalaryText:  geo.FormatSalaryRange(j.SalaryMin, j.SalaryMax),
			SalaryMin:   j.SalaryMin,
			SalaryMax:   j.SalaryMax,
			SavedAt:     j.SavedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"saved_jobs": out})
}
