package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/jobmatch-be/internal/api/domain"
	"github.com/cuongbtq/jobmatch-be/internal/api/dto"
	"github.com/cuongbtq/jobmatch-be/internal/geo"
	"github.com/cuongbtq/jobmatch-be/internal/geocode"
	"github.com/gin-gonic/gin"
)

// Geocode handles GET /api/geocode?q=
func (h *Handler) Geocode(c *gin.Context) {
	var req dto.GeocodeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "errors.invalid_input")
		return
	}

	h.logger.Debug("Geocode called", slog.String("query", req.Query))

	fc, err := h.geocoder.Forward(c.Request.Context(), req.Query)
	if err != nil {
		if errors.Is(err, geocode.ErrNotConfigured) {
			h.logger.Error("Geocoding token not configured")
			h.respondError(c, http.StatusInternalServerError, "errors.geocode_unconfigured")
			return
		}
		h.logger.Error("Failed to geocode", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.geocode_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"features": fc.Features})
}

// bindNearby parses and range-checks lat, lng and radius
func (h *Handler) bindNearby(c *gin.Context) (lat, lng, radius float64, ok bool) {
	var req dto.NearbyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Debug("Invalid nearby query",
			slog.String("query", c.Request.URL.RawQuery),
			slog.String("error", err.Error()),
		)
		h.respondError(c, http.StatusBadRequest, "errors.invalid_coordinates")
		return 0, 0, 0, false
	}

	radius = domain.DefaultRadiusKm
	if req.Radius != nil {
		radius = *req.Radius
	}
	return *req.Lat, *req.Lng, radius, true
}

// NearbyJobs handles GET /api/jobs/nearby?lat&lng&radius
func (h *Handler) NearbyJobs(c *gin.Context) {
	lat, lng, radius, ok := h.bindNearby(c)
	if !ok {
		return
	}

	jobs, err := h.storage.NearbyJobs(c.Request.Context(), lat, lng, radius)
	if err != nil {
		h.logger.Error("Failed to load nearby jobs", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.nearby_failed")
		return
	}

	resp := dto.NearbyJobsResponse{Jobs: make([]dto.NearbyJobDTO, len(jobs))}
	for i, j := range jobs {
		resp.Jobs[i] = dto.NearbyJobDTO{
			ID:          j.ID,
			Title:       j.Title,
			FactoryID:   j.FactoryID,
			FactoryName: j.FactoryName,
			Address:     j.Address,
			SalaryMin:   j.SalaryMin,
			SalaryMax:   j.SalaryMax,
			SalaryText:  geo.FormatSalaryRange(j.SalaryMin, j.SalaryMax),
			Lat:         j.Lat,
			Lng:         j.Lng,
			DistanceKm:  j.DistanceKm,
			Distance:    geo.LabelForDistance(j.DistanceKm),
		}
	}

	c.JSON(http.StatusOK, resp)
}

// NearbyWorkers handles GET /api/workers/nearby?lat&lng&radius
func (h *Handler) NearbyWorkers(c *gin.Context) {
	lat, lng, radius, ok := h.bindNearby(c)
	if !ok {
		return
	}

	workers, err := h.storage.NearbyWorkers(c.Request.Context(), lat, lng, radius)
	if err != nil {
		h.logger.Error("Failed to load nearby workers", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.nearby_failed")
		return
	}

	resp := dto.NearbyWorkersResponse{Workers: make([]dto.NearbyWorkerDTO, len(workers))}
	for i, w := range workers {
		skills := []string(w.Skills)
		if skills == nil {
			skills = []string{}
		}
		resp.Workers[i] = dto.NearbyWorkerDTO{
			ID:         w.ID,
			FullName:   w.FullName,
			Skills:     skills,
			Lat:        w.Lat,
			Lng:        w.Lng,
			DistanceKm: w.DistanceKm,
			Distance:   geo.LabelForDistance(w.DistanceKm),
		}
	}

	c.JSON(http.StatusOK, resp)
}
