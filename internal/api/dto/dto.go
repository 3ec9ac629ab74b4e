package dto

import (
	"github.com/cuongbtq/jobmatch-be/internal/billing"
	"github.com/cuongbtq/jobmatch-be/internal/geo"
	"github.com/cuongbtq/jobmatch-be/internal/messaging"
)

// NearbyRequest is the query of the nearby search endpoints. Pointers keep a
// literal 0 coordinate distinguishable from a missing one.
type NearbyRequest struct {
	Lat    *float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng    *float64 `form:"lng" binding:"required,min=-180,max=180"`
	Radius *float64 `form:"radius" binding:"omitempty,min=1,max=200"`
}

type GeocodeRequest struct {
	Query string `form:"q"`
}

type NearbyJobDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	FactoryID   string    `json:"factory_id"`
	FactoryName string    `json:"factory_name"`
	Address     string    `json:"address"`
	SalaryMin   *float64  `json:"salary_min"`
	SalaryMax   *float64  `json:"salary_max"`
	SalaryText  string    `json:"salary_text"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	DistanceKm  float64   `json:"distance_km"`
	Distance    geo.Label `json:"distance"`
}

type NearbyJobsResponse struct {
	Jobs []NearbyJobDTO `json:"jobs"`
}

type NearbyWorkerDTO struct {
	ID         string    `json:"id"`
	FullName   string    `json:"full_name"`
	Skills     []string  `json:"skills"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	DistanceKm float64   `json:"distance_km"`
	Distance   geo.Label `json:"distance"`
}

type NearbyWorkersResponse struct {
	Workers []NearbyWorkerDTO `json:"workers"`
}

type ProfileDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	RoleLabel string `json:"role_label,omitempty"`
	HomePath  string `json:"home_path,omitempty"`
	CreatedAt string `json:"created_at"`

	// Set on /api/me for factories with a plan
	Subscription *billing.Subscription `json:"subscription,omitempty"`
}

type ListUsersRequest struct {
	Role     string `form:"role" binding:"omitempty,oneof=admin factory worker"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListUsersResponse struct {
	Users      []ProfileDTO `json:"users"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type StatsResponse struct {
	Total  int            `json:"total"`
	ByRole map[string]int `json:"by_role"`
}

type SavedJobDTO struct {
	JobID       string   `json:"job_id"`
	Title       string   `json:"title"`
	FactoryName string   `json:"factory_name"`
	Address     string   `json:"address"`
	SalaryText  string   `json:"salary_text"`
	SalaryMin   *float64 `json:"salary_min"`
	SalaryMax   *float64 `json:"salary_max"`
	SavedAt     string   `json:"saved_at"`
}

type ToggleSavedJobResponse struct {
	JobID string `json:"job_id"`
	Saved bool   `json:"saved"`
}

type CreateConversationRequest struct {
	WorkerID  string  `json:"worker_id" binding:"omitempty,uuid"`
	FactoryID string  `json:"factory_id" binding:"omitempty,uuid"`
	JobID     *string `json:"job_id" binding:"omitempty,uuid"`
}

type ListMessagesRequest struct {
	Cursor string `form:"cursor"`
}

type ListMessagesResponse struct {
	Messages   []messaging.Message `json:"messages"`
	HasMore    bool                `json:"has_more"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

type SendMessageRequest struct {
	Body string `json:"body" binding:"required,max=4000"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

type CheckoutRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

type SetLocaleRequest struct {
	Locale string `json:"locale" binding:"required"`
}
