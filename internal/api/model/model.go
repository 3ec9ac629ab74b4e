package model

import (
	"time"

	"github.com/lib/pq"
)

type Profile struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	FullName  string    `db:"full_name"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

// NearbyJob is a row of nearby_jobs(lat, lng, radius_km)
type NearbyJob struct {
	ID          string   `db:"id"`
	Title       string   `db:"title"`
	FactoryID   string   `db:"factory_id"`
	FactoryName string   `db:"factory_name"`
	Address     string   `db:"address"`
	SalaryMin   *float64 `db:"salary_min"`
	SalaryMax   *float64 `db:"salary_max"`
	Lat         float64  `db:"lat"`
	Lng         float64  `db:"lng"`
	DistanceKm  float64  `db:"distance_km"`
}

// NearbyWorker is a row of nearby_workers(lat, lng, radius_km)
type NearbyWorker struct {
	ID         string         `db:"id"`
	FullName   string         `db:"full_name"`
	Skills     pq.StringArray `db:"skills"`
	Lat        float64        `db:"lat"`
	Lng        float64        `db:"lng"`
	DistanceKm float64        `db:"distance_km"`
}

type SavedJob struct {
	JobID       string    `db:"job_id"`
	Title       string    `db:"title"`
	FactoryName string    `db:"factory_name"`
	Address     string    `db:"address"`
	SalaryMin   *float64  `db:"salary_min"`
	SalaryMax   *float64  `db:"salary_max"`
	SavedAt     time.Time `db:"saved_at"`
}

type RoleCount struct {
	Role  string `db:"role"`
	Count int    `db:"count"`
}
