package domain

import (
	"errors"
)

// Nearby search bounds
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0

	MinRadiusKm     = 1.0
	MaxRadiusKm     = 200.0
	DefaultRadiusKm = 10.0
)

// Admin user list paging
const (
	DefaultUserPageSize = 20
	MaxUserPageSize     = 100
)

// Rate limited route names, used as the key prefix
const (
	RouteGeocode       = "geocode"
	RouteNearbyJobs    = "jobs-nearby"
	RouteNearbyWorkers = "workers-nearby"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrJobNotFound     = errors.New("job not found")
)
