// Package geo holds the pure distance and salary helpers shown next to
// job and worker listings.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by Distance
const EarthRadiusKm = 6371.0

// Distance returns the great-circle distance in km between two points,
// rounded to one decimal
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return math.Round(EarthRadiusKm*c*10) / 10
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Label describes how far away something is
type Label struct {
	Text       string `json:"text"`
	Color      string `json:"color"`
	TravelTime string `json:"travel_time"`
}

// minutesPerKm approximates city motorbike traffic (~20 km/h)
const minutesPerKm = 3

var tiers = []struct {
	maxKm float64
	text  string
	color string
}{
	{2, "Rất gần", "green"},
	{5, "Gần", "teal"},
	{10, "Trung bình", "yellow"},
	{20, "Xa", "orange"},
	{math.Inf(1), "Rất xa", "red"},
}

// LabelForDistance buckets km into one of five tiers
func LabelForDistance(km float64) Label {
	for _, tier := range tiers {
		if km <= tier.maxKm {
			return Label{
				Text:       tier.text,
				Color:      tier.color,
				TravelTime: fmt.Sprintf("~%d phút", int(math.Ceil(km*minutesPerKm))),
			}
		}
	}
	// NaN
	last := tiers[len(tiers)-1]
	return Label{Text: last.text, Color: last.color}
}
