package graph

import (
	"hash/fnv"
	"math"

	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

// Map origin for the demo scenario. Signals without coordinates get a
// deterministic offset from here so repeated runs place incidents at the
// same spots.
const (
	mapOriginLat = 37.78
	mapOriginLng = -122.41
)

// Haversine returns the great-circle distance between two points in km
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// JitteredLocation derives a stable pseudo-random location from a signal id,
// inside a 0.1 degree box at the map origin. The id and its reverse seed the
// two axes so lat and lng vary independently.
func JitteredLocation(signalID string) models.Location {
	return models.Location{
		Lat: mapOriginLat + float64(hash32(signalID)%100)*0.001,
		Lng: mapOriginLng + float64(hash32(reverse(signalID))%100)*0.001,
	}
}

func hash32(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
