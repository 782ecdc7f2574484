package timesheet

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the IUGG mean Earth radius
const EarthRadiusMeters = 6371008.8

// Policy decides what happens to a clock-in outside the site radius
type Policy string

const (
	// PolicyAdvisory lets the clock-in through with a location_mismatch flag
	PolicyAdvisory Policy = "advisory"
	// PolicyEnforce refuses the clock-in
	PolicyEnforce Policy = "enforce"
)

// GeofenceConfig holds the site radii in meters
type GeofenceConfig struct {
	ClockInRadius float64 `yaml:"clock_in_radius"`
	DriftRadius   float64 `yaml:"drift_radius"`
	Policy        Policy  `yaml:"policy"`
}

// DefaultGeofenceConfig returns the standard radii
func DefaultGeofenceConfig() GeofenceConfig {
	return GeofenceConfig{
		ClockInRadius: 150,
		DriftRadius:   500,
		Policy:        PolicyAdvisory,
	}
}

// Validate checks the radii and policy
func (c GeofenceConfig) Validate() error {
	if c.ClockInRadius <= 0 || c.DriftRadius <= 0 {
		return fmt.Errorf("geofence radii must be positive")
	}
	switch c.Policy {
	case PolicyAdvisory, PolicyEnforce:
		return nil
	default:
		return fmt.Errorf("unknown geofence policy %q", c.Policy)
	}
}

// ClockInResult is the outcome of a clock-in location check
type ClockInResult struct {
	Allowed        bool    `json:"allowed"`
	DistanceMeters float64 `json:"distance_meters"`
}

// DriftResult is the outcome of a mid-shift location check
type DriftResult struct {
	Flagged        bool    `json:"flagged"`
	DistanceMeters float64 `json:"distance_meters"`
}

// Geofence checks worker positions against a job site
type Geofence struct {
	cfg GeofenceConfig
}

// NewGeofence creates a geofence validator
func NewGeofence(cfg GeofenceConfig) *Geofence {
	return &Geofence{cfg: cfg}
}

// Policy returns the configured out-of-radius policy
func (g *Geofence) Policy() Policy {
	return g.cfg.Policy
}

// ValidateClockIn allows a clock-in when the worker is within the clock-in radius of the site
func (g *Geofence) ValidateClockIn(site, worker Coordinate) ClockInResult {
	d := Distance(site, worker)
	return ClockInResult{Allowed: d <= g.cfg.ClockInRadius, DistanceMeters: d}
}

// CheckDrift flags a position that has moved beyond the drift radius from the clock-in point
func (g *Geofence) CheckDrift(clockIn, current Coordinate) DriftResult {
	d := Distance(clockIn, current)
	return DriftResult{Flagged: d > g.cfg.DriftRadius, DistanceMeters: d}
}

// Distance is the great-circle distance between a and b in meters
func Distance(a, b Coordinate) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	h = math.Min(1, h)
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
