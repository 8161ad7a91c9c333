package models

import "fmt"

// ResourceKind represents the category of a shared resource
type ResourceKind string

const (
	ResourceKindTreasure ResourceKind = "treasure"
	ResourceKindHazard   ResourceKind = "hazard"
	ResourceKindPowerup  ResourceKind = "powerup"
)

// Valid reports whether k is one of the known kinds
func (k ResourceKind) Valid() bool {
	switch k {
	case ResourceKindTreasure, ResourceKindHazard, ResourceKindPowerup:
		return true
	}
	return false
}

// Collectible reports whether a player can pick up resources of this kind
func (k ResourceKind) Collectible() bool {
	return k == ResourceKindTreasure || k == ResourceKindPowerup
}

// SharedResource is a session-scoped contested object.
// Collected only ever moves from false to true for a given ID; a respawn
// arrives as a new resource with a new ID.
type SharedResource struct {
	ID        string       `json:"id"`
	Kind      ResourceKind `json:"kind"`
	Variant   string       `json:"type,omitempty"` // 'gold', 'gem', 'chest', 'rock', 'whirlpool'
	Position  Vec3         `json:"position"`
	Value     int          `json:"value,omitempty"`
	Collected bool         `json:"collected,omitempty"`
}

var variantValues = map[string]int{
	"gold":  10,
	"gem":   25,
	"chest": 50,
}

// ScoreValue returns the score credited for collecting r
func (r SharedResource) ScoreValue() int {
	if r.Value > 0 {
		return r.Value
	}
	if v, ok := variantValues[r.Variant]; ok {
		return v
	}
	switch r.Kind {
	case ResourceKindTreasure:
		return 10
	case ResourceKindPowerup:
		return 5
	}
	return 0
}

// Weather is the session-global weather, changed only by the server
type Weather string

const (
	WeatherCalm   Weather = "calm"
	WeatherWindy  Weather = "windy"
	WeatherFoggy  Weather = "foggy"
	WeatherStormy Weather = "stormy"
)

// ParseWeather validates a wire weather value
func ParseWeather(s string) (Weather, error) {
	switch w := Weather(s); w {
	case WeatherCalm, WeatherWindy, WeatherFoggy, WeatherStormy:
		return w, nil
	}
	return "", fmt.Errorf("unknown weather %q", s)
}
