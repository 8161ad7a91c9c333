package main

import (
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/voyager/go/internal/models"
	"github.com/mcdev12/voyager/go/internal/multiplayer/collection"
	"github.com/mcdev12/voyager/go/internal/multiplayer/gateway"
	"github.com/mcdev12/voyager/go/internal/multiplayer/reconciler"
)

// course is a circular patrol around Center
type course struct {
	Center models.Vec3
	Radius float64
	Speed  float64 // world units per second
}

func defaultCourse() course {
	return course{Radius: 40, Speed: 8}
}

// at returns the transform after elapsed seconds on the course
func (c course) at(elapsed float64) models.Transform {
	angle := elapsed * c.Speed / c.Radius
	pos := models.Vec3{
		X: c.Center.X + c.Radius*math.Cos(angle),
		Y: c.Center.Y,
		Z: c.Center.Z + c.Radius*math.Sin(angle),
	}
	// Heading is tangent to the circle
	vel := models.Vec3{X: -math.Sin(angle), Z: math.Cos(angle)}.Scale(c.Speed)
	return models.Transform{
		Position: pos,
		Rotation: models.Rotation{Y: math.Atan2(vel.X, vel.Z)},
		Velocity: vel,
	}
}

// player is what the bot needs from the multiplayer client
type player interface {
	ReportTransform(t models.Transform)
	Collect(resourceID string) (bool, error)
	ReportStatus(shipDamage int) error
	Resources() []models.SharedResource
}

const (
	collectRadius = 6.0
	hazardRadius  = 4.0
	hazardDamage  = 10
)

// bot sails a course, collects whatever it passes and takes damage from hazards
type bot struct {
	player  player
	course  course
	elapsed float64

	damage int
	hit    map[string]bool
}

func newBot(p player, c course) *bot {
	return &bot{player: p, course: c, hit: make(map[string]bool)}
}

// Step advances the bot by dt and reports the new transform
func (b *bot) Step(dt time.Duration) {
	b.elapsed += dt.Seconds()
	t := b.course.at(b.elapsed)
	b.player.ReportTransform(t)

	for _, r := range b.player.Resources() {
		if r.Collected {
			continue
		}
		dist := r.Position.DistanceTo(t.Position)
		switch {
		case r.Kind.Collectible() && dist <= collectRadius:
			b.collect(r)
		case r.Kind == models.ResourceKindHazard && dist <= hazardRadius && !b.hit[r.ID]:
			b.hit[r.ID] = true
			b.damage += hazardDamage
			if err := b.player.ReportStatus(b.damage); err != nil && !errors.Is(err, gateway.ErrNotJoined) {
				log.Warn().Err(err).Msg("status update failed")
			}
		}
	}
}

func (b *bot) collect(r models.SharedResource) {
	if _, err := b.player.Collect(r.ID); err != nil {
		if errors.Is(err, collection.ErrAlreadyCollected) || errors.Is(err, gateway.ErrNotJoined) {
			return
		}
		log.Debug().Err(err).Str("resource_id", r.ID).Msg("collect rejected")
	}
}

// logFeedback reports collection outcomes in the log
type logFeedback struct{}

func (logFeedback) Collected(r models.SharedResource) {
	log.Info().Str("resource_id", r.ID).Str("variant", r.Variant).Int("value", r.ScoreValue()).Msg("collected")
}

func (logFeedback) Reverted(r models.SharedResource) {
	log.Info().Str("resource_id", r.ID).Msg("collection reverted, another player got there first")
}

// logScene stands in for a renderer
type logScene struct{}

func (logScene) Spawn(id string, look reconciler.Appearance) {
	log.Info().Str("player_id", id).Str("label", look.Label).Int("variant", look.Variant).Msg("ship appeared")
}

func (logScene) Move(string, models.Transform) {}

func (logScene) Relabel(id, label string) {
	log.Info().Str("player_id", id).Str("label", label).Msg("ship renamed")
}

func (logScene) Despawn(id string) {
	log.Info().Str("player_id", id).Msg("ship left")
}
