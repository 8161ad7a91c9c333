package reconciler

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/voyager/go/internal/models"
)

// Scene is the renderer side of remote players
type Scene interface {
	Spawn(id string, look Appearance)
	Move(id string, t models.Transform)
	Relabel(id, label string)
	Despawn(id string)
}

// Source lists the remote players the scene should show
type Source interface {
	RemotePlayers() []models.Player
}

// Config tunes remote player smoothing
type Config struct {
	// Rate is the exponential smoothing rate in 1/s; higher converges faster
	Rate float64
	// Epsilon is the distance under which the rendered position snaps to target
	Epsilon float64
	// AngleEpsilon is the yaw difference in radians under which yaw snaps
	AngleEpsilon float64
	// TeleportDistance makes larger jumps snap instead of gliding
	TeleportDistance float64
}

// DefaultConfig returns the default smoothing configuration
func DefaultConfig() Config {
	return Config{
		Rate:             10,
		Epsilon:          0.01,
		AngleEpsilon:     0.001,
		TeleportDistance: 50,
	}
}

type entity struct {
	label    string
	rendered models.Transform
	target   models.Transform
	prev     models.Vec3 // Target position on the previous tick
	hasPrev  bool
}

// Reconciler keeps the scene's remote entities in step with the mirror:
// spawning newcomers, smoothing toward reported transforms and despawning
// players that left. Not safe for concurrent use.
type Reconciler struct {
	scene    Scene
	config   Config
	entities map[string]*entity
}

// New creates a reconciler drawing into scene
func New(scene Scene, config Config) *Reconciler {
	d := DefaultConfig()
	if config.Rate <= 0 {
		config.Rate = d.Rate
	}
	if config.Epsilon <= 0 {
		config.Epsilon = d.Epsilon
	}
	if config.AngleEpsilon <= 0 {
		config.AngleEpsilon = d.AngleEpsilon
	}
	return &Reconciler{
		scene:    scene,
		config:   config,
		entities: make(map[string]*entity),
	}
}

// Tick advances every remote entity by dt seconds toward the state in src
func (r *Reconciler) Tick(src Source, dt float64) {
	players := src.RemotePlayers()
	seen := make(map[string]struct{}, len(players))

	for _, p := range players {
		seen[p.ID] = struct{}{}
		e, ok := r.entities[p.ID]
		if !ok {
			e = r.spawn(p)
		} else if p.DisplayName != "" && p.DisplayName != e.label {
			e.label = p.DisplayName
			r.scene.Relabel(p.ID, e.label)
		}
		r.retarget(e, p, dt)
		r.step(e, dt)
		r.scene.Move(p.ID, e.rendered)
	}

	for id := range r.entities {
		if _, ok := seen[id]; !ok {
			delete(r.entities, id)
			r.scene.Despawn(id)
			log.Debug().Str("player_id", id).Msg("despawned remote player")
		}
	}
}

func (r *Reconciler) spawn(p models.Player) *entity {
	look := AppearanceFor(p.ID, p.DisplayName)
	t := p.Transform()
	e := &entity{label: look.Label, rendered: t, target: t}
	r.entities[p.ID] = e
	r.scene.Spawn(p.ID, look)
	log.Debug().Str("player_id", p.ID).Str("label", look.Label).Msg("spawned remote player")
	return e
}

// retarget takes the mirror's latest transform, deriving velocity when the
// server did not report one
func (r *Reconciler) retarget(e *entity, p models.Player, dt float64) {
	next := p.Transform()
	if p.Velocity == nil {
		next.Velocity = models.Vec3{}
		if e.hasPrev && dt > 0 {
			next.Velocity = next.Position.Sub(e.prev).Scale(1 / dt)
		}
	}
	e.prev = next.Position
	e.hasPrev = true
	e.target = next
}

func (r *Reconciler) step(e *entity, dt float64) {
	e.rendered.Velocity = e.target.Velocity

	dist := e.rendered.Position.DistanceTo(e.target.Position)
	alpha := 1 - math.Exp(-r.config.Rate*dt)
	switch {
	case r.config.TeleportDistance > 0 && dist > r.config.TeleportDistance:
		e.rendered.Position = e.target.Position
	case dist <= r.config.Epsilon:
		e.rendered.Position = e.target.Position
	default:
		e.rendered.Position = e.rendered.Position.Lerp(e.target.Position, alpha)
		if e.rendered.Position.DistanceTo(e.target.Position) <= r.config.Epsilon {
			e.rendered.Position = e.target.Position
		}
	}

	e.rendered.Rotation.X = smoothAngle(e.rendered.Rotation.X, e.target.Rotation.X, alpha, r.config.AngleEpsilon)
	e.rendered.Rotation.Y = smoothAngle(e.rendered.Rotation.Y, e.target.Rotation.Y, alpha, r.config.AngleEpsilon)
	e.rendered.Rotation.Z = smoothAngle(e.rendered.Rotation.Z, e.target.Rotation.Z, alpha, r.config.AngleEpsilon)
}

// smoothAngle turns from toward to along the shortest arc
func smoothAngle(from, to, alpha, eps float64) float64 {
	d := models.AngleDelta(from, to)
	if math.Abs(d) <= eps {
		return to
	}
	return from + d*alpha
}

// Rendered returns the current rendered transform of id
func (r *Reconciler) Rendered(id string) (models.Transform, bool) {
	e, ok := r.entities[id]
	if !ok {
		return models.Transform{}, false
	}
	return e.rendered, true
}

// Len returns the number of live remote entities
func (r *Reconciler) Len() int {
	return len(r.entities)
}

// Clear despawns every entity
func (r *Reconciler) Clear() {
	for id := range r.entities {
		r.scene.Despawn(id)
	}
	r.entities = make(map[string]*entity)
}
