package reconciler

import (
	"math"
	"testing"

	"github.com/mcdev12/voyager/go/internal/models"
)

type fakeScene struct {
	spawned   map[string]Appearance
	moved     map[string]models.Transform
	labels    map[string]string
	despawned []string
}

func newFakeScene() *fakeScene {
	return &fakeScene{
		spawned: map[string]Appearance{},
		moved:   map[string]models.Transform{},
		labels:  map[string]string{},
	}
}

func (s *fakeScene) Spawn(id string, look Appearance) {
	s.spawned[id] = look
	s.labels[id] = look.Label
}
func (s *fakeScene) Move(id string, t models.Transform) { s.moved[id] = t }
func (s *fakeScene) Relabel(id, label string)           { s.labels[id] = label }
func (s *fakeScene) Despawn(id string) {
	delete(s.spawned, id)
	delete(s.moved, id)
	s.despawned = append(s.despawned, id)
}

type fakeSource []models.Player

func (f fakeSource) RemotePlayers() []models.Player { return f }

func at(id string, x, z, yaw float64) models.Player {
	return models.Player{ID: id, DisplayName: id, Position: models.Vec3{X: x, Z: z}, Rotation: models.Rotation{Y: yaw}}
}

const dt = 1.0 / 60

func TestConvergesMonotonicallyToConstantTarget(t *testing.T) {
	scene := newFakeScene()
	r := New(scene, DefaultConfig())

	r.Tick(fakeSource{at("p2", 0, 0, 0)}, dt)
	target := at("p2", 10, 5, 1.2)

	prev := math.Inf(1)
	converged := false
	for i := 0; i < 600; i++ {
		r.Tick(fakeSource{target}, dt)
		rendered, _ := r.Rendered("p2")
		dist := rendered.Position.DistanceTo(target.Position)
		if dist > prev {
			t.Fatalf("tick %d: distance grew from %f to %f", i, prev, dist)
		}
		prev = dist
		if dist == 0 && rendered.Rotation.Y == target.Rotation.Y {
			converged = true
			break
		}
	}
	if !converged {
		t.Fatalf("did not converge, last distance %f", prev)
	}
}

func TestRenderedMatchesSceneMoves(t *testing.T) {
	scene := newFakeScene()
	r := New(scene, DefaultConfig())

	r.Tick(fakeSource{at("p2", 0, 0, 0)}, dt)
	r.Tick(fakeSource{at("p2", 4, 0, 0)}, dt)

	rendered, _ := r.Rendered("p2")
	if scene.moved["p2"] != rendered {
		t.Fatalf("scene got %+v, reconciler holds %+v", scene.moved["p2"], rendered)
	}
	if rendered.Position.X <= 0 || rendered.Position.X >= 4 {
		t.Fatalf("expected a partial step toward the target, got %f", rendered.Position.X)
	}
}

func TestDespawnsOneTickAfterRemoval(t *testing.T) {
	scene := newFakeScene()
	r := New(scene, DefaultConfig())

	r.Tick(fakeSource{at("p2", 0, 0, 0), at("p3", 1, 1, 0)}, dt)
	if len(scene.spawned) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(scene.spawned))
	}

	r.Tick(fakeSource{at("p3", 1, 1, 0)}, dt)

	if _, ok := scene.spawned["p2"]; ok {
		t.Fatal("p2 still rendered after removal")
	}
	if r.Len() != 1 {
		t.Fatalf("expected one live entity, got %d", r.Len())
	}
	if len(scene.despawned) != 1 || scene.despawned[0] != "p2" {
		t.Fatalf("expected p2 despawned, got %v", scene.despawned)
	}
}

func TestAppearanceIsStable(t *testing.T) {
	first := AppearanceFor("4f0c2a7e-9d0b-4e2c-8a31-6a8f7b9e1c55", "")
	again := AppearanceFor("4f0c2a7e-9d0b-4e2c-8a31-6a8f7b9e1c55", "")
	other := AppearanceFor("0b7d51c2-1e4a-4f7b-9c66-2d3e8f0a4b19", "")

	if first != again {
		t.Fatalf("appearance changed between calls: %+v vs %+v", first, again)
	}
	if first.Color == other.Color && first.Hue == other.Hue {
		t.Fatal("different ids should look different")
	}
	if first.Hue < 0 || first.Hue >= 360 {
		t.Fatalf("hue out of range: %f", first.Hue)
	}
	if first.Variant < 0 || first.Variant >= Variants {
		t.Fatalf("variant out of range: %d", first.Variant)
	}
	if first.Label != "Sailor 4f0c2a" {
		t.Fatalf("unexpected fallback label %q", first.Label)
	}
}

func TestRespawnAfterReconnectKeepsAppearance(t *testing.T) {
	scene := newFakeScene()
	r := New(scene, DefaultConfig())

	r.Tick(fakeSource{at("p2", 0, 0, 0)}, dt)
	look := scene.spawned["p2"]
	r.Clear()
	r.Tick(fakeSource{at("p2", 0, 0, 0)}, dt)

	if scene.spawned["p2"] != look {
		t.Fatalf("appearance changed across respawn: %+v vs %+v", look, scene.spawned["p2"])
	}
}

func TestRelabelOnNameChange(t *testing.T) {
	scene := newFakeScene()
	r := New(scene, DefaultConfig())

	r.Tick(fakeSource{at("p2", 0, 0, 0)}, dt)
	renamed := at("p2", 0, 0, 0)
	renamed.DisplayName = "Captain"
	r.Tick(fakeSource{renamed}, dt)

	if scene.labels["p2"] != "Captain" {
		t.Fatalf("expected relabel to Captain, got %q", scene.labels["p2"])
	}
}

func TestTeleportSnaps(t *testing.T) {
	scene := newFakeScene()
	r := New(scene, Config{TeleportDistance: 20})

	r.Tick(fakeSource{at("p2", 0, 0, 0)}, dt)
	r.Tick(fakeSource{at("p2", 100, 0, 0)}, dt)

	rendered, _ := r.Rendered("p2")
	if rendered.Position.X != 100 {
		t.Fatalf("expected snap to 100, got %f", rendered.Position.X)
	}
}

func TestDerivedVelocity(t *testing.T) {
	scene := newFakeScene()
	r := New(scene, DefaultConfig())

	r.Tick(fakeSource{at("p2", 0, 0, 0)}, 0.5)
	r.Tick(fakeSource{at("p2", 2, 0, 1)}, 0.5)

	rendered, _ := r.Rendered("p2")
	if rendered.Velocity != (models.Vec3{X: 4, Z: 2}) {
		t.Fatalf("expected derived velocity (4,0,2), got %+v", rendered.Velocity)
	}

	reported := at("p2", 2, 0, 1)
	reported.Velocity = &models.Vec3{X: -1}
	r.Tick(fakeSource{reported}, 0.5)
	rendered, _ = r.Rendered("p2")
	if rendered.Velocity != (models.Vec3{X: -1}) {
		t.Fatalf("reported velocity must win, got %+v", rendered.Velocity)
	}
}

func TestYawTakesShortestArc(t *testing.T) {
	scene := newFakeScene()
	r := New(scene, DefaultConfig())

	r.Tick(fakeSource{at("p2", 0, 0, 3.0)}, dt)
	r.Tick(fakeSource{at("p2", 0, 0, -3.0)}, dt)

	rendered, _ := r.Rendered("p2")
	// Crossing pi means the yaw grows past 3.0 rather than sweeping through 0
	if rendered.Rotation.Y <= 3.0 {
		t.Fatalf("expected yaw to turn through pi, got %f", rendered.Rotation.Y)
	}
}
