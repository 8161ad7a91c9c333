package mirror

import (
	"fmt"
	"sort"

	"github.com/mcdev12/voyager/go/internal/models"
	"github.com/mcdev12/voyager/go/internal/multiplayer/events"
)

// Mirror is the local replica of authoritative session state.
// It is owned by the game loop goroutine and is not safe for concurrent use.
type Mirror struct {
	localID     string
	players     map[string]models.Player
	resources   map[string]resourceEntry
	weather     models.Weather
	leaderboard []models.LeaderboardEntry
	initialized bool
}

// resourceEntry tracks whether a collected flag came from the server or from
// a local speculative claim
type resourceEntry struct {
	models.SharedResource
	speculative bool
}

// New creates an empty mirror for the given local player
func New(localID string) *Mirror {
	return &Mirror{
		localID:   localID,
		players:   make(map[string]models.Player),
		resources: make(map[string]resourceEntry),
		weather:   models.WeatherCalm,
	}
}

// LocalID returns the id excluded from the remote player view
func (m *Mirror) LocalID() string {
	return m.localID
}

// SetLocalID changes the local player id and drops any record stored under it
func (m *Mirror) SetLocalID(id string) {
	m.localID = id
	delete(m.players, id)
}

// Initialized reports whether a snapshot has been applied since the last reset
func (m *Mirror) Initialized() bool {
	return m.initialized
}

// Reset discards all state, as if no snapshot had ever arrived
func (m *Mirror) Reset() {
	m.players = make(map[string]models.Player)
	m.resources = make(map[string]resourceEntry)
	m.weather = models.WeatherCalm
	m.leaderboard = nil
	m.initialized = false
}

// ApplySnapshot replaces the whole replica. The diff against the previous
// state is computed first and then applied in one step.
func (m *Mirror) ApplySnapshot(s events.Snapshot) Diff {
	var diff Diff

	nextPlayers := make(map[string]models.Player, len(s.Players))
	for _, p := range s.Players {
		if p.ID == m.localID {
			continue
		}
		nextPlayers[p.ID] = p
	}
	for id, p := range nextPlayers {
		if prev, ok := m.players[id]; !ok {
			diff.PlayersAdded = append(diff.PlayersAdded, id)
		} else if !samePlayer(prev, p) {
			diff.PlayersUpdated = append(diff.PlayersUpdated, id)
		}
	}
	for id := range m.players {
		if _, ok := nextPlayers[id]; !ok {
			diff.PlayersRemoved = append(diff.PlayersRemoved, id)
		}
	}

	nextResources := make(map[string]resourceEntry, len(s.Resources))
	for _, r := range s.Resources {
		nextResources[r.ID] = m.mergeResource(r)
	}
	for id, r := range nextResources {
		if prev, ok := m.resources[id]; !ok {
			diff.ResourcesAdded = append(diff.ResourcesAdded, id)
		} else if prev.SharedResource != r.SharedResource {
			diff.ResourcesUpdated = append(diff.ResourcesUpdated, id)
		}
	}
	for id := range m.resources {
		if _, ok := nextResources[id]; !ok {
			diff.ResourcesRemoved = append(diff.ResourcesRemoved, id)
		}
	}

	weather := s.Weather
	if weather == "" {
		weather = models.WeatherCalm
	}
	diff.WeatherChanged = !m.initialized || weather != m.weather

	m.players = nextPlayers
	m.resources = nextResources
	m.weather = weather
	m.initialized = true

	diff.sort()
	return diff
}

// Apply applies one delta in arrival order. Duplicate deliveries are safe:
// joins upsert, leaves delete if present, moves for unknown ids are ignored.
func (m *Mirror) Apply(msg events.Message) (Diff, error) {
	var diff Diff

	switch msg := msg.(type) {
	case events.Snapshot:
		return m.ApplySnapshot(msg), nil

	case events.PlayerJoined:
		if msg.PlayerID == m.localID {
			return diff, nil
		}
		next := models.Player{
			ID:          msg.PlayerID,
			DisplayName: msg.DisplayName,
			Position:    msg.Position,
			Rotation:    msg.Rotation,
		}
		prev, exists := m.players[msg.PlayerID]
		if exists {
			next.Score = prev.Score
			next.Velocity = prev.Velocity
			if !samePlayer(prev, next) {
				diff.PlayersUpdated = append(diff.PlayersUpdated, msg.PlayerID)
			}
		} else {
			diff.PlayersAdded = append(diff.PlayersAdded, msg.PlayerID)
		}
		m.players[msg.PlayerID] = next

	case events.PlayerLeft:
		if _, ok := m.players[msg.PlayerID]; ok {
			delete(m.players, msg.PlayerID)
			diff.PlayersRemoved = append(diff.PlayersRemoved, msg.PlayerID)
		}

	case events.PlayerMoved:
		p, ok := m.players[msg.PlayerID]
		if !ok {
			// A move before its join must not fabricate a player
			return diff, nil
		}
		p.Position = msg.Position
		p.Rotation = msg.Rotation
		p.Velocity = msg.Velocity
		m.players[msg.PlayerID] = p
		diff.PlayersUpdated = append(diff.PlayersUpdated, msg.PlayerID)

	case events.WeatherChanged:
		if msg.Weather != m.weather {
			m.weather = msg.Weather
			diff.WeatherChanged = true
		}

	case events.ResourceUpdate:
		// Removal before addition so a respawn never collides with its predecessor
		for _, id := range msg.Removed {
			if _, ok := m.resources[id]; ok {
				delete(m.resources, id)
				diff.ResourcesRemoved = append(diff.ResourcesRemoved, id)
			}
		}
		for _, r := range msg.Added {
			prev, exists := m.resources[r.ID]
			next := m.mergeResource(r)
			m.resources[r.ID] = next
			if !exists {
				diff.ResourcesAdded = append(diff.ResourcesAdded, r.ID)
			} else if prev.SharedResource != next.SharedResource {
				diff.ResourcesUpdated = append(diff.ResourcesUpdated, r.ID)
			}
		}

	case events.Leaderboard:
		m.leaderboard = append([]models.LeaderboardEntry(nil), msg.Entries...)
		diff.LeaderboardSet = true

	default:
		return diff, fmt.Errorf("mirror cannot apply %s", msg.Kind())
	}

	diff.sort()
	return diff, nil
}

// mergeResource combines an incoming server record with the current entry.
// A server-asserted collected flag never reverts; a speculative one yields
// to whatever the server says.
func (m *Mirror) mergeResource(r models.SharedResource) resourceEntry {
	prev, ok := m.resources[r.ID]
	if ok && prev.Collected && !prev.speculative {
		r.Collected = true
	}
	return resourceEntry{SharedResource: r}
}

// MarkCollected speculatively flags a resource as collected.
// It returns false when the resource is unknown or already collected.
func (m *Mirror) MarkCollected(id string) bool {
	r, ok := m.resources[id]
	if !ok || r.Collected {
		return false
	}
	r.Collected = true
	r.speculative = true
	m.resources[id] = r
	return true
}

// RevertSpeculative clears a collected flag that only the client had set.
// Server-asserted flags are left alone.
func (m *Mirror) RevertSpeculative(id string) bool {
	r, ok := m.resources[id]
	if !ok || !r.speculative {
		return false
	}
	r.Collected = false
	r.speculative = false
	m.resources[id] = r
	return true
}

// Speculative reports whether the resource's collected flag is unconfirmed
func (m *Mirror) Speculative(id string) bool {
	return m.resources[id].speculative
}

// RemotePlayers returns every non-local player, ordered by id
func (m *Mirror) RemotePlayers() []models.Player {
	out := make([]models.Player, 0, len(m.players))
	for _, p := range m.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Player returns a remote player by id
func (m *Mirror) Player(id string) (models.Player, bool) {
	p, ok := m.players[id]
	return p, ok
}

// PlayerCount returns the number of remote players
func (m *Mirror) PlayerCount() int {
	return len(m.players)
}

// Resources returns every known resource, ordered by id
func (m *Mirror) Resources() []models.SharedResource {
	out := make([]models.SharedResource, 0, len(m.resources))
	for _, r := range m.resources {
		out = append(out, r.SharedResource)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resource returns a resource by id
func (m *Mirror) Resource(id string) (models.SharedResource, bool) {
	r, ok := m.resources[id]
	return r.SharedResource, ok
}

// Weather returns the current session weather
func (m *Mirror) Weather() models.Weather {
	return m.weather
}

// Leaderboard returns the latest high score table
func (m *Mirror) Leaderboard() []models.LeaderboardEntry {
	return append([]models.LeaderboardEntry(nil), m.leaderboard...)
}

func samePlayer(a, b models.Player) bool {
	if a.ID != b.ID || a.DisplayName != b.DisplayName || a.Position != b.Position ||
		a.Rotation != b.Rotation || a.Score != b.Score {
		return false
	}
	switch {
	case a.Velocity == nil && b.Velocity == nil:
		return true
	case a.Velocity == nil || b.Velocity == nil:
		return false
	}
	return *a.Velocity == *b.Velocity
}

func (d *Diff) sort() {
	for _, list := range [][]string{
		d.PlayersAdded, d.PlayersUpdated, d.PlayersRemoved,
		d.ResourcesAdded, d.ResourcesUpdated, d.ResourcesRemoved,
	} {
		sort.Strings(list)
	}
}
