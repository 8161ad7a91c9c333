package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/voyager/go/internal/models"
)

type Querier interface {
	UpsertPlayer(ctx context.Context, arg UpsertPlayerParams) error
	ListPlayersBySession(ctx context.Context, sessionID string) ([]PlayerRow, error)
	TopScores(ctx context.Context, arg TopScoresParams) ([]TopScoreRow, error)
	ActiveSessions(ctx context.Context, since time.Time) ([]SessionRow, error)
}

// Repository is a Store backed directly by Postgres
type Repository struct {
	queries Querier
	clock   clockwork.Clock
}

func NewRepository(querier Querier, clock clockwork.Clock) *Repository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Repository{
		queries: querier,
		clock:   clock,
	}
}

func (r *Repository) UpsertProfile(ctx context.Context, p Profile) error {
	if err := validate(p); err != nil {
		return err
	}
	position, err := nullJSON(p.Position)
	if err != nil {
		return fmt.Errorf("failed to encode position: %w", err)
	}
	rotation, err := nullJSON(p.Rotation)
	if err != nil {
		return fmt.Errorf("failed to encode rotation: %w", err)
	}

	if err := r.queries.UpsertPlayer(ctx, UpsertPlayerParams{
		PlayerID:     p.PlayerID,
		Name:         p.Name,
		SessionID:    p.SessionID,
		Score:        int32(p.Score),
		ShipDamage:   int32(p.ShipDamage),
		LastPosition: position,
		LastRotation: rotation,
	}); err != nil {
		return fmt.Errorf("%w: failed to upsert player %s: %v", ErrStoreUnavailable, p.PlayerID, err)
	}
	return nil
}

func (r *Repository) ListSessionPlayers(ctx context.Context, sessionID string) ([]Profile, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	rows, err := r.queries.ListPlayersBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list players for session %s: %v", ErrStoreUnavailable, sessionID, err)
	}

	profiles := make([]Profile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, r.dbPlayerToModel(row))
	}
	return profiles, nil
}

func (r *Repository) HighScores(ctx context.Context, sessionID string, limit int) ([]HighScore, error) {
	if limit <= 0 {
		limit = DefaultHighScoreLimit
	}
	rows, err := r.queries.TopScores(ctx, TopScoresParams{SessionID: sessionID, Limit: int32(limit)})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get high scores: %v", ErrStoreUnavailable, err)
	}

	scores := make([]HighScore, 0, len(rows))
	for _, row := range rows {
		scores = append(scores, HighScore{
			PlayerID:   row.PlayerID,
			Name:       row.Name,
			Score:      int(row.Score),
			LastActive: row.LastActive,
		})
	}
	return scores, nil
}

func (r *Repository) ActiveSessions(ctx context.Context) ([]Session, error) {
	rows, err := r.queries.ActiveSessions(ctx, r.clock.Now().Add(-ActiveSessionWindow))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list sessions: %v", ErrStoreUnavailable, err)
	}

	sessions := make([]Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, Session{
			SessionID:    row.SessionID,
			Weather:      models.Weather(row.Weather),
			PlayersCount: int(row.PlayersCount),
			LastUpdated:  row.LastUpdated,
		})
	}
	return sessions, nil
}

func (r *Repository) dbPlayerToModel(row PlayerRow) Profile {
	p := Profile{
		PlayerID:   row.PlayerID,
		Name:       row.Name,
		SessionID:  row.SessionID,
		Score:      int(row.Score),
		ShipDamage: int(row.ShipDamage),
		LastActive: row.LastActive,
	}
	if row.LastPosition.Valid {
		var pos models.Vec3
		if err := json.Unmarshal(row.LastPosition.RawMessage, &pos); err != nil {
			log.Warn().Err(err).Str("player_id", row.PlayerID).Msg("ignoring malformed stored position")
		} else {
			p.Position = &pos
		}
	}
	if row.LastRotation.Valid {
		var rot models.Rotation
		if err := json.Unmarshal(row.LastRotation.RawMessage, &rot); err != nil {
			log.Warn().Err(err).Str("player_id", row.PlayerID).Msg("ignoring malformed stored rotation")
		} else {
			p.Rotation = &rot
		}
	}
	return p
}

func nullJSON[T any](v *T) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}
