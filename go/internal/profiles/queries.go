package profiles

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sqlc-dev/pqtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type PlayerRow struct {
	PlayerID     string
	Name         string
	SessionID    string
	Score        int32
	ShipDamage   int32
	LastPosition pqtype.NullRawMessage
	LastRotation pqtype.NullRawMessage
	LastActive   time.Time
}

type UpsertPlayerParams struct {
	PlayerID     string
	Name         string
	SessionID    string
	Score        int32
	ShipDamage   int32
	LastPosition pqtype.NullRawMessage
	LastRotation pqtype.NullRawMessage
}

type TopScoresParams struct {
	SessionID string
	Limit     int32
}

type TopScoreRow struct {
	PlayerID   string
	Name       string
	Score      int32
	LastActive time.Time
}

type SessionRow struct {
	SessionID    string
	Weather      string
	PlayersCount int32
	LastUpdated  time.Time
}

// Queries runs the profile SQL against Postgres
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

//go:embed schema.sql
var schema string

// EnsureSchema creates the profile tables when they are missing
func (q *Queries) EnsureSchema(ctx context.Context) error {
	if _, err := q.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply profile schema: %w", err)
	}
	return nil
}

const upsertPlayer = `
INSERT INTO players (
  player_id, name, session_id, score, ship_damage, last_position, last_rotation, last_active
) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (player_id) DO UPDATE SET
  name = EXCLUDED.name,
  session_id = COALESCE(NULLIF(EXCLUDED.session_id, ''), players.session_id),
  score = EXCLUDED.score,
  ship_damage = EXCLUDED.ship_damage,
  last_position = COALESCE(EXCLUDED.last_position, players.last_position),
  last_rotation = COALESCE(EXCLUDED.last_rotation, players.last_rotation),
  last_active = now()
`

func (q *Queries) UpsertPlayer(ctx context.Context, arg UpsertPlayerParams) error {
	_, err := q.db.Exec(ctx, upsertPlayer,
		arg.PlayerID,
		arg.Name,
		arg.SessionID,
		arg.Score,
		arg.ShipDamage,
		arg.LastPosition,
		arg.LastRotation,
	)
	return err
}

const listPlayersBySession = `
SELECT player_id, name, session_id, score, ship_damage, last_position, last_rotation, last_active
FROM players
WHERE session_id = $1
ORDER BY player_id
`

func (q *Queries) ListPlayersBySession(ctx context.Context, sessionID string) ([]PlayerRow, error) {
	rows, err := q.db.Query(ctx, listPlayersBySession, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PlayerRow
	for rows.Next() {
		var i PlayerRow
		if err := rows.Scan(
			&i.PlayerID,
			&i.Name,
			&i.SessionID,
			&i.Score,
			&i.ShipDamage,
			&i.LastPosition,
			&i.LastRotation,
			&i.LastActive,
		); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const topScores = `
SELECT player_id, name, score, last_active
FROM players
WHERE $1::text = '' OR session_id = $1
ORDER BY score DESC, last_active DESC
LIMIT $2
`

func (q *Queries) TopScores(ctx context.Context, arg TopScoresParams) ([]TopScoreRow, error) {
	rows, err := q.db.Query(ctx, topScores, arg.SessionID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TopScoreRow
	for rows.Next() {
		var i TopScoreRow
		if err := rows.Scan(&i.PlayerID, &i.Name, &i.Score, &i.LastActive); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const activeSessions = `
SELECT session_id, COALESCE(weather, ''), players_count, last_updated
FROM game_sessions
WHERE last_updated >= $1
ORDER BY last_updated DESC
`

func (q *Queries) ActiveSessions(ctx context.Context, since time.Time) ([]SessionRow, error) {
	rows, err := q.db.Query(ctx, activeSessions, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SessionRow
	for rows.Next() {
		var i SessionRow
		if err := rows.Scan(&i.SessionID, &i.Weather, &i.PlayersCount, &i.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
