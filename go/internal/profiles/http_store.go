package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mcdev12/voyager/go/clients"
)

// envelope is the {success, data, error} wrapper every profile endpoint uses
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// HTTPStore talks to the game's REST API
type HTTPStore struct {
	*clients.BaseClient
}

func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		BaseClient: clients.NewBaseClient(baseURL),
	}
}

func (s *HTTPStore) UpsertProfile(ctx context.Context, p Profile) error {
	if err := validate(p); err != nil {
		return err
	}
	body, err := s.PostJSON(ctx, "/api/players", p)
	if err := decode(body, err, nil); err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", p.PlayerID, err)
	}
	return nil
}

func (s *HTTPStore) ListSessionPlayers(ctx context.Context, sessionID string) ([]Profile, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	q := url.Values{"session_id": {sessionID}}
	var players []Profile
	body, err := s.Get(ctx, "/api/players?"+q.Encode())
	if err := decode(body, err, &players); err != nil {
		return nil, fmt.Errorf("failed to list players for session %s: %w", sessionID, err)
	}
	return players, nil
}

func (s *HTTPStore) HighScores(ctx context.Context, sessionID string, limit int) ([]HighScore, error) {
	if limit <= 0 {
		limit = DefaultHighScoreLimit
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}
	var scores []HighScore
	body, err := s.Get(ctx, "/api/highscores?"+q.Encode())
	if err := decode(body, err, &scores); err != nil {
		return nil, fmt.Errorf("failed to get high scores: %w", err)
	}
	return scores, nil
}

func (s *HTTPStore) ActiveSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	body, err := s.Get(ctx, "/api/sessions")
	if err := decode(body, err, &sessions); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// decode unwraps the response envelope into out. Non-2xx answers still carry
// an envelope, so its error text is preferred over the raw body.
func decode(body []byte, reqErr error, out any) error {
	var env envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil && reqErr == nil {
			return fmt.Errorf("%w: malformed response: %v", ErrStoreUnavailable, err)
		}
	}

	if reqErr != nil {
		var status *clients.StatusError
		if errors.As(reqErr, &status) && env.Error != "" {
			return fmt.Errorf("%w: %s (status %d)", ErrStoreUnavailable, env.Error, status.StatusCode)
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, reqErr)
	}
	if !env.Success {
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, env.Error)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: malformed data: %v", ErrStoreUnavailable, err)
	}
	return nil
}
