package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/voyager/go/internal/models"
)

var ErrEmptyDisplayName = errors.New("display name cannot be empty")

// DefaultPath is where the identity lives when no path is configured
const DefaultPath = ".voyager/identity.yaml"

// FileStore keeps the player identity in a small YAML file so it survives
// restarts
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path}
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored identity, creating and persisting a fresh one when
// none exists yet
func (s *FileStore) Load() (models.Identity, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		id := models.Identity{
			PlayerID:    uuid.NewString(),
			DisplayName: models.DefaultDisplayName,
		}
		if err := s.save(id); err != nil {
			return models.Identity{}, err
		}
		log.Info().Str("player_id", id.PlayerID).Str("path", s.path).Msg("created new player identity")
		return id, nil
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to read identity file: %w", err)
	}

	var id models.Identity
	if err := yaml.Unmarshal(data, &id); err != nil {
		return models.Identity{}, fmt.Errorf("failed to parse identity file: %w", err)
	}

	dirty := false
	if id.PlayerID == "" {
		id.PlayerID = uuid.NewString()
		dirty = true
	}
	if strings.TrimSpace(id.DisplayName) == "" {
		id.DisplayName = models.DefaultDisplayName
		dirty = true
	}
	if dirty {
		if err := s.save(id); err != nil {
			return models.Identity{}, err
		}
	}
	return id, nil
}

// SetDisplayName persists a new display name and keeps the player id
func (s *FileStore) SetDisplayName(name string) (models.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Identity{}, ErrEmptyDisplayName
	}
	id, err := s.Load()
	if err != nil {
		return models.Identity{}, err
	}
	id.DisplayName = name
	if err := s.save(id); err != nil {
		return models.Identity{}, err
	}
	return id, nil
}

func (s *FileStore) save(id models.Identity) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create identity directory: %w", err)
		}
	}
	data, err := yaml.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace identity file: %w", err)
	}
	return nil
}
