package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"tokentrader/internal/application/port"
	"tokentrader/internal/domain/model"
)

const filePrefix = "position_"

// Store persists one JSON file per open position under dir. Writes are
// idempotent overwrites via a rename, so a crash mid-write never leaves a
// torn snapshot behind.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Save(ctx context.Context, p *model.Position) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot marshal %s: %w", p.Symbol, err)
	}

	path := s.path(p.TokenAddress)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("snapshot write %s: %w", p.Symbol, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshot rename %s: %w", p.Symbol, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, address string) error {
	err := os.Remove(s.path(address))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("snapshot delete %s: %w", address, err)
	}
	return nil
}

// LoadAll reads every snapshot present on disk. An unreadable file is logged
// and skipped rather than failing recovery of the rest.
func (s *Store) LoadAll(ctx context.Context) ([]*model.Position, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot dir read: %w", err)
	}

	var out []*model.Position
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			log.Error().Err(err).Str("file", name).Msg("snapshot unreadable, skipped")
			continue
		}
		var p model.Position
		if err := json.Unmarshal(b, &p); err != nil {
			log.Error().Err(err).Str("file", name).Msg("snapshot corrupt, skipped")
			continue
		}
		if p.TokenAddress == "" || p.EntryPrice <= 0 {
			log.Error().Str("file", name).Msg("snapshot missing required fields, skipped")
			continue
		}
		if p.HighestPrice < p.EntryPrice {
			p.HighestPrice = p.EntryPrice
		}
		out = append(out, &p)
	}
	return out, nil
}

func (s *Store) path(address string) string {
	return filepath.Join(s.dir, filePrefix+sanitize(address)+".json")
}

// sanitize keeps addresses filesystem-safe.
func sanitize(address string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, address)
}

var _ port.SnapshotStore = (*Store)(nil)
