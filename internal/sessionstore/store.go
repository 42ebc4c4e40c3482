// Package sessionstore persists the authenticated session across daemon
// restarts. The session is the only state worth keeping; model schemas
// and monitor handles are rebuilt fresh each start.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/homecloud/thinqd/thinq"
)

// ErrNotFound means no session has been persisted yet.
var ErrNotFound = errors.New("session not found")

// Store loads and saves one user's session.
type Store interface {
	Load(ctx context.Context) (thinq.Session, error)
	Save(ctx context.Context, session thinq.Session) error
}

// FileStore keeps the session as a flat key-value JSON file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(_ context.Context) (thinq.Session, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return thinq.Session{}, ErrNotFound
		}
		return thinq.Session{}, fmt.Errorf("read session: %w", err)
	}
	return decode(data)
}

func (s *FileStore) Save(_ context.Context, session thinq.Session) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir session dir: %w", err)
	}
	data, err := encode(session)
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0o600)
}

func encode(session thinq.Session) ([]byte, error) {
	data, err := json.MarshalIndent(session.FlatKV(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

func decode(data []byte) (thinq.Session, error) {
	var kv map[string]string
	if err := json.Unmarshal(data, &kv); err != nil {
		return thinq.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return thinq.SessionFromKV(kv)
}

// Mirror writes through to a primary store and mirrors best-effort to a
// secondary (typically S3). Loads prefer the primary and fall back to the
// mirror, e.g. on a fresh host.
type Mirror struct {
	Primary   Store
	Secondary Store
}

func (m *Mirror) Load(ctx context.Context) (thinq.Session, error) {
	session, err := m.Primary.Load(ctx)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return thinq.Session{}, err
	}
	session, mirrorErr := m.Secondary.Load(ctx)
	if mirrorErr != nil {
		return thinq.Session{}, err
	}
	return session, nil
}

func (m *Mirror) Save(ctx context.Context, session thinq.Session) error {
	if err := m.Primary.Save(ctx, session); err != nil {
		return err
	}
	if err := m.Secondary.Save(ctx, session); err != nil {
		log.Printf("sessionstore: mirror save failed: %v", err)
	}
	return nil
}
