package server

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/lox/holdemtables/internal/fileutil"
	"github.com/lox/holdemtables/internal/game"
)

// FileStateStore keeps one JSON file of table state per room. It suits a
// single server without Redis.
type FileStateStore struct {
	dir string
}

// NewFileStateStore creates dir if needed.
func NewFileStateStore(dir string) (*FileStateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}
	return &FileStateStore{dir: dir}, nil
}

func (f *FileStateStore) path(roomID string) string {
	return filepath.Join(f.dir, url.PathEscape(roomID)+".json")
}

func (f *FileStateStore) SaveState(_ context.Context, roomID string, st game.TableState) error {
	data, err := st.Encode()
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(f.path(roomID), data, 0o600)
}

func (f *FileStateStore) LoadState(_ context.Context, roomID string) (*game.TableState, error) {
	data, err := fileutil.ReadFileIfExists(f.path(roomID))
	if err != nil || data == nil {
		return nil, err
	}
	st, err := game.DecodeState(data)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", roomID, err)
	}
	return &st, nil
}

func (f *FileStateStore) RemoveState(_ context.Context, roomID string) error {
	return fileutil.RemoveIfExists(f.path(roomID))
}
