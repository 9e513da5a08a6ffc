package storage

// state.go: snapshot completo del engine en un único fichero JSON.
//
// Escritura atómica: se serializa a `<path>.tmp` y se renombra encima del
// fichero final, así un crash a mitad de escritura nunca deja un JSON truncado.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
)

const backupLayout = "20060102-150405"

// ErrCorruptState indica que el fichero de estado no se pudo decodificar.
// Load lo aparta a `<path>.corrupt-<timestamp>` antes de devolver el error.
var ErrCorruptState = errors.New("corrupt state file")

// FileStore implementa ports.StateStore sobre un fichero JSON.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore crea el store. El directorio se crea en el primer Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path devuelve la ruta del fichero de estado.
func (s *FileStore) Path() string {
	return s.path
}

// Load lee el snapshot. ok=false si el fichero todavía no existe.
// Un fichero ilegible se aparta para que el próximo Save no lo pise.
func (s *FileStore) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("storage.Load: read %q: %w", s.path, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		moved, mvErr := s.quarantine(time.Now())
		if mvErr != nil {
			return domain.Snapshot{}, false, fmt.Errorf("storage.Load: decode %q: %w: %v (%v)", s.path, ErrCorruptState, err, mvErr)
		}
		return domain.Snapshot{}, false, fmt.Errorf("storage.Load: decode %q, moved to %q: %w: %v", s.path, moved, ErrCorruptState, err)
	}
	snap.Normalize()
	return snap, true, nil
}

// quarantine renombra el fichero actual a `<path>.corrupt-<timestamp>`. El caller tiene mu.
func (s *FileStore) quarantine(now time.Time) (string, error) {
	dst := s.path + ".corrupt-" + now.UTC().Format(backupLayout)
	if err := os.Rename(s.path, dst); err != nil {
		return "", fmt.Errorf("move aside: %w", err)
	}
	return dst, nil
}

// Save escribe el snapshot de forma atómica (tmp + rename).
func (s *FileStore) Save(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("storage.Save: %w", err)
	}

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("storage.Save: encode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage.Save: mkdir %q: %w", dir, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("storage.Save: write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("storage.Save: rename: %w", err)
	}
	return nil
}

// Backup copia el fichero actual a `<dir>/state-<timestamp>.json`.
// Devuelve "" sin error si no hay nada que copiar.
func (s *FileStore) Backup(dir string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("storage.Backup: open %q: %w", s.path, err)
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage.Backup: mkdir %q: %w", dir, err)
	}
	dst := filepath.Join(dir, "state-"+now.UTC().Format(backupLayout)+".json")
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("storage.Backup: create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("storage.Backup: copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("storage.Backup: close: %w", err)
	}
	return dst, nil
}

// Reset guarda una copia en dir y deja un snapshot vacío en su lugar.
func (s *FileStore) Reset(ctx context.Context, dir string, now time.Time) (string, error) {
	backup, err := s.Backup(dir, now)
	if err != nil {
		return "", err
	}
	fresh := domain.Snapshot{
		Timestamp:  now,
		Statistics: domain.NewStatistics(),
	}
	fresh.Normalize()
	if err := s.Save(ctx, fresh); err != nil {
		return backup, fmt.Errorf("storage.Reset: %w", err)
	}
	return backup, nil
}
