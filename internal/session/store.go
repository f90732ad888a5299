package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/api"
)

// State - всё, что клиент хранит между запусками.
type State struct {
	AccessToken     string     `json:"accessToken,omitempty"`
	AccessExpiresAt time.Time  `json:"accessExpiresAt,omitempty"`
	RefreshToken    string     `json:"refreshToken,omitempty"`
	User            *api.User  `json:"user,omitempty"`
	Cart            *api.Cart  `json:"cart,omitempty"`
	CartSyncedAt    *time.Time `json:"cartSyncedAt,omitempty"`
}

// Store сохраняет состояние сессии на устройстве.
type Store interface {
	Load() (State, error)
	Save(State) error
	Clear() error
}

// FileStore хранит состояние в JSON-файле с правами 0600.
type FileStore struct {
	path string
}

// NewFileStore создаёт хранилище в указанном файле.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath возвращает путь к файлу состояния в пользовательском каталоге конфигурации.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "shopmall", "session.json"), nil
}

// Load читает состояние. Отсутствующий файл означает пустое состояние.
func (s *FileStore) Load() (State, error) {
	var st State

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return st, fmt.Errorf("read session file: %w", err)
	}

	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("decode session file: %w", err)
	}
	return st, nil
}

// Save атомарно перезаписывает файл состояния.
func (s *FileStore) Save(st State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	return os.Rename(tmp.Name(), s.path)
}

// Clear удаляет файл состояния.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// MemoryStore хранит состояние в памяти процесса.
type MemoryStore struct {
	mu sync.Mutex
	st State
}

// Load возвращает текущее состояние.
func (m *MemoryStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st, nil
}

// Save заменяет состояние.
func (m *MemoryStore) Save(st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st
	return nil
}

// Clear сбрасывает состояние.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = State{}
	return nil
}
