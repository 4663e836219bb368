package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/forgecrew/foreman/internal/constants"
	"github.com/forgecrew/foreman/internal/ctxutil"
	"github.com/forgecrew/foreman/internal/domain"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
)

// LockTimeout is the maximum duration to wait for acquiring a file lock.
const LockTimeout = 5 * time.Second

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// Store defines the interface for orchestrator state persistence.
// Implementations must serialize writes to the durable medium: a
// read-modify-write cycle never races across concurrent completions.
type Store interface {
	// Load reads the aggregate state document.
	// Returns ErrStateNotFound if no document exists yet.
	Load(ctx context.Context) (*State, error)

	// Save persists the aggregate state document (atomic write).
	Save(ctx context.Context, st *State) error

	// AppendErrorLog appends an entry to the durable error log (JSON-lines).
	AppendErrorLog(ctx context.Context, entry domain.ErrorLogEntry) error

	// AppendLesson appends a lesson to the lesson log (JSON-lines).
	AppendLesson(ctx context.Context, lesson domain.Lesson) error

	// AppendProgress appends a human-readable line to the progress log.
	AppendProgress(ctx context.Context, line string) error

	// Backup writes a timestamped full copy of the state document and
	// returns the backup file name.
	Backup(ctx context.Context, st *State) (string, error)
}

// FileStore implements Store using the local filesystem.
type FileStore struct {
	home string // Usually ~/.foreman
}

// NewFileStore creates a FileStore rooted at the given home directory.
// If home is empty, uses the default ~/.foreman directory.
func NewFileStore(home string) (*FileStore, error) {
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(userHome, constants.ForemanHome)
	}
	if err := os.MkdirAll(home, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create foreman home: %w", err)
	}
	return &FileStore{home: home}, nil
}

// Home returns the store's root directory.
func (s *FileStore) Home() string {
	return s.home
}

// Load reads the aggregate state document.
func (s *FileStore) Load(ctx context.Context) (*State, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	lockFile, err := s.acquireLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	data, err := os.ReadFile(s.statePath()) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load state: %w", foremanerrors.ErrStateNotFound)
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	st, err := DecodeState(data)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Save persists the aggregate state document atomically.
func (s *FileStore) Save(ctx context.Context, st *State) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	if st == nil {
		return fmt.Errorf("failed to save state: state %w", foremanerrors.ErrEmptyValue)
	}

	lockFile, err := s.acquireLock(ctx)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	st.UpdatedAt = time.Now().UTC()

	data, err := EncodeState(st)
	if err != nil {
		return err
	}

	if err := atomicWrite(s.statePath(), data); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// AppendErrorLog appends an entry to the durable error log.
func (s *FileStore) AppendErrorLog(ctx context.Context, entry domain.ErrorLogEntry) error {
	entry.Timestamp = entry.Timestamp.UTC()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to append error log: %w", err)
	}
	return s.appendLine(ctx, s.errorLogPath(), data)
}

// AppendLesson appends a lesson to the lesson log.
func (s *FileStore) AppendLesson(ctx context.Context, lesson domain.Lesson) error {
	lesson.Timestamp = lesson.Timestamp.UTC()
	data, err := json.Marshal(lesson)
	if err != nil {
		return fmt.Errorf("failed to append lesson: %w", err)
	}
	return s.appendLine(ctx, s.lessonLogPath(), data)
}

// AppendProgress appends a human-readable line to the progress log.
func (s *FileStore) AppendProgress(ctx context.Context, line string) error {
	if line == "" {
		return fmt.Errorf("failed to append progress: line %w", foremanerrors.ErrEmptyValue)
	}
	return s.appendLine(ctx, s.progressLogPath(), []byte(line))
}

// Backup writes a timestamped full copy of the state document.
func (s *FileStore) Backup(ctx context.Context, st *State) (string, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return "", err
	}

	if st == nil {
		return "", fmt.Errorf("failed to back up state: state %w", foremanerrors.ErrEmptyValue)
	}

	if err := os.MkdirAll(s.backupsDir(), dirPerm); err != nil {
		return "", fmt.Errorf("failed to create backups directory: %w", err)
	}

	data, err := EncodeState(st)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("state-%s.json", time.Now().UTC().Format("20060102-150405.000"))
	if err := atomicWrite(filepath.Join(s.backupsDir(), name), data); err != nil {
		return "", fmt.Errorf("failed to back up state: %w", err)
	}
	return name, nil
}

// appendLine appends a single line to the given file, creating it if needed.
func (s *FileStore) appendLine(ctx context.Context, path string, line []byte) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	lockFile, err := s.acquireLock(ctx)
	if err != nil {
		return fmt.Errorf("failed to append: %w", err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if len(line) > 0 && line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync log: %w", err)
	}
	return nil
}

// Helper methods for path construction

func (s *FileStore) statePath() string {
	return filepath.Join(s.home, constants.StateFileName)
}

func (s *FileStore) errorLogPath() string {
	return filepath.Join(s.home, constants.ErrorLogFileName)
}

func (s *FileStore) lessonLogPath() string {
	return filepath.Join(s.home, constants.LessonLogFileName)
}

func (s *FileStore) progressLogPath() string {
	return filepath.Join(s.home, constants.ProgressLogFileName)
}

func (s *FileStore) backupsDir() string {
	return filepath.Join(s.home, constants.BackupsDir)
}

func (s *FileStore) lockPath() string {
	return filepath.Join(s.home, constants.StateFileName+".lock")
}

// acquireLock acquires an exclusive file lock on the store.
// It respects context cancellation during the lock acquisition retry loop.
func (s *FileStore) acquireLock(ctx context.Context) (*os.File, error) {
	f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_RDWR, filePerm) //#nosec G302,G304 -- lock file needs write access, path is constructed internally
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(LockTimeout)
	for {
		if err := ctxutil.Canceled(ctx); err != nil {
			_ = f.Close()
			return nil, err
		}

		// LOCK_EX = exclusive lock, LOCK_NB = non-blocking
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return f, nil
		}

		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock: %w", foremanerrors.ErrLockTimeout)
		}

		// Wait a bit before retrying
		time.Sleep(50 * time.Millisecond)
	}
}

// releaseLock releases a file lock.
func (s *FileStore) releaseLock(f *os.File) error {
	if f == nil {
		return nil
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return f.Close()
}

// atomicWrite writes data to a file atomically using write-then-rename.
// Uses filePerm (0o600) for secure file permissions.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	// Sync to disk (ensure data is persisted before rename)
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
