// Package lockfile guards an environment directory against two bootstraps
// working on it at the same time. The lock is a small JSON file next to the
// environment (the environment itself may not exist yet), created with
// O_EXCL, refreshed by a heartbeat and taken over once it goes stale.
package lockfile

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/paulschiretz/venv-bootstrap/pkg/plog"
	"github.com/paulschiretz/venv-bootstrap/pkg/util"
)

const (
	lockPrefix = ".~"
	lockSuffix = ".bootstrap.lock"
)

// PathFor returns the lock file guarding the environment at absEnvPath.
func PathFor(absEnvPath string) string {
	return filepath.Join(filepath.Dir(absEnvPath), lockPrefix+filepath.Base(absEnvPath)+lockSuffix)
}

// Owner is what a lock file says about the process holding it.
type Owner struct {
	PID         int64     `json:"pid"`
	Hostname    string    `json:"hostname"`
	Environment string    `json:"environment"`
	Started     time.Time `json:"started"`
	LastUpdate  time.Time `json:"lastUpdate"`
	Nonce       string    `json:"nonce,omitempty"`
}

// ErrLockActive is returned when another live process holds the lock.
type ErrLockActive struct {
	PID       int64
	Hostname  string
	Started   time.Time
	TimeSince time.Duration
}

func (e *ErrLockActive) Error() string {
	return fmt.Sprintf("environment is being bootstrapped by PID %d on host '%s' (started %s, last seen %s ago)",
		e.PID, e.Hostname, e.Started.Local().Format(time.DateTime), e.TimeSince.Truncate(time.Second))
}

// ErrLostRace means another process won a stale lock takeover.
var ErrLostRace = errors.New("lost race during stale lock takeover")

// ErrCorruptLockFile means the lock file stayed empty or unparsable across retries.
var ErrCorruptLockFile = errors.New("lock file is corrupt or empty")

// Lock is a held lock. Release must be called once the bootstrap is done.
type Lock struct {
	path  string
	owner Owner

	stop context.CancelFunc
	done chan struct{}

	mu   sync.Mutex
	held bool
}

// Vars so tests can shorten them.
var (
	heartbeatInterval = 30 * time.Second
	staleTimeout      = 3 * heartbeatInterval
	retryDelay        = 100 * time.Millisecond
	maxAttempts       = 3
)

// Acquire takes the lock for the environment at absEnvPath. The parent
// directory must exist. ctx only bounds the acquisition, not the heartbeat.
// It returns *ErrLockActive when a live process holds the lock.
func Acquire(ctx context.Context, absEnvPath string) (*Lock, error) {
	path := PathFor(absEnvPath)

	for range maxAttempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lock, err := create(path, absEnvPath)
		if err == nil {
			return lock.start(), nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file %s: %w", path, err)
		}

		holder, err := readOwner(path)
		switch {
		case err == nil:
			age := time.Since(holder.LastUpdate)
			if age < staleTimeout {
				return nil, &ErrLockActive{
					PID:       holder.PID,
					Hostname:  holder.Hostname,
					Started:   holder.Started,
					TimeSince: age,
				}
			}
			plog.Warn("Found stale bootstrap lock, taking over", "pid", holder.PID, "host", holder.Hostname, "age", age.Truncate(time.Second))
		case errors.Is(err, ErrCorruptLockFile):
			plog.Warn("Found corrupt bootstrap lock, treating as stale", "path", path, "error", err)
		case os.IsNotExist(err):
			// Released between our create and read.
			continue
		default:
			plog.Debug("Could not read lock file, retrying", "path", path, "error", err)
			sleep(ctx, retryDelay)
			continue
		}

		lock, err = takeOver(path, absEnvPath)
		if err == nil {
			return lock.start(), nil
		}
		if errors.Is(err, ErrLostRace) {
			plog.Debug("Lock takeover race lost, retrying")
		} else {
			plog.Warn("Lock takeover failed, retrying", "error", err)
		}
		sleep(ctx, retryDelay)
	}

	return nil, fmt.Errorf("failed to acquire lock %s after %d attempts", path, maxAttempts)
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release stops the heartbeat and removes the lock file. It is safe to call
// more than once.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return
	}
	l.stop()
	<-l.done

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		plog.Warn("Failed to remove lock file", "path", l.path, "error", err)
	} else {
		plog.Debug("Lock released", "path", l.path)
	}
	l.held = false
}

func newOwner(absEnvPath string) (Owner, error) {
	nonce, err := newNonce()
	if err != nil {
		return Owner{}, err
	}
	hostname, err := os.Hostname()
	if err != nil {
		return Owner{}, err
	}
	now := time.Now().UTC()
	return Owner{
		PID:         int64(os.Getpid()),
		Hostname:    hostname,
		Environment: absEnvPath,
		Started:     now,
		LastUpdate:  now,
		Nonce:       nonce,
	}, nil
}

// create claims the lock file with O_EXCL. os.IsExist(err) reports that
// someone else holds it.
func create(path, absEnvPath string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, util.UserWritableFilePerms)
	if err != nil {
		return nil, err
	}

	owner, err := newOwner(absEnvPath)
	if err == nil {
		err = encodeOwner(f, owner)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return &Lock{path: path, owner: owner}, nil
}

// takeOver replaces a stale or corrupt lock atomically, then reads it back to
// see whether this process won.
func takeOver(path, absEnvPath string) (*Lock, error) {
	owner, err := newOwner(absEnvPath)
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(path, owner); err != nil {
		return nil, err
	}

	current, err := readOwner(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read back lock file after takeover: %w", err)
	}
	if current.PID != owner.PID || current.Nonce != owner.Nonce {
		return nil, ErrLostRace
	}
	plog.Debug("Took over stale lock", "path", path)
	return &Lock{path: path, owner: owner}, nil
}

// start removes leftovers of crashed heartbeats and launches the heartbeat.
func (l *Lock) start() *Lock {
	removeStaleTempFiles(l.path)

	ctx, cancel := context.WithCancel(context.Background())
	l.stop = cancel
	l.done = make(chan struct{})
	l.held = true
	go l.heartbeat(ctx)
	return l
}

func (l *Lock) heartbeat(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.owner.LastUpdate = time.Now().UTC()
			if err := writeAtomic(l.path, l.owner); err != nil {
				plog.Warn("Heartbeat failed to update lock file", "path", l.path, "error", err)
			}
		}
	}
}

// writeAtomic writes owner to a temp file in the lock's directory and renames
// it over the lock, so readers never see a partial file.
func writeAtomic(path string, owner Owner) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp lock file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			plog.Warn("Failed to remove temporary lock file", "path", tmp.Name(), "error", err)
		}
	}()

	if err := encodeOwner(tmp, owner); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp lock file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace lock file: %w", err)
	}
	return nil
}

// removeStaleTempFiles deletes temp files older than the stale timeout. Newer
// ones may belong to a heartbeat in flight.
func removeStaleTempFiles(path string) {
	pattern := path + ".*.tmp"
	matches, err := filepath.Glob(pattern)
	if err != nil {
		plog.Warn("Failed to glob for temporary lock files", "pattern", pattern, "error", err)
		return
	}

	threshold := time.Now().Add(-staleTimeout)
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.ModTime().Before(threshold) {
			continue
		}
		plog.Debug("Removing old temporary lock file", "path", match)
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			plog.Warn("Failed to remove leftover temporary lock file", "path", match, "error", err)
		}
	}
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func encodeOwner(w io.Writer, owner Owner) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(owner); err != nil {
		return fmt.Errorf("failed to write lock content: %w", err)
	}
	return nil
}

// readOwner reads the lock file, retrying a few times when it is empty or
// unparsable since a writer may be mid-update on filesystems without atomic
// rename.
func readOwner(path string) (Owner, error) {
	var parseErr error
	for range 3 {
		data, err := os.ReadFile(path)
		if err != nil {
			return Owner{}, err
		}
		if len(data) == 0 {
			parseErr = errors.New("lock file is empty")
		} else {
			var owner Owner
			if parseErr = json.Unmarshal(data, &owner); parseErr == nil {
				return owner, nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return Owner{}, fmt.Errorf("%w: %v", ErrCorruptLockFile, parseErr)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
