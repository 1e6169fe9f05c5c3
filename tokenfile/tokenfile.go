// Package tokenfile serves bearer credentials stored in a file that another
// process keeps refreshed.
package tokenfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"lasagna"
	"lasagna/internal/credential"
	"lasagna/internal/logging"
)

var ErrEmpty = errors.New("token file is empty")

// Source reads the token at Path and caches it until the file changes.
type Source struct {
	Path   string
	Logger *logging.Logger

	mu     sync.Mutex
	cached string
}

func New(path string, logger *logging.Logger) *Source {
	return &Source{Path: filepath.Clean(path), Logger: logger}
}

// Token returns the cached token, reading the file under a shared lock when
// nothing usable is cached. A cached token that has gone stale is dropped so
// a rotated file is picked up without Watch.
func (s *Source) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != "" && !credential.IsInvalid(s.cached) {
		return s.cached, nil
	}
	s.cached = ""

	lock := flock.New(lockPath(s.Path))
	if err := lock.RLock(); err != nil {
		return "", fmt.Errorf("lock token file: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrEmpty
	}
	s.cached = token
	return token, nil
}

// Invalidate drops the cached token so the next Token call rereads the file.
func (s *Source) Invalidate() {
	s.mu.Lock()
	s.cached = ""
	s.mu.Unlock()
}

// Accessor adapts s for lasagna.New. The request is ignored; the file holds a
// single credential for every socket and channel.
func (s *Source) Accessor() lasagna.CredentialAccessor {
	return func(context.Context, lasagna.CredentialRequest) (string, error) {
		return s.Token()
	}
}

// Watch invalidates the cache whenever the token file is written, replaced or
// removed. The watcher is registered before Watch returns and runs until ctx
// is done.
func (s *Source) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(s.Path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch token directory %s: %w", dir, err)
	}
	s.Logger.Debug("watching token file", logging.Field("path", s.Path))

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				s.handleWatcherEvent(event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.Logger.Warn("token file watcher error", logging.Field("error", err))
			}
		}
	}()
	return nil
}

func (s *Source) handleWatcherEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != s.Path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	s.Logger.Debugf("token file changed: op=%s", event.Op.String())
	s.Invalidate()
}

// Write replaces the token at path under an exclusive lock.
func Write(path string, token string) error {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	lock := flock.New(lockPath(path))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock token file: %w", err)
	}
	defer lock.Unlock()

	if err := os.WriteFile(path, []byte(strings.TrimSpace(token)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

func lockPath(path string) string {
	return path + ".lock"
}
