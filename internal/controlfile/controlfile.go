// Package controlfile lets other processes steer a running monitor. `focusd
// break` and `focusd disable` drop a request file into the control
// directory; the watcher turns each file into an inbox response and removes
// it.
package controlfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/norm/focusd/internal/control"
	"github.com/norm/focusd/internal/logging"
)

// Request file names inside the control directory.
const (
	BreakFile   = "break"
	DisableFile = "disable"
)

// Watcher monitors the control directory.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	inbox   *control.Inbox
}

// NewWatcher creates a watcher that posts into inbox.
func NewWatcher(dir string, inbox *control.Inbox) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{dir: dir, watcher: watcher, inbox: inbox}, nil
}

// Start watches until ctx is done. Request files written before Start are
// leftovers from an earlier run and are discarded.
func (w *Watcher) Start(ctx context.Context) error {
	started := time.Now()
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.readExisting(started)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				logging.Info("controlfile", "watch error: %v", err)
			}
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.handle(event.Name)
			}
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// readExisting handles requests that raced the watch being added and drops
// the ones older than started.
func (w *Watcher) readExisting(started time.Time) {
	for _, name := range []string{DisableFile, BreakFile} {
		path := filepath.Join(w.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !info.ModTime().Before(started) {
			w.handle(path)
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.Info("controlfile", "remove stale %s: %v", path, err)
			continue
		}
		logging.Info("controlfile", "discarded stale %s request from %s", name, info.ModTime().Format(time.RFC3339))
	}
}

func (w *Watcher) handle(path string) {
	resp := responseFor(filepath.Base(path))
	if resp == control.ResponseNone {
		return
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			// Already handled by an earlier event for the same file.
			return
		}
		logging.Info("controlfile", "remove %s: %v", path, err)
	}
	logging.Info("controlfile", "received %s request", resp)
	w.inbox.Post(control.Event{Response: resp, Source: "controlfile"})
}

func responseFor(name string) control.Response {
	switch name {
	case BreakFile:
		return control.ResponseBreak
	case DisableFile:
		return control.ResponseDisable
	}
	return control.ResponseNone
}

// Request asks a running monitor to take a break or disable by writing the
// matching file into dir.
func Request(dir string, resp control.Response) error {
	var name string
	switch resp {
	case control.ResponseBreak:
		name = BreakFile
	case control.ResponseDisable:
		name = DisableFile
	default:
		return fmt.Errorf("unsupported control request %q", resp)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), nil, 0o644)
}
