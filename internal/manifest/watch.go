package manifest

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Event is one reload of a watched manifest. Exactly one of Manifest and Err
// is set.
type Event struct {
	Manifest *Manifest
	Err      error
}

// Watch loads the manifest at path and reloads it on every write. The
// current manifest is emitted first. A reload that fails to load is emitted
// as an Event with Err; a reload whose content is unchanged is skipped.
// The channel closes when ctx is done.
func Watch(ctx context.Context, path string) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	out := make(chan Event)

	go func() {
		defer close(out)
		defer watcher.Close()

		var lastHash string
		emit := func() bool {
			m, err := Load(path)
			if err == nil {
				h, herr := m.Hash()
				if herr == nil && h == lastHash {
					return true
				}
				lastHash = h
			} else {
				lastHash = ""
			}
			select {
			case out <- Event{Manifest: m, Err: err}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !emit() {
					return
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return out, nil
}
