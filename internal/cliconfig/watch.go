package cliconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultWatchDebounce collapses the write bursts editors produce on save.
const DefaultWatchDebounce = 100 * time.Millisecond

// WatchFile calls onChange with the reloaded file each time path is written
// or replaced, until ctx is done. The parent directory is watched so
// editors that save by rename are seen too. A file that fails to load is
// logged and skipped; the previous settings stay in effect.
//
// WatchFile returns an error only when the watch cannot be set up.
func WatchFile(
	ctx context.Context,
	path string,
	debounce time.Duration,
	log zerolog.Logger,
	onChange func(FileConfig),
) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config watcher: watch %s: %w", filepath.Dir(path), err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	reload := func() {
		if ctx.Err() != nil {
			return
		}
		fc, err := LoadFileConfig(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config reload failed, keeping previous settings")
			return
		}
		onChange(fc)
	}

	name := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("config watcher error")
		}
	}
}
