package policy

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// RuleWatcher reloads the engine's rule set when the rule file changes on
// disk. Writes are debounced because editors produce bursts of events.
type RuleWatcher struct {
	watcher  *fsnotify.Watcher
	engine   *Engine
	path     string
	debounce time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	done     chan struct{}
	stopOnce sync.Once
}

// NewRuleWatcher creates a watcher for the given rule file and starts it.
func NewRuleWatcher(engine *Engine, path string) (*RuleWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch rule file: %w", err)
	}

	rw := &RuleWatcher{
		watcher:  watcher,
		engine:   engine,
		path:     path,
		debounce: 200 * time.Millisecond,
		done:     make(chan struct{}),
	}

	go rw.loop()

	log.Info().Str("path", path).Msg("Policy rule watcher started")

	return rw, nil
}

func (rw *RuleWatcher) loop() {
	for {
		select {
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				rw.scheduleReload()
			}

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Policy rule watcher error")

		case <-rw.done:
			return
		}
	}
}

func (rw *RuleWatcher) scheduleReload() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.timer != nil {
		rw.timer.Stop()
	}
	rw.timer = time.AfterFunc(rw.debounce, rw.reload)
}

func (rw *RuleWatcher) reload() {
	rules, err := LoadRuleSet(rw.path)
	if err != nil {
		// Keep the previous snapshot on a bad write.
		log.Error().Err(err).Str("path", rw.path).Msg("Failed to reload policy rules")
		return
	}

	rw.engine.SetRules(rules)
	log.Info().Str("path", rw.path).Msg("Policy rules reloaded")
}

// Stop stops the watcher.
func (rw *RuleWatcher) Stop() {
	rw.stopOnce.Do(func() {
		close(rw.done)
		rw.watcher.Close()

		rw.mu.Lock()
		if rw.timer != nil {
			rw.timer.Stop()
		}
		rw.mu.Unlock()
	})
}
