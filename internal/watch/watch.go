// Package watch re-evaluates posture continuously: on a fixed interval and
// whenever one of the known root indicator paths changes on disk.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/gzhole/hostguard/internal/engine"
)

// debounceDefault coalesces bursts of file events into one evaluation.
const debounceDefault = 200 * time.Millisecond

// Trigger names what caused an evaluation.
type Trigger string

const (
	TriggerStart    Trigger = "start"
	TriggerInterval Trigger = "interval"
	TriggerFile     Trigger = "file"
)

// Event is one evaluation as seen by the watcher.
type Event struct {
	Trigger Trigger
	Posture engine.Posture
	// Changed is true when the verdict or the set of fired probes differs
	// from the previous evaluation. The first evaluation always counts as
	// changed.
	Changed bool
	// Paths are the files whose events triggered a TriggerFile evaluation.
	Paths []string
}

// Watcher drives periodic and file-triggered evaluations.
type Watcher struct {
	evaluate func() engine.Posture
	handler  func(Event)
	paths    []string
	interval time.Duration
	limiter  *rate.Limiter
	debounce time.Duration

	last    *engine.Posture
	watched map[string]bool
}

// New creates a watcher. paths are the indicator files to watch; their
// existing parent directories are monitored. Evaluations are spaced at
// least minInterval apart.
func New(evaluate func() engine.Posture, handler func(Event), paths []string, interval, minInterval time.Duration) *Watcher {
	watched := make(map[string]bool, len(paths))
	for _, p := range paths {
		watched[filepath.Clean(p)] = true
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Watcher{
		evaluate: evaluate,
		handler:  handler,
		paths:    paths,
		interval: interval,
		limiter:  rate.NewLimiter(limit, 1),
		debounce: debounceDefault,
		watched:  watched,
	}
}

// WatchDirs returns the distinct parent directories of paths that exist.
// Directories that appear later are only picked up by the interval.
func WatchDirs(paths []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range paths {
		dir := filepath.Dir(filepath.Clean(p))
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// Run evaluates once immediately, then on every tick and file change until
// ctx is cancelled. If file notifications are unavailable it runs on the
// interval alone.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.run(ctx, TriggerStart, nil); err != nil {
		return nil
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if fw, err := fsnotify.NewWatcher(); err == nil {
		defer func() { _ = fw.Close() }()
		for _, dir := range WatchDirs(w.paths) {
			_ = fw.Add(dir)
		}
		events, errs = fw.Events, fw.Errors
	}

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()
	defer debounceTimer.Stop()
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-tick:
			if err := w.run(ctx, TriggerInterval, nil); err != nil {
				return nil
			}

		case <-debounceTimer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)
			if err := w.run(ctx, TriggerFile, changed); err != nil {
				return nil
			}

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !w.watched[filepath.Clean(event.Name)] {
				continue
			}
			pending[event.Name] = true
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)

		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		}
	}
}

// run waits for the limiter, evaluates and reports. It only fails when ctx
// is done.
func (w *Watcher) run(ctx context.Context, trigger Trigger, paths []string) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	p := w.evaluate()
	changed := w.last == nil || differs(*w.last, p)
	w.last = &p
	if w.handler != nil {
		w.handler(Event{Trigger: trigger, Posture: p, Changed: changed, Paths: paths})
	}
	return nil
}

func differs(a, b engine.Posture) bool {
	if a.Verdict != b.Verdict || a.Debugged != b.Debugged || a.Capture != b.Capture {
		return true
	}
	return !slices.Equal(fired(a), fired(b))
}

func fired(p engine.Posture) []string {
	var names []string
	for _, r := range p.Probes {
		if r.Detected {
			names = append(names, r.Name)
		}
	}
	return names
}
