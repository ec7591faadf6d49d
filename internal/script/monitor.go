package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

var (
	// ErrMonitorRunning is returned by Start when the monitor was already started.
	ErrMonitorRunning = errors.New("script monitor already started")
)

// Monitor watches script directories and reloads changed files.
//
// Events are debounced per path: every change restarts that path's timer and
// a single reload runs once the path has been quiet for the debounce period.
// Reloads run on the monitor goroutine, never on the dispatch path.
type Monitor struct {
	reloader Reloader
	fs       afero.Fs
	debounce time.Duration
	reporter *ErrorReporter

	mu         sync.Mutex
	pending    map[string]uint64
	timers     map[string]*time.Timer
	generation uint64
	watcher    *fsnotify.Watcher
	started    bool

	due      chan dueReload
	stopped  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type dueReload struct {
	path       string
	generation uint64
}

// MonitorOption configures a Monitor
type MonitorOption func(*Monitor)

// WithDebounce sets the quiet period before a changed path is reloaded
func WithDebounce(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.debounce = d }
}

// WithMonitorFs checks file existence and walks directories on fs
func WithMonitorFs(fs afero.Fs) MonitorOption {
	return func(m *Monitor) { m.fs = fs }
}

// WithMonitorReporter records directories that cannot be watched
func WithMonitorReporter(er *ErrorReporter) MonitorOption {
	return func(m *Monitor) { m.reporter = er }
}

// NewMonitor creates a monitor that applies changes through reloader
func NewMonitor(reloader Reloader, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		reloader: reloader,
		fs:       afero.NewOsFs(),
		debounce: DefaultReloadDebounce,
		pending:  make(map[string]uint64),
		timers:   make(map[string]*time.Timer),
		due:      make(chan dueReload),
		stopped:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start watches dirs recursively and starts the monitor goroutine. A
// directory that cannot be watched is reported and skipped.
func (m *Monitor) Start(ctx context.Context, dirs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrMonitorRunning
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file system watcher: %w", err)
	}
	m.watcher = watcher
	m.started = true

	for _, dir := range dirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			absDir = dir
		}
		if err := m.watchTree(absDir, false); err != nil {
			m.reportWatchFailure(absDir, err)
			continue
		}
		LogSystem(slog.LevelDebug, "Watching script directory", slog.String("dir", absDir))
	}

	go m.run(ctx)

	LogSystem(slog.LevelInfo, "Started script monitor",
		slog.Int("directories", len(dirs)),
		slog.Duration("debounce", m.debounce),
	)
	return nil
}

// Stop ends the monitor goroutine and cancels pending reloads
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopped)

		m.mu.Lock()
		started := m.started
		for path, timer := range m.timers {
			timer.Stop()
			delete(m.timers, path)
			delete(m.pending, path)
		}
		m.mu.Unlock()

		if started {
			<-m.done
		}
	})
}

// Notify schedules a reload of path after the debounce period. A pending
// reload of the same path is superseded.
func (m *Monitor) Notify(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.stopped:
		return
	default:
	}

	if timer, ok := m.timers[absPath]; ok {
		timer.Stop()
	}

	m.generation++
	generation := m.generation
	m.pending[absPath] = generation
	m.timers[absPath] = time.AfterFunc(m.debounce, func() {
		select {
		case m.due <- dueReload{path: absPath, generation: generation}:
		case <-m.stopped:
		case <-m.done:
		}
	})
}

// run is the monitor goroutine.
func (m *Monitor) run(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		if m.watcher != nil {
			m.watcher.Close()
			m.watcher = nil
		}
		m.mu.Unlock()
		close(m.done)
		LogSystem(slog.LevelInfo, "Script monitor stopped")
	}()

	events, watchErrors := m.watcher.Events, m.watcher.Errors
	for {
		select {
		case <-ctx.Done():
			return

		case <-m.stopped:
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			m.handleFileEvent(event)

		case err, ok := <-watchErrors:
			if !ok {
				return
			}
			slog.Error("File system watcher error", "error", err)

		case d := <-m.due:
			if m.claim(d) {
				m.reload(d.path)
			}
		}
	}
}

// claim reports whether d is still the latest scheduled reload for its path.
func (m *Monitor) claim(d dueReload) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending[d.path] != d.generation {
		return false
	}
	delete(m.pending, d.path)
	delete(m.timers, d.path)
	return true
}

// handleFileEvent processes individual file system events
func (m *Monitor) handleFileEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := m.fs.Stat(event.Name); err == nil && info.IsDir() {
			m.mu.Lock()
			err := m.watchTree(event.Name, true)
			m.mu.Unlock()
			if err != nil {
				m.reportWatchFailure(event.Name, err)
			}
			return
		}
	}

	if event.Op == fsnotify.Chmod || !m.reloader.IsEligible(event.Name) {
		return
	}

	slog.Debug("File system event", "op", event.Op.String(), "path", event.Name)
	m.Notify(event.Name)
}

// reload unloads path and loads it again if the file still exists.
func (m *Monitor) reload(path string) {
	unloaded := m.reloader.Unload(path)

	if _, err := m.fs.Stat(path); err != nil {
		if os.IsNotExist(err) {
			LogHotReloadEvent("remove", path, unloaded, nil)
			return
		}
		LogHotReloadEvent("reload", path, false, err)
		return
	}

	if _, err := m.reloader.Load(path); err != nil {
		LogHotReloadEvent("reload", path, false, err)
		return
	}
	LogHotReloadEvent("reload", path, true, nil)
}

// watchTree adds root and all its subdirectories to the watcher. When
// notifyFiles is set, eligible files already inside are scheduled for load.
// Callers hold mu.
func (m *Monitor) watchTree(root string, notifyFiles bool) error {
	var found []string
	err := afero.Walk(m.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return m.watcher.Add(path)
		}
		if notifyFiles && m.reloader.IsEligible(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(found) > 0 {
		go func() {
			for _, path := range found {
				m.Notify(path)
			}
		}()
	}
	return nil
}

func (m *Monitor) reportWatchFailure(dir string, err error) {
	scriptErr := NewScriptError(ErrorTypeMonitor, dir, "failed to watch script directory", err)
	if m.reporter != nil {
		m.reporter.Report(scriptErr)
		return
	}
	LogError(slog.LevelError, scriptErr)
}
