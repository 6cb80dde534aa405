package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/bfengine/assetpipe/internal/asset"
	"github.com/bfengine/assetpipe/internal/catalog"
	"github.com/bfengine/assetpipe/internal/event"
	"github.com/bfengine/assetpipe/internal/library"
	"github.com/bfengine/assetpipe/internal/scanner"
)

// Runner executes one materialized command and returns the tool's combined
// output. The default runner shells out; tests substitute their own.
type Runner func(ctx context.Context, cmd Command) ([]byte, error)

func execRunner(ctx context.Context, cmd Command) ([]byte, error) {
	return exec.CommandContext(ctx, cmd.Tool, cmd.Args...).CombinedOutput() //nolint:gosec // G204: args are materialized from catalog records.
}

// Scheduler accepts compile submissions and runs at most maxConcurrency
// external processes at a time. Submissions never block the submitter and
// are never retried: a failed compile leaves the asset dirty for the
// operator to resubmit.
type Scheduler struct {
	lib    library.Library
	cat    *catalog.Catalog
	scan   *scanner.Scanner
	events *event.Broadcaster

	maxConcurrency int64
	sem            *semaphore.Weighted
	queued         atomic.Int64
	etaMS          atomic.Int64
	running        atomic.Int64

	// Per-identifier exclusion: two submissions for the same asset must not
	// race over the output file, so each task takes the identifier's lock
	// before competing for a global permit.
	locks idLocks

	// ToolOverrides maps tool names to executable paths (settings record).
	ToolOverrides map[string]string

	// Run executes materialized commands. Overridable for tests.
	Run Runner

	ctx context.Context
	wg  sync.WaitGroup
}

// New returns a scheduler bounded to maxConcurrency concurrent tools.
// Jobs inherit ctx: cancelling it kills in-flight tools.
func New(ctx context.Context, lib library.Library, cat *catalog.Catalog, scan *scanner.Scanner, events *event.Broadcaster, maxConcurrency int) *Scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Scheduler{
		lib:            lib,
		cat:            cat,
		scan:           scan,
		events:         events,
		maxConcurrency: int64(maxConcurrency),
		sem:            semaphore.NewWeighted(int64(maxConcurrency)),
		locks:          idLocks{held: make(map[uuid.UUID]*sync.Mutex)},
		Run:            execRunner,
		ctx:            ctx,
	}
}

// MaxConcurrency reports the configured bound.
func (s *Scheduler) MaxConcurrency() int { return int(s.maxConcurrency) }

// Enqueue submits an identifier for compilation and returns immediately.
func (s *Scheduler) Enqueue(id uuid.UUID) {
	eta := s.cat.CompilationETA(id)
	s.queued.Add(1)
	s.etaMS.Add(eta.Milliseconds())
	s.publishStatus()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.compile(id, eta)
	}()
}

// Wait blocks until every submitted job has completed. Intended for
// shutdown and tests.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) publishStatus() {
	s.events.Publish(event.NewCompilerStatus(s.queued.Load(), s.running.Load(), s.etaMS.Load()))
}

func (s *Scheduler) compile(id uuid.UUID, eta time.Duration) {
	defer func() {
		s.etaMS.Add(-eta.Milliseconds())
		s.queued.Add(-1)
		s.publishStatus()
	}()

	s.events.Publish(event.NewAssetCompilationStatus(id, event.StateQueued, ""))

	a, ok := s.cat.Get(id)
	if !ok {
		// Submit/delete race: the asset vanished between Enqueue and now.
		slog.Error("Compile submission for missing asset", "id", id)
		return
	}

	unlock := s.locks.lock(id)
	defer unlock()

	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		slog.Debug("Compile cancelled before start", "id", id, "err", err)
		return
	}
	s.running.Add(1)
	defer func() {
		s.running.Add(-1)
		s.sem.Release(1)
	}()

	s.events.Publish(event.NewAssetCompilationStatus(id, event.StateCompiling, ""))

	cmd, err := Materialize(a, s.lib, s.ToolOverrides)
	if err != nil {
		slog.Error("Cannot materialize compile command", "id", id, "err", err)
		s.events.Publish(event.NewAssetCompilationStatus(id, event.StateError, err.Error()))
		return
	}

	startTS := time.Now().UTC()
	start := time.Now()
	out, runErr := s.Run(s.ctx, cmd)
	elapsed := time.Since(start)

	var errText string
	switch {
	case runErr == nil:
		s.events.Publish(event.NewAssetCompilationStatus(id, event.StateCompiled, ""))
	default:
		var exit *exec.ExitError
		if errors.As(runErr, &exit) {
			errText = fmt.Sprintf("Process execution failed with code %d", exit.ExitCode())
			slog.Warn("Compile tool failed", "id", id, "code", exit.ExitCode(), "output", string(out))
		} else {
			errText = fmt.Sprintf("Cannot run sub-process: %v", runErr)
			slog.Warn("Compile tool could not be launched", "id", id, "err", runErr)
		}
		s.events.Publish(event.NewAssetCompilationStatus(id, event.StateError, errText))
	}

	s.cat.InsertCompilation(asset.Compilation{
		ID:        id,
		Timestamp: startTS,
		Duration:  asset.Duration{Duration: elapsed},
		Command:   cmd.String(),
		Error:     errText,
	})

	s.scan.Recompute(id)
}

// idLocks is a reference-counted lock table keyed by identifier.
type idLocks struct {
	mu   sync.Mutex
	held map[uuid.UUID]*sync.Mutex
	refs map[uuid.UUID]int
}

func (l *idLocks) lock(id uuid.UUID) (unlock func()) {
	l.mu.Lock()
	if l.refs == nil {
		l.refs = make(map[uuid.UUID]int)
	}
	m, ok := l.held[id]
	if !ok {
		m = &sync.Mutex{}
		l.held[id] = m
	}
	l.refs[id]++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		l.refs[id]--
		if l.refs[id] == 0 {
			delete(l.held, id)
			delete(l.refs, id)
		}
		l.mu.Unlock()
	}
}
