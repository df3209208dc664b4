// Package attach inserts built asset documents into the live scene
// through an ordered fallback chain, under a process-wide mutual
// exclusion guard and a scene-readiness constraint.
package attach

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/roworks/meshusd/types"
	"github.com/roworks/meshusd/usd"
)

// Config tunes the attachment engine.
type Config struct {
	// ReadyTimeout bounds each readiness wait.
	ReadyTimeout time.Duration
	// PollInterval is the readiness probe interval.
	PollInterval time.Duration
	// AssetRoot is the reserved scene subtree assets attach under.
	AssetRoot string
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ReadyTimeout: 30 * time.Second,
		PollInterval: 250 * time.Millisecond,
		AssetRoot:    "/World/RoWorks/Assets",
	}
}

// EventSink receives pipeline events for live subscribers. Publish must
// not block.
type EventSink interface {
	Publish(event types.AssetEvent)
}

// Recorder receives attachment metrics.
type Recorder interface {
	RecordAttachAttempt(method string, succeeded bool, duration time.Duration)
}

// SceneManager is the optional scene-object tracker collaborator.
type SceneManager interface {
	Track(obj types.SceneObject)
}

// SceneManagerHandle is the capability for the optional scene manager,
// resolved once at startup: either Present with a handle or Absent.
type SceneManagerHandle struct {
	mgr SceneManager
}

// ResolveSceneManager resolves the capability. A nil manager yields the
// Absent variant; callers never probe again per call.
func ResolveSceneManager(mgr SceneManager) SceneManagerHandle {
	return SceneManagerHandle{mgr: mgr}
}

// Present reports whether a scene manager is available.
func (h SceneManagerHandle) Present() bool { return h.mgr != nil }

// Track forwards to the manager when present.
func (h SceneManagerHandle) Track(obj types.SceneObject) {
	if h.mgr != nil {
		h.mgr.Track(obj)
	}
}

// mutationGuard is implemented by scene contexts that expose their
// mid-mutation window to the readiness probe.
type mutationGuard interface {
	BeginMutation()
	EndMutation()
}

// Engine runs the attachment fallback chain. Exactly one chain is in
// flight process-wide at any time: the weighted-1 semaphore is held for
// the whole chain, so concurrent uploads attach one at a time in
// acquisition order, and waiters queue without a timeout.
type Engine struct {
	scene      usd.Context
	cfg        Config
	sem        *semaphore.Weighted
	strategies []Strategy
	sceneMgr   SceneManagerHandle
	events     EventSink
	recorder   Recorder
	logger     *zap.Logger
}

// Option configures the engine.
type Option func(*Engine)

// WithEventSink wires the live event feed.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.events = sink }
}

// WithRecorder wires metrics recording.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithSceneManager wires the optional scene-object tracker.
func WithSceneManager(h SceneManagerHandle) Option {
	return func(e *Engine) { e.sceneMgr = h }
}

// WithStrategies replaces the default strategy chain. Used by tests to
// exercise individual strategies.
func WithStrategies(strategies ...Strategy) Option {
	return func(e *Engine) { e.strategies = strategies }
}

// NewEngine creates the attachment engine with the default three-strategy
// chain: reference-by-command, reference-by-direct-edit, placeholder.
func NewEngine(scene usd.Context, cfg Config, logger *zap.Logger, opts ...Option) *Engine {
	log := logger.With(zap.String("component", "attach_engine"))
	e := &Engine{
		scene: scene,
		cfg:   cfg,
		sem:   semaphore.NewWeighted(1),
		strategies: []Strategy{
			&referenceCommand{logger: log},
			&referenceDirect{logger: log},
			&placeholder{logger: log},
		},
		logger: log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TargetPath returns the deterministic insertion path for an asset name.
func (e *Engine) TargetPath(assetName string) string {
	return e.cfg.AssetRoot + "/" + assetName
}

// Attach runs the fallback chain for one asset and returns its terminal
// outcome. The outcome is never an error: a scene that never becomes
// ready degrades to a "ready for manual import" result.
func (e *Engine) Attach(ctx context.Context, req Request) types.AttachOutcome {
	e.publish(req.AssetName, "attaching", types.AttachOutcome{})

	if err := e.sem.Acquire(ctx, 1); err != nil {
		outcome := types.AttachOutcome{
			Succeeded: false,
			Method:    types.AttachNone,
			Message:   fmt.Sprintf("attachment queue wait aborted: %v", err),
		}
		e.publish(req.AssetName, "done", outcome)
		return outcome
	}
	defer e.sem.Release(1)

	targetPath := e.TargetPath(req.AssetName)
	start := time.Now()

	for _, strategy := range e.strategies {
		// Every strategy re-probes readiness independently; a timeout
		// fails this attempt only, not the asset.
		if !e.waitForScene() {
			e.logger.Warn("scene not ready within timeout",
				zap.String("asset", req.AssetName),
				zap.String("strategy", string(strategy.Method())),
				zap.Duration("timeout", e.cfg.ReadyTimeout),
			)
			e.record(strategy.Method(), false, time.Since(start))
			continue
		}

		outcome, err := e.attempt(ctx, strategy, req, targetPath)
		if err != nil {
			e.logger.Warn("attachment strategy failed, falling back",
				zap.String("asset", req.AssetName),
				zap.String("strategy", string(strategy.Method())),
				zap.Error(err),
			)
			e.record(strategy.Method(), false, time.Since(start))
			continue
		}

		e.record(strategy.Method(), true, time.Since(start))
		e.logger.Info("asset attached",
			zap.String("asset", req.AssetName),
			zap.String("strategy", string(strategy.Method())),
			zap.String("prim_path", outcome.PrimPath),
		)
		e.publish(req.AssetName, "done", *outcome)
		e.track(req, *outcome)
		return *outcome
	}

	outcome := types.AttachOutcome{
		Succeeded: false,
		Method:    types.AttachNone,
		PrimPath:  targetPath,
		Message:   "scene never became ready, asset saved and ready for manual import",
	}
	e.publish(req.AssetName, "done", outcome)
	return outcome
}

// attempt runs one strategy with the scene flagged as mid-mutation for
// the duration of the edit.
func (e *Engine) attempt(ctx context.Context, strategy Strategy, req Request, targetPath string) (*types.AttachOutcome, error) {
	if guard, ok := e.scene.(mutationGuard); ok {
		guard.BeginMutation()
		defer guard.EndMutation()
	}
	return strategy.Attempt(ctx, e.scene, req, targetPath)
}

// waitForScene polls the readiness probe at the configured interval until
// the scene is usable or the timeout elapses.
func (e *Engine) waitForScene() bool {
	if e.scene == nil {
		return false
	}
	if e.scene.IsReady() {
		return true
	}
	deadline := time.Now().Add(e.cfg.ReadyTimeout)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for range ticker.C {
		if e.scene.IsReady() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
	}
	return false
}

func (e *Engine) publish(assetName, phase string, outcome types.AttachOutcome) {
	if e.events == nil {
		return
	}
	e.events.Publish(types.AssetEvent{
		AssetName: assetName,
		Phase:     phase,
		Method:    outcome.Method,
		Succeeded: outcome.Succeeded,
		Message:   outcome.Message,
		Timestamp: time.Now(),
	})
}

func (e *Engine) record(method types.AttachMethod, succeeded bool, d time.Duration) {
	if e.recorder != nil {
		e.recorder.RecordAttachAttempt(string(method), succeeded, d)
	}
}

func (e *Engine) track(req Request, outcome types.AttachOutcome) {
	if !e.sceneMgr.Present() {
		return
	}
	status := "completed"
	if !outcome.Succeeded {
		status = "manual_import_required"
	}
	e.sceneMgr.Track(types.SceneObject{
		Name:         req.AssetName,
		Type:         types.SceneObjectType,
		PrimPath:     outcome.PrimPath,
		DocumentPath: req.DocumentPath,
		Imported:     outcome.Succeeded,
		ImportStatus: status,
		CreatedAt:    time.Now(),
	})
}
