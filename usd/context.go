package usd

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Context models the handle to the live, already-running scene. The
// attachment engine never assumes the scene is usable: every mutating call
// site is preceded by an IsReady probe.
type Context interface {
	// IsReady reports whether the live stage exists, its root layer is
	// reachable, and no mutation is currently in flight.
	IsReady() bool

	// Stage returns the live stage, which may be nil when the scene has
	// not been opened yet.
	Stage() *Stage

	// Commands returns the command-layer interface for scene-level edits.
	Commands() Commander
}

// Commander is the command-layer boundary for scene-level operations. The
// primary attachment strategy goes through it; the direct-edit fallback
// bypasses it and manipulates stage prims itself.
type Commander interface {
	DefinePrim(path, typeName string) error
	DeletePrims(paths []string) error
	AddReference(primPath, assetPath string) error
}

// LiveContext owns the process-wide live stage and its readiness state.
// Mutation flagging lets the readiness probe observe mid-mutation windows.
type LiveContext struct {
	mu       sync.RWMutex
	stage    *Stage
	mutating bool
	logger   *zap.Logger
}

// NewLiveContext opens (creates) the world stage at worldPath and returns
// a ready context for it.
func NewLiveContext(worldPath string, logger *zap.Logger) (*LiveContext, error) {
	if worldPath == "" {
		return nil, fmt.Errorf("world stage path is empty")
	}
	stage := NewStage(worldPath)
	stage.SetMetadata("metersPerUnit", 1.0)
	stage.SetMetadata("upAxis", "Y")
	if _, err := stage.DefinePrim("/World", "Xform"); err != nil {
		return nil, fmt.Errorf("define world root: %w", err)
	}

	return &LiveContext{
		stage:  stage,
		logger: logger.With(zap.String("component", "usd_context")),
	}, nil
}

// IsReady implements Context.
func (c *LiveContext) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stage != nil && c.stage.RootLayer() != nil && !c.mutating
}

// Stage implements Context.
func (c *LiveContext) Stage() *Stage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stage
}

// Commands implements Context.
func (c *LiveContext) Commands() Commander {
	return &stageCommander{ctx: c}
}

// BeginMutation flags the context as mid-mutation; readiness probes fail
// until EndMutation.
func (c *LiveContext) BeginMutation() {
	c.mu.Lock()
	c.mutating = true
	c.mu.Unlock()
}

// EndMutation clears the mid-mutation flag.
func (c *LiveContext) EndMutation() {
	c.mu.Lock()
	c.mutating = false
	c.mu.Unlock()
}

// stageCommander executes command-layer operations directly against the
// live stage.
type stageCommander struct {
	ctx *LiveContext
}

func (sc *stageCommander) DefinePrim(path, typeName string) error {
	stage := sc.ctx.Stage()
	if stage == nil {
		return fmt.Errorf("no live stage")
	}
	_, err := stage.DefinePrim(path, typeName)
	return err
}

func (sc *stageCommander) DeletePrims(paths []string) error {
	stage := sc.ctx.Stage()
	if stage == nil {
		return fmt.Errorf("no live stage")
	}
	for _, p := range paths {
		if err := stage.RemovePrim(p); err != nil {
			return err
		}
	}
	return nil
}

func (sc *stageCommander) AddReference(primPath, assetPath string) error {
	stage := sc.ctx.Stage()
	if stage == nil {
		return fmt.Errorf("no live stage")
	}
	prim := stage.GetPrimAtPath(primPath)
	if prim == nil {
		var err error
		prim, err = stage.DefinePrim(primPath, "Xform")
		if err != nil {
			return err
		}
	}
	prim.AddReference(assetPath)
	return nil
}
