package attach

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roworks/meshusd/types"
	"github.com/roworks/meshusd/usd"
)

// Request identifies the asset to attach.
type Request struct {
	AssetName    string
	DocumentPath string
}

// Strategy is one way of inserting a built asset into the live scene.
// Strategies are tried in fixed order; the first success wins.
type Strategy interface {
	Method() types.AttachMethod
	Attempt(ctx context.Context, scene usd.Context, req Request, targetPath string) (*types.AttachOutcome, error)
}

// placeholderColor marks placeholder cubes visibly in the scene.
var placeholderColor = [3]float32{0.0, 0.0, 1.0}

// referenceCommand attaches by issuing scene-level commands: ensure the
// reserved parent hierarchy, clear any occupant of the target path, then
// add a reference pointing at the built document.
type referenceCommand struct {
	logger *zap.Logger
}

func (s *referenceCommand) Method() types.AttachMethod { return types.AttachReferenceCommand }

func (s *referenceCommand) Attempt(ctx context.Context, scene usd.Context, req Request, targetPath string) (*types.AttachOutcome, error) {
	stage := scene.Stage()
	if stage == nil {
		return nil, fmt.Errorf("no live stage")
	}
	cmds := scene.Commands()

	for _, ancestor := range ancestorPaths(targetPath) {
		if stage.GetPrimAtPath(ancestor) != nil {
			continue
		}
		if err := cmds.DefinePrim(ancestor, "Xform"); err != nil {
			return nil, fmt.Errorf("create ancestor %s: %w", ancestor, err)
		}
	}

	if stage.GetPrimAtPath(targetPath) != nil {
		if err := cmds.DeletePrims([]string{targetPath}); err != nil {
			// Tolerated: the reference add below overwrites the occupant's
			// role even when deletion is refused.
			s.logger.Warn("failed to delete existing prim, continuing",
				zap.String("path", targetPath), zap.Error(err))
		}
	}

	if err := cmds.AddReference(targetPath, req.DocumentPath); err != nil {
		return nil, fmt.Errorf("add reference: %w", err)
	}

	if prim := stage.GetPrimAtPath(targetPath); prim != nil {
		stampProvenance(prim, req, s.Method())
	}
	return &types.AttachOutcome{
		Succeeded: true,
		Method:    s.Method(),
		PrimPath:  targetPath,
		Message:   "asset referenced into scene via command layer",
	}, nil
}

// referenceDirect bypasses the command layer: it defines a plain container
// prim at the target path and adds the document reference on it directly.
type referenceDirect struct {
	logger *zap.Logger
}

func (s *referenceDirect) Method() types.AttachMethod { return types.AttachReferenceDirect }

func (s *referenceDirect) Attempt(ctx context.Context, scene usd.Context, req Request, targetPath string) (*types.AttachOutcome, error) {
	stage := scene.Stage()
	if stage == nil {
		return nil, fmt.Errorf("no live stage")
	}

	prim, err := stage.DefinePrim(targetPath, "Xform")
	if err != nil {
		return nil, fmt.Errorf("define prim %s: %w", targetPath, err)
	}
	prim.AddReference(req.DocumentPath)
	stampProvenance(prim, req, s.Method())

	return &types.AttachOutcome{
		Succeeded: true,
		Method:    s.Method(),
		PrimPath:  targetPath,
		Message:   "asset referenced into scene via direct stage edit",
	}, nil
}

// placeholder is the terminal strategy: a stamped container prim with a
// visible blue marker cube, so the degraded outcome is obvious in the
// scene. It has no further fallback and always succeeds once the scene is
// ready.
type placeholder struct {
	logger *zap.Logger
}

func (s *placeholder) Method() types.AttachMethod { return types.AttachPlaceholder }

func (s *placeholder) Attempt(ctx context.Context, scene usd.Context, req Request, targetPath string) (*types.AttachOutcome, error) {
	stage := scene.Stage()
	if stage == nil {
		return nil, fmt.Errorf("no live stage")
	}

	prim, err := stage.DefinePrim(targetPath, "Xform")
	if err != nil {
		return nil, fmt.Errorf("define placeholder prim: %w", err)
	}
	stampProvenance(prim, req, s.Method())
	prim.SetAttribute("roworks:placeholder", usd.TypeBool, true)
	prim.SetAttribute("roworks:note", usd.TypeString,
		"placeholder only, manual import of the referenced document is required")

	cube, err := stage.DefinePrim(targetPath+"/PlaceholderCube", "Cube")
	if err != nil {
		return nil, fmt.Errorf("define marker cube: %w", err)
	}
	cube.SetAttribute("size", usd.TypeFloat, float32(1.0))
	cube.SetAttribute("primvars:displayColor", usd.TypeColor3fArray, [][3]float32{placeholderColor})

	return &types.AttachOutcome{
		Succeeded: true,
		Method:    s.Method(),
		PrimPath:  targetPath,
		Message:   "placeholder created, manual import required",
	}, nil
}

// stampProvenance records where the attached prim came from.
func stampProvenance(prim *usd.Prim, req Request, method types.AttachMethod) {
	prim.SetAttribute("roworks:source_file", usd.TypeString, req.DocumentPath)
	prim.SetAttribute("roworks:asset_name", usd.TypeString, req.AssetName)
	prim.SetAttribute("roworks:attach_method", usd.TypeString, string(method))
	prim.SetAttribute("roworks:attached_at", usd.TypeString, time.Now().UTC().Format(time.RFC3339))
}

// ancestorPaths returns every proper ancestor of the target path from the
// top down, e.g. /World, /World/RoWorks, /World/RoWorks/Assets.
func ancestorPaths(targetPath string) []string {
	parts := strings.Split(strings.Trim(targetPath, "/"), "/")
	out := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		out = append(out, "/"+strings.Join(parts[:i], "/"))
	}
	return out
}
