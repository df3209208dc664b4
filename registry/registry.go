// Package registry keeps the in-process ledger of every processed asset.
// Records are append-only and never survive a restart.
package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/roworks/meshusd/types"
)

// ServiceLabel is the fixed descriptive label reported by Stats.
const ServiceLabel = "mesh_usd_pipeline"

// SizeObserver is notified whenever the registry size changes, used to
// keep the registry gauge current.
type SizeObserver func(size int)

// Registry is the append-only asset ledger. It is an explicitly owned
// component: constructed once and passed by reference, so tests get a
// fresh registry each.
type Registry struct {
	mu       sync.RWMutex
	assets   []types.UploadedAsset
	observer SizeObserver
	logger   *zap.Logger
}

// Stats is the aggregate view returned by Stats.
type Stats struct {
	TotalAssets int    `json:"total_assets"`
	Service     string `json:"service"`
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger.With(zap.String("component", "asset_registry")),
	}
}

// OnSizeChange registers the size observer. Must be called before the
// registry is shared.
func (r *Registry) OnSizeChange(obs SizeObserver) {
	r.observer = obs
}

// Record appends a new asset record. Name collisions are allowed: the
// deterministic scene path is simply overwritten by the most recent
// attachment, so no de-duplication happens here.
func (r *Registry) Record(asset types.UploadedAsset) {
	r.mu.Lock()
	r.assets = append(r.assets, asset)
	size := len(r.assets)
	r.mu.Unlock()

	r.logger.Info("asset recorded",
		zap.String("asset", asset.AssetName),
		zap.Bool("attached", asset.Attachment.Succeeded),
		zap.Int("total", size),
	)
	r.notify(size)
}

// List returns all records in insertion order.
func (r *Registry) List() []types.UploadedAsset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.UploadedAsset, len(r.assets))
	copy(out, r.assets)
	return out
}

// SceneObjects returns the derived scene-side view of every record.
func (r *Registry) SceneObjects() []types.SceneObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.SceneObject, 0, len(r.assets))
	for i := range r.assets {
		out = append(out, r.assets[i].SceneObjectView())
	}
	return out
}

// Stats returns the record count and the fixed service label.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{TotalAssets: len(r.assets), Service: ServiceLabel}
}

// Clear empties the registry. Documents already written to the scratch
// tree are untouched.
func (r *Registry) Clear() {
	r.mu.Lock()
	cleared := len(r.assets)
	r.assets = nil
	r.mu.Unlock()

	r.logger.Info("registry cleared", zap.Int("removed", cleared))
	r.notify(0)
}

func (r *Registry) notify(size int) {
	if r.observer != nil {
		r.observer(size)
	}
}
