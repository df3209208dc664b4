// Package pipeline wires the ingestion stages together: archive
// validation, geometry parsing, document building, scene attachment, and
// registry recording.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/roworks/meshusd/archive"
	"github.com/roworks/meshusd/attach"
	"github.com/roworks/meshusd/builder"
	"github.com/roworks/meshusd/geometry"
	"github.com/roworks/meshusd/internal/ctxkeys"
	"github.com/roworks/meshusd/registry"
	"github.com/roworks/meshusd/types"
)

// Metrics is the subset of metric recording the pipeline needs.
type Metrics interface {
	RecordUpload(outcome string, sizeBytes int64)
	RecordTriangles(count int)
	RecordBuildDuration(d time.Duration)
}

// Processor runs one upload through the whole pipeline. Every stage
// returns a structured error; nothing here terminates the process.
type Processor struct {
	validator *archive.Validator
	builder   *builder.Builder
	engine    *attach.Engine
	registry  *registry.Registry
	events    attach.EventSink
	metrics   Metrics
	logger    *zap.Logger
}

// New creates a processor over the given collaborators. events and
// metrics may be nil.
func New(validator *archive.Validator, b *builder.Builder, engine *attach.Engine,
	reg *registry.Registry, events attach.EventSink, metrics Metrics, logger *zap.Logger) *Processor {
	return &Processor{
		validator: validator,
		builder:   b,
		engine:    engine,
		registry:  reg,
		events:    events,
		metrics:   metrics,
		logger:    logger.With(zap.String("component", "pipeline")),
	}
}

// Process ingests the uploaded archive and attempts scene attachment.
// A degraded attachment is still a success: the returned asset's
// Attachment field tells callers which strategy landed.
func (p *Processor) Process(ctx context.Context, archivePath, filename string, fileSize int64) (*types.UploadedAsset, error) {
	files, err := p.validator.Validate(archivePath, filename)
	if err != nil {
		p.recordUpload("validation_failed", fileSize)
		return nil, err
	}

	buffers, err := geometry.ParseOBJ(files.GeometryFile)
	if err != nil {
		p.recordUpload("geometry_error", fileSize)
		return nil, err
	}

	var material *geometry.Material
	if files.MaterialFile != "" {
		material, err = geometry.ParseMTL(files.MaterialFile)
		if err != nil {
			// A broken material never fails the upload; the asset keeps
			// its gray fallback color.
			p.logger.Warn("material file unreadable, continuing without material",
				zap.String("file", files.MaterialFile), zap.Error(err))
			material = nil
		}
	}

	assetName := builder.SanitizeName(filename)
	p.publish(assetName, "building")

	buildStart := time.Now()
	result, err := p.builder.Build(builder.Request{
		AssetName: assetName,
		Filename:  filename,
		FileSize:  fileSize,
		Buffers:   buffers,
		Material:  material,
		Textures:  files.TextureFiles,
	})
	if err != nil {
		p.recordUpload("build_failed", fileSize)
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.RecordBuildDuration(time.Since(buildStart))
		p.metrics.RecordTriangles(result.TriangleCount)
	}

	outcome := p.engine.Attach(ctx, attach.Request{
		AssetName:    assetName,
		DocumentPath: result.DocumentPath,
	})

	asset := types.UploadedAsset{
		AssetName:     assetName,
		Filename:      filename,
		FileSize:      fileSize,
		DocumentPath:  result.DocumentPath,
		Files:         *files,
		CreatedAt:     time.Now(),
		Attachment:    outcome,
		ScenePrimPath: outcome.PrimPath,
	}
	p.registry.Record(asset)
	p.recordUpload(uploadOutcome(outcome), fileSize)

	log := p.logger
	if reqID, ok := ctxkeys.RequestID(ctx); ok {
		log = log.With(zap.String("request_id", reqID))
	}
	log.Info("upload processed",
		zap.String("asset", assetName),
		zap.String("document", result.DocumentPath),
		zap.Int("triangles", result.TriangleCount),
		zap.String("attach_method", string(outcome.Method)),
		zap.Bool("attached", outcome.Succeeded),
	)
	return &asset, nil
}

// AnalyzeArchive classifies the archive contents without building a
// document, for the web interface's pre-upload check.
func (p *Processor) AnalyzeArchive(archivePath, filename string) (*types.ExtractedFiles, error) {
	return p.validator.Validate(archivePath, filename)
}

func (p *Processor) publish(assetName, phase string) {
	if p.events == nil {
		return
	}
	p.events.Publish(types.AssetEvent{
		AssetName: assetName,
		Phase:     phase,
		Timestamp: time.Now(),
	})
}

func (p *Processor) recordUpload(outcome string, size int64) {
	if p.metrics != nil {
		p.metrics.RecordUpload(outcome, size)
	}
}

func uploadOutcome(outcome types.AttachOutcome) string {
	switch {
	case outcome.Succeeded && outcome.Method == types.AttachReferenceCommand:
		return "attached"
	case outcome.Succeeded:
		return "attached_degraded"
	default:
		return "manual_import"
	}
}
