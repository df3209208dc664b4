package types

import "time"

// AttachMethod identifies which attachment strategy produced the outcome.
type AttachMethod string

const (
	AttachReferenceCommand AttachMethod = "reference_command"
	AttachReferenceDirect  AttachMethod = "reference_direct"
	AttachPlaceholder      AttachMethod = "placeholder"
	AttachNone             AttachMethod = "none"
)

// AttachOutcome summarizes the terminal result of one attachment chain run.
type AttachOutcome struct {
	Succeeded bool         `json:"succeeded"`
	Method    AttachMethod `json:"method"`
	PrimPath  string       `json:"prim_path,omitempty"`
	Message   string       `json:"message"`
}

// ExtractedFiles is the classification manifest produced by the archive
// validator. Paths are absolute within the per-upload scratch directory.
type ExtractedFiles struct {
	GeometryFile string   `json:"geometry_file"`
	MaterialFile string   `json:"material_file,omitempty"`
	TextureFiles []string `json:"texture_files,omitempty"`
	ExtractDir   string   `json:"extract_dir"`
}

// UploadedAsset is one processed upload and its outcome. Records are
// append-only; the registry never mutates them after insertion.
type UploadedAsset struct {
	AssetName     string         `json:"asset_name"`
	Filename      string         `json:"filename"`
	FileSize      int64          `json:"file_size"`
	DocumentPath  string         `json:"usd_path"`
	Files         ExtractedFiles `json:"files"`
	CreatedAt     time.Time      `json:"created_at"`
	Attachment    AttachOutcome  `json:"attachment"`
	ScenePrimPath string         `json:"scene_prim_path,omitempty"`
}

// SceneObject is the derived scene-side view of an uploaded asset,
// exposed by GET /assets and GET /scene/info.
type SceneObject struct {
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	PrimPath     string    `json:"prim_path"`
	DocumentPath string    `json:"usd_path"`
	Imported     bool      `json:"imported"`
	ImportStatus string    `json:"import_status"`
	FileSize     int64     `json:"file_size"`
	CreatedAt    time.Time `json:"created_at"`
}

// SceneObjectType is the single object type this pipeline produces.
const SceneObjectType = "mesh_asset"

// SceneObjectView derives the scene-object view from an asset record.
func (a *UploadedAsset) SceneObjectView() SceneObject {
	status := "completed"
	if !a.Attachment.Succeeded {
		status = "manual_import_required"
	}
	return SceneObject{
		Name:         a.AssetName,
		Type:         SceneObjectType,
		PrimPath:     a.ScenePrimPath,
		DocumentPath: a.DocumentPath,
		Imported:     a.Attachment.Succeeded,
		ImportStatus: status,
		FileSize:     a.FileSize,
		CreatedAt:    a.CreatedAt,
	}
}

// AssetEvent is pushed to websocket subscribers as an upload moves
// through the pipeline.
type AssetEvent struct {
	AssetName string       `json:"asset_name"`
	Phase     string       `json:"phase"` // "building", "attaching", "done"
	Method    AttachMethod `json:"method,omitempty"`
	Succeeded bool         `json:"succeeded"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
