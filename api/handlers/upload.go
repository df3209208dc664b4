package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roworks/meshusd/pipeline"
	"github.com/roworks/meshusd/registry"
	"github.com/roworks/meshusd/types"
)

// =============================================================================
// 📤 网格上传 Handler
// =============================================================================

// ImportHandler 网格导入处理器
type ImportHandler struct {
	processor      *pipeline.Processor
	registry       *registry.Registry
	scratchRoot    string
	maxUploadBytes int64
	logger         *zap.Logger
}

// ArchiveAnalysis /debug/analyze-zip 的分析结果
type ArchiveAnalysis struct {
	Filename     string   `json:"filename"`
	FileSize     int64    `json:"file_size"`
	Valid        bool     `json:"valid"`
	Error        string   `json:"error,omitempty"`
	GeometryFile string   `json:"obj_file,omitempty"`
	MaterialFile string   `json:"mtl_file,omitempty"`
	TextureCount int      `json:"texture_count"`
	TextureFiles []string `json:"texture_files,omitempty"`
}

// FormatsResponse /formats/supported 响应
type FormatsResponse struct {
	InputFormat      string   `json:"input_format"`
	RequiredContents []string `json:"required_contents"`
	Description      string   `json:"description"`
	MaxFileSize      string   `json:"max_file_size"`
	Workflow         string   `json:"workflow"`
}

// NewImportHandler 创建网格导入处理器
func NewImportHandler(processor *pipeline.Processor, reg *registry.Registry,
	scratchRoot string, maxUploadBytes int64, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{
		processor:      processor,
		registry:       reg,
		scratchRoot:    scratchRoot,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// HandleImport 处理 POST /mesh/import（multipart 上传，字段名 file）
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	archivePath, filename, size, apiErr := h.receiveArchive(w, r)
	if apiErr != nil {
		WriteError(w, apiErr, h.logger)
		return
	}

	asset, err := h.processor.Process(r.Context(), archivePath, filename, size)
	if err != nil {
		WriteError(w, types.AsError(err), h.logger)
		return
	}

	// 降级挂载依旧是成功：消息中说明实际使用的策略
	WriteSuccess(w, importMessage(asset), asset)
}

// HandleAnalyze 处理 POST /debug/analyze-zip（只分析不构建）
func (h *ImportHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	archivePath, filename, size, apiErr := h.receiveArchive(w, r)
	if apiErr != nil {
		WriteError(w, apiErr, h.logger)
		return
	}

	analysis := ArchiveAnalysis{Filename: filename, FileSize: size}
	files, err := h.processor.AnalyzeArchive(archivePath, filename)
	if err != nil {
		analysis.Error = types.AsError(err).Message
	} else {
		analysis.Valid = true
		analysis.GeometryFile = filepath.Base(files.GeometryFile)
		if files.MaterialFile != "" {
			analysis.MaterialFile = filepath.Base(files.MaterialFile)
		}
		analysis.TextureCount = len(files.TextureFiles)
		for _, tex := range files.TextureFiles {
			analysis.TextureFiles = append(analysis.TextureFiles, filepath.Base(tex))
		}
	}

	WriteSuccess(w, "archive analysis complete", analysis)
}

// HandleImportStatus 处理 GET /debug/import-status
func (h *ImportHandler) HandleImportStatus(w http.ResponseWriter, r *http.Request) {
	assets := h.registry.List()
	statuses := make([]map[string]interface{}, 0, len(assets))
	for _, asset := range assets {
		statuses = append(statuses, map[string]interface{}{
			"name":       asset.AssetName,
			"imported":   asset.Attachment.Succeeded,
			"status":     string(asset.Attachment.Method),
			"message":    asset.Attachment.Message,
			"usd_path":   asset.DocumentPath,
			"file_size":  asset.FileSize,
			"created_at": asset.CreatedAt,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": h.registry.Stats(),
		"assets": statuses,
	})
}

// HandleFormats 处理 GET /formats/supported
func (h *ImportHandler) HandleFormats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, FormatsResponse{
		InputFormat:      ".zip",
		RequiredContents: []string{"*.obj", "*.mtl (optional)", "*.jpg/*.png (optional)"},
		Description:      "ZIP archives containing an OBJ mesh with optional MTL material and texture images",
		MaxFileSize:      fmt.Sprintf("%dMB", h.maxUploadBytes/(1024*1024)),
		Workflow:         "Upload mesh ZIP → USD asset creation → Scene attachment",
	})
}

// =============================================================================
// 🔧 上传接收
// =============================================================================

// receiveArchive 接收 multipart 上传并落盘到 scratch 目录。
// 所有校验失败都映射为带人类可读原因的 400。
func (h *ImportHandler) receiveArchive(w http.ResponseWriter, r *http.Request) (string, string, int64, *types.Error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1024*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", 0, types.NewError(types.ErrInvalidRequest,
			"missing multipart field 'file'").WithCause(err).WithHTTPStatus(400)
	}
	defer file.Close()

	filename := header.Filename
	if filename == "" || !strings.HasSuffix(strings.ToLower(filename), ".zip") {
		return "", "", 0, types.NewError(types.ErrInvalidRequest,
			"file must be a ZIP archive").WithHTTPStatus(400)
	}

	if header.Size > h.maxUploadBytes {
		return "", "", 0, types.NewError(types.ErrFileTooLarge,
			fmt.Sprintf("file too large: %d bytes exceeds %d byte limit", header.Size, h.maxUploadBytes)).
			WithHTTPStatus(400)
	}

	if err := os.MkdirAll(h.scratchRoot, 0o755); err != nil {
		return "", "", 0, types.NewError(types.ErrInternalError, "create scratch directory").WithCause(err)
	}

	archivePath := filepath.Join(h.scratchRoot, "upload_"+uuid.NewString()+".zip")
	dst, err := os.Create(archivePath)
	if err != nil {
		return "", "", 0, types.NewError(types.ErrInternalError, "persist uploaded archive").WithCause(err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		return "", "", 0, types.NewError(types.ErrInternalError, "persist uploaded archive").WithCause(err)
	}
	if size > h.maxUploadBytes {
		return "", "", 0, types.NewError(types.ErrFileTooLarge,
			fmt.Sprintf("file too large: %d bytes exceeds %d byte limit", size, h.maxUploadBytes)).
			WithHTTPStatus(400)
	}

	h.logger.Info("archive received",
		zap.String("filename", filename),
		zap.Int64("size", size),
		zap.String("path", archivePath),
	)
	return archivePath, filename, size, nil
}

func importMessage(asset *types.UploadedAsset) string {
	if asset.Attachment.Succeeded {
		return fmt.Sprintf("USD asset created and attached: %s (%s)",
			asset.AssetName, asset.Attachment.Method)
	}
	return fmt.Sprintf("USD asset created, ready for manual import: %s", asset.AssetName)
}
