// Package archive validates uploaded mesh archives: extraction into an
// isolated scratch directory and classification of the contents by
// extension.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roworks/meshusd/types"
)

// textureExtensions are the image extensions classified as textures.
var textureExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tiff": true,
	".tga":  true,
	".bmp":  true,
}

// Validator extracts archives and classifies their contents. Scratch
// directories are never cleaned up by the validator; retention is left to
// the deployment environment.
type Validator struct {
	scratchRoot string
	logger      *zap.Logger
}

// NewValidator creates a validator rooted at scratchRoot.
func NewValidator(scratchRoot string, logger *zap.Logger) *Validator {
	return &Validator{
		scratchRoot: scratchRoot,
		logger:      logger.With(zap.String("component", "archive_validator")),
	}
}

// ScratchRoot returns the scratch directory root.
func (v *Validator) ScratchRoot() string { return v.scratchRoot }

// Validate extracts the archive at archivePath into a uniquely-named
// scratch directory and classifies every regular file. Exactly one
// geometry file is mandatory; material and texture files are optional.
// Texture files are returned sorted by name so downstream consumers see a
// deterministic order.
func (v *Validator) Validate(archivePath, filename string) (*types.ExtractedFiles, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, types.NewError(types.ErrArchiveCorrupt,
			fmt.Sprintf("cannot open archive %s: not a valid ZIP file", filename)).
			WithCause(err).WithHTTPStatus(400)
	}
	defer reader.Close()

	extractDir := filepath.Join(v.scratchRoot, "extract_"+uuid.NewString())
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return nil, types.NewError(types.ErrInternalError, "create extraction directory").WithCause(err)
	}

	result := &types.ExtractedFiles{ExtractDir: extractDir}
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		dest, err := extractEntry(entry, extractDir)
		if err != nil {
			return nil, types.NewError(types.ErrArchiveCorrupt,
				fmt.Sprintf("cannot extract %s from archive", entry.Name)).
				WithCause(err).WithHTTPStatus(400)
		}

		switch ext := strings.ToLower(filepath.Ext(dest)); {
		case ext == ".obj":
			if result.GeometryFile == "" {
				result.GeometryFile = dest
			}
		case ext == ".mtl":
			if result.MaterialFile == "" {
				result.MaterialFile = dest
			}
		case textureExtensions[ext]:
			result.TextureFiles = append(result.TextureFiles, dest)
		}
	}
	sort.Strings(result.TextureFiles)

	if result.GeometryFile == "" {
		return nil, types.NewValidationError("no OBJ file found in archive")
	}

	v.logger.Info("archive validated",
		zap.String("filename", filename),
		zap.String("extract_dir", extractDir),
		zap.Bool("has_material", result.MaterialFile != ""),
		zap.Int("texture_count", len(result.TextureFiles)),
	)
	return result, nil
}

// extractEntry writes one archive entry below extractDir, rejecting paths
// that would escape it.
func extractEntry(entry *zip.File, extractDir string) (string, error) {
	cleaned := filepath.Clean(entry.Name)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("entry path %q escapes extraction directory", entry.Name)
	}
	dest := filepath.Join(extractDir, cleaned)
	if !strings.HasPrefix(dest, extractDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry path %q escapes extraction directory", entry.Name)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}

	src, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return dest, nil
}
