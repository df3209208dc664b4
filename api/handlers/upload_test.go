package handlers

import (
	"archive/zip"
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roworks/meshusd/archive"
	"github.com/roworks/meshusd/attach"
	"github.com/roworks/meshusd/builder"
	"github.com/roworks/meshusd/pipeline"
	"github.com/roworks/meshusd/registry"
	"github.com/roworks/meshusd/types"
	"github.com/roworks/meshusd/usd"
)

const uploadOBJ = `
v 0 0 0
v 1 0 0
v 1 1 0
f 1 2 3
`

// newImportHandler 装配一条进程内流水线，场景立即就绪
func newImportHandler(t *testing.T, maxUploadBytes int64) (*ImportHandler, *registry.Registry, *usd.LiveContext) {
	t.Helper()
	logger := zap.NewNop()
	scratch := t.TempDir()

	scene, err := usd.NewLiveContext("/World", logger)
	require.NoError(t, err)

	engine := attach.NewEngine(scene, attach.Config{
		ReadyTimeout: 200 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		AssetRoot:    "/World/RoWorks/Assets",
	}, logger)

	reg := registry.New(logger)
	p := pipeline.New(
		archive.NewValidator(scratch, logger),
		builder.New(scratch, "usda", true, logger),
		engine, reg, nil, nil, logger,
	)
	return NewImportHandler(p, reg, scratch, maxUploadBytes, logger), reg, scene
}

// zipBytes 在内存中构造一个 ZIP 压缩包
func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// multipartRequest 构造携带 file 字段的 multipart POST 请求
func multipartRequest(t *testing.T, target, fieldName, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(fieldName, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// =============================================================================
// 📤 /mesh/import
// =============================================================================

func TestImport_FullUpload(t *testing.T) {
	h, reg, scene := newImportHandler(t, 100*1024*1024)
	payload := zipBytes(t, map[string]string{"part.obj": uploadOBJ})

	rec := httptest.NewRecorder()
	h.HandleImport(rec, multipartRequest(t, "/mesh/import", "file", "bracket v2.zip", payload))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp Response
	decodeJSON(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "bracket_v2")
	assert.Contains(t, resp.Message, "attached")

	require.Len(t, reg.List(), 1)
	asset := reg.List()[0]
	assert.Equal(t, "bracket_v2", asset.AssetName)
	assert.True(t, asset.Attachment.Succeeded)
	assert.Equal(t, types.AttachReferenceCommand, asset.Attachment.Method)

	prim := scene.Stage().GetPrimAtPath("/World/RoWorks/Assets/bracket_v2")
	require.NotNil(t, prim)
	assert.NotEmpty(t, prim.References())
}

func TestImport_RejectsNonPost(t *testing.T) {
	h, _, _ := newImportHandler(t, 1024)

	rec := httptest.NewRecorder()
	h.HandleImport(rec, httptest.NewRequest(http.MethodGet, "/mesh/import", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestImport_MissingFileField(t *testing.T) {
	h, _, _ := newImportHandler(t, 1024)
	payload := zipBytes(t, map[string]string{"part.obj": uploadOBJ})

	rec := httptest.NewRecorder()
	h.HandleImport(rec, multipartRequest(t, "/mesh/import", "attachment", "part.zip", payload))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp Response
	decodeJSON(t, rec, &resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrInvalidRequest), resp.Error.Code)
}

func TestImport_RejectsNonZipFilename(t *testing.T) {
	h, _, _ := newImportHandler(t, 1024)

	rec := httptest.NewRecorder()
	h.HandleImport(rec, multipartRequest(t, "/mesh/import", "file", "mesh.obj", []byte(uploadOBJ)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp Response
	decodeJSON(t, rec, &resp)
	assert.Contains(t, resp.Message, "ZIP")
}

func TestImport_FileTooLarge(t *testing.T) {
	h, reg, _ := newImportHandler(t, 64)
	payload := zipBytes(t, map[string]string{"part.obj": uploadOBJ})
	require.Greater(t, len(payload), 64)

	rec := httptest.NewRecorder()
	h.HandleImport(rec, multipartRequest(t, "/mesh/import", "file", "part.zip", payload))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp Response
	decodeJSON(t, rec, &resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrFileTooLarge), resp.Error.Code)
	assert.Empty(t, reg.List())
}

func TestImport_InvalidArchiveContents(t *testing.T) {
	h, reg, _ := newImportHandler(t, 1024*1024)
	payload := zipBytes(t, map[string]string{"readme.txt": "no mesh here"})

	rec := httptest.NewRecorder()
	h.HandleImport(rec, multipartRequest(t, "/mesh/import", "file", "empty.zip", payload))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp Response
	decodeJSON(t, rec, &resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrValidationFailed), resp.Error.Code)
	assert.Empty(t, reg.List())
}

// =============================================================================
// 🔍 调试接口
// =============================================================================

func TestAnalyze_ValidArchive(t *testing.T) {
	h, _, _ := newImportHandler(t, 1024*1024)
	payload := zipBytes(t, map[string]string{
		"model.obj":   uploadOBJ,
		"model.mtl":   "newmtl m\nKd 1 0 0\n",
		"diffuse.png": "not really a png",
	})

	rec := httptest.NewRecorder()
	h.HandleAnalyze(rec, multipartRequest(t, "/debug/analyze-zip", "file", "model.zip", payload))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data ArchiveAnalysis `json:"data"`
	}
	decodeJSON(t, rec, &resp)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "model.obj", resp.Data.GeometryFile)
	assert.Equal(t, "model.mtl", resp.Data.MaterialFile)
	assert.Equal(t, 1, resp.Data.TextureCount)
}

func TestAnalyze_InvalidArchiveReportsError(t *testing.T) {
	h, _, _ := newImportHandler(t, 1024*1024)
	payload := zipBytes(t, map[string]string{"notes.md": "nothing useful"})

	rec := httptest.NewRecorder()
	h.HandleAnalyze(rec, multipartRequest(t, "/debug/analyze-zip", "file", "notes.zip", payload))

	// 分析接口对无效包返回 200 并在 payload 中说明原因
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data ArchiveAnalysis `json:"data"`
	}
	decodeJSON(t, rec, &resp)
	assert.False(t, resp.Data.Valid)
	assert.NotEmpty(t, resp.Data.Error)
}

func TestImportStatus_ReflectsRegistry(t *testing.T) {
	h, reg, _ := newImportHandler(t, 1024*1024)
	seedAsset(reg, "gear", true)

	rec := httptest.NewRecorder()
	h.HandleImportStatus(rec, httptest.NewRequest(http.MethodGet, "/debug/import-status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Assets []map[string]interface{} `json:"assets"`
	}
	decodeJSON(t, rec, &resp)
	require.Len(t, resp.Assets, 1)
	assert.Equal(t, "gear", resp.Assets[0]["name"])
	assert.Equal(t, true, resp.Assets[0]["imported"])
}

func TestFormats_ReportsUploadLimit(t *testing.T) {
	h, _, _ := newImportHandler(t, 100*1024*1024)

	rec := httptest.NewRecorder()
	h.HandleFormats(rec, httptest.NewRequest(http.MethodGet, "/formats/supported", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp FormatsResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, ".zip", resp.InputFormat)
	assert.Equal(t, "100MB", resp.MaxFileSize)
}
