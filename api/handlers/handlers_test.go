package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roworks/meshusd/registry"
	"github.com/roworks/meshusd/types"
)

// =============================================================================
// 🔧 测试辅助
// =============================================================================

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func seedAsset(reg *registry.Registry, name string, attached bool) {
	method := types.AttachReferenceCommand
	if !attached {
		method = types.AttachNone
	}
	reg.Record(types.UploadedAsset{
		AssetName:    name,
		Filename:     name + ".zip",
		FileSize:     4096,
		DocumentPath: "/tmp/usd_assets/" + name + ".usda",
		CreatedAt:    time.Now(),
		Attachment: types.AttachOutcome{
			Succeeded: attached,
			Method:    method,
			PrimPath:  "/World/RoWorks/Assets/" + name,
			Message:   "ok",
		},
	})
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

func TestHealthHandler_Health(t *testing.T) {
	reg := registry.New(zap.NewNop())
	seedAsset(reg, "part_a", true)
	h := NewHealthHandler(reg, "/tmp/scratch", zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ServiceHealthResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 1, resp.TotalAssets)
	assert.Equal(t, "/tmp/scratch", resp.ScratchDir)
	assert.NotEmpty(t, resp.Workflow)
}

func TestHealthHandler_Status(t *testing.T) {
	reg := registry.New(zap.NewNop())
	seedAsset(reg, "a", true)
	seedAsset(reg, "b", false)
	h := NewHealthHandler(reg, t.TempDir(), zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats registry.Stats
	decodeJSON(t, rec, &stats)
	assert.Equal(t, 2, stats.TotalAssets)
	assert.NotEmpty(t, stats.Service)
}

func TestHealthHandler_Version(t *testing.T) {
	h := NewHealthHandler(registry.New(zap.NewNop()), t.TempDir(), zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleVersion("1.2.3", "2026-08-30", "abc1234")(rec,
		httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp VersionResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "abc1234", resp.GitCommit)
}

// =============================================================================
// 📁 资产查询
// =============================================================================

func TestAssetHandler_Assets(t *testing.T) {
	reg := registry.New(zap.NewNop())
	seedAsset(reg, "bracket", true)
	seedAsset(reg, "housing", false)
	h := NewAssetHandler(reg, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleAssets(rec, httptest.NewRequest(http.MethodGet, "/assets", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AssetListResponse
	decodeJSON(t, rec, &resp)
	require.Len(t, resp.Assets, 2)
	require.Len(t, resp.SceneObjects, 2)
	assert.Equal(t, "bracket", resp.Assets[0].AssetName)
	assert.True(t, resp.SceneObjects[0].Imported)
	assert.False(t, resp.SceneObjects[1].Imported)
}

func TestAssetHandler_AssetsEmptyRegistry(t *testing.T) {
	h := NewAssetHandler(registry.New(zap.NewNop()), zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleAssets(rec, httptest.NewRequest(http.MethodGet, "/assets", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	// 空注册表序列化为 [] 而不是 null
	assert.Contains(t, rec.Body.String(), `"assets":[]`)
	assert.Contains(t, rec.Body.String(), `"scene_objects":[]`)
}

func TestAssetHandler_SceneInfo(t *testing.T) {
	reg := registry.New(zap.NewNop())
	seedAsset(reg, "a", true)
	seedAsset(reg, "b", true)
	h := NewAssetHandler(reg, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleSceneInfo(rec, httptest.NewRequest(http.MethodGet, "/scene/info", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SceneInfoResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 2, resp.TotalObjects)
	assert.Equal(t, 2, resp.ObjectsByType[types.SceneObjectType])
}

func TestAssetHandler_Clear(t *testing.T) {
	reg := registry.New(zap.NewNop())
	seedAsset(reg, "a", true)
	h := NewAssetHandler(reg, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleClear(rec, httptest.NewRequest(http.MethodDelete, "/assets/clear", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, reg.List())
}

func TestAssetHandler_ClearRejectsNonDelete(t *testing.T) {
	reg := registry.New(zap.NewNop())
	seedAsset(reg, "a", true)
	h := NewAssetHandler(reg, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleClear(rec, httptest.NewRequest(http.MethodGet, "/assets/clear", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Len(t, reg.List(), 1)
}

// =============================================================================
// 🎯 错误响应
// =============================================================================

func TestWriteError_MapsCodeToStatus(t *testing.T) {
	tests := []struct {
		code   types.ErrorCode
		status int
	}{
		{types.ErrValidationFailed, http.StatusBadRequest},
		{types.ErrArchiveCorrupt, http.StatusBadRequest},
		{types.ErrGeometryParse, http.StatusBadRequest},
		{types.ErrFileTooLarge, http.StatusBadRequest},
		{types.ErrSceneUnavailable, http.StatusServiceUnavailable},
		{types.ErrAttachTimeout, http.StatusGatewayTimeout},
		{types.ErrBuildFailed, http.StatusInternalServerError},
		{types.ErrInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, types.NewError(tt.code, "boom"), zap.NewNop())

			require.Equal(t, tt.status, rec.Code)
			var resp Response
			decodeJSON(t, rec, &resp)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.code), resp.Error.Code)
		})
	}
}

func TestWriteError_ExplicitStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	err := types.NewError(types.ErrInternalError, "teapot").WithHTTPStatus(http.StatusTeapot)
	WriteError(rec, err, zap.NewNop())
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestWriteSuccess_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, "done", map[string]string{"k": "v"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	decodeJSON(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "done", resp.Message)
	assert.False(t, resp.Timestamp.IsZero())
}
