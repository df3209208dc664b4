package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/roworks/meshusd/registry"
	"github.com/roworks/meshusd/types"
)

// =============================================================================
// 📁 资产查询 Handler
// =============================================================================

// AssetHandler 资产查询处理器
type AssetHandler struct {
	registry *registry.Registry
	logger   *zap.Logger
}

// AssetListResponse /assets 响应
type AssetListResponse struct {
	Assets       []types.UploadedAsset `json:"assets"`
	SceneObjects []types.SceneObject   `json:"scene_objects"`
}

// SceneInfoResponse /scene/info 响应
type SceneInfoResponse struct {
	TotalObjects  int                 `json:"total_objects"`
	ObjectsByType map[string]int      `json:"objects_by_type"`
	Objects       []types.SceneObject `json:"objects"`
}

// NewAssetHandler 创建资产查询处理器
func NewAssetHandler(reg *registry.Registry, logger *zap.Logger) *AssetHandler {
	return &AssetHandler{registry: reg, logger: logger}
}

// HandleAssets 处理 GET /assets（完整资产列表 + 场景对象视图）
func (h *AssetHandler) HandleAssets(w http.ResponseWriter, r *http.Request) {
	assets := h.registry.List()
	if assets == nil {
		assets = []types.UploadedAsset{}
	}
	objects := h.registry.SceneObjects()
	if objects == nil {
		objects = []types.SceneObject{}
	}
	WriteJSON(w, http.StatusOK, AssetListResponse{
		Assets:       assets,
		SceneObjects: objects,
	})
}

// HandleSceneInfo 处理 GET /scene/info（按类型分组的场景对象统计）
func (h *AssetHandler) HandleSceneInfo(w http.ResponseWriter, r *http.Request) {
	objects := h.registry.SceneObjects()
	if objects == nil {
		objects = []types.SceneObject{}
	}

	byType := make(map[string]int)
	for _, obj := range objects {
		byType[obj.Type]++
	}

	WriteJSON(w, http.StatusOK, SceneInfoResponse{
		TotalObjects:  len(objects),
		ObjectsByType: byType,
		Objects:       objects,
	})
}

// HandleClear 处理 DELETE /assets/clear（清空注册表）
func (h *AssetHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}
	h.registry.Clear()
	WriteSuccess(w, "assets cleared", nil)
}
