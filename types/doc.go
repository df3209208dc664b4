// Copyright (c) RoWorks Authors.
// Licensed under the MIT License.

/*
Package types 提供 meshusd 服务的全局共享类型定义。

# 概述

types 是服务最底层的公共包，不依赖任何内部包，为 archive、geometry、
builder、attach、registry、api 等上层模块提供统一的类型契约。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable 标记
  - UploadedAsset     — 一次上传的完整记录（文件清单、USD 路径、挂载结果）
  - ExtractedFiles    — 压缩包分类清单（几何 / 材质 / 贴图）
  - AttachOutcome     — 挂载链的终态（策略、prim 路径、消息）
  - SceneObject       — 资产在场景侧的派生视图
  - AssetEvent        — WebSocket 推送的流水线事件

# 错误码分组

  - 流水线: VALIDATION_FAILED / ARCHIVE_CORRUPT / GEOMETRY_PARSE / BUILD_FAILED
  - 挂载:   ATTACH_TIMEOUT / SCENE_UNAVAILABLE
  - 传输:   INVALID_REQUEST / FILE_TOO_LARGE / INTERNAL_ERROR
*/
package types
