// Copyright (c) RoWorks Authors.
// Licensed under the MIT License.

/*
Package handlers 提供网格导入服务 HTTP API 的请求处理器实现。

# 概述

handlers 包实现了服务所有 HTTP 端点的请求处理逻辑，
包括网格压缩包上传、资产列表、场景查询、健康检查、
WebSocket 事件推送以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - ImportHandler    — 网格 ZIP 上传、压缩包分析与导入状态查询
  - AssetHandler     — 资产列表、场景对象查询与注册表清空
  - HealthHandler    — 服务健康检查（/health, /status, /version）
  - EventsHandler    — WebSocket 资产事件推送（/ws/events）
  - Response         — 统一 JSON 响应结构（success + message + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - multipart 上传接收：扩展名与大小校验、scratch 目录落盘
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 调试端点：/debug/analyze-zip 只分析不构建、/debug/import-status 查看导入结果
  - WebSocket 推送：Hub 订阅 + 非阻塞事件广播
*/
package handlers
