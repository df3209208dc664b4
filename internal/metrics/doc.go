// 版权所有 2024 RoWorks Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
HTTP、上传流水线、挂载与注册表四大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组。

# 主要能力

  - HTTP 指标：请求总数、请求耗时，按 method/path 分组，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 上传指标：上传总数（按结果分组）、压缩包大小、
    解析三角形总数、文档构建耗时。
  - 挂载指标：挂载尝试计数（按策略与结果分组）、挂载链耗时。
  - 注册表指标：当前资产数量 Gauge。
*/
package metrics
