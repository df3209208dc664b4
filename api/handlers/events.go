package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/roworks/meshusd/internal/events"
)

// =============================================================================
// 🔌 WebSocket 事件推送 Handler
// =============================================================================

// 单条事件写出的超时，防止慢客户端拖住推送循环
const eventWriteTimeout = 5 * time.Second

// EventsHandler 将流水线事件推送给 WebSocket 订阅者
type EventsHandler struct {
	hub    *events.Hub
	logger *zap.Logger
}

// NewEventsHandler 创建事件推送处理器
func NewEventsHandler(hub *events.Hub, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{hub: hub, logger: logger}
}

// HandleEvents 处理 GET /ws/events：升级连接并持续推送资产事件
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// 上传 UI 与服务可能跑在不同端口
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "event stream closed")

	ch, cancel := h.hub.Subscribe()
	defer cancel()

	h.logger.Info("event subscriber connected",
		zap.String("remote", r.RemoteAddr),
		zap.Int("subscribers", h.hub.SubscriberCount()),
	)

	// 读取循环只用于感知客户端断开
	readCtx := conn.CloseRead(r.Context())

	for {
		select {
		case <-readCtx.Done():
			conn.Close(websocket.StatusNormalClosure, "client disconnected")
			return
		case event, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "hub shut down")
				return
			}
			writeCtx, done := context.WithTimeout(readCtx, eventWriteTimeout)
			err := wsjson.Write(writeCtx, conn, event)
			done()
			if err != nil {
				h.logger.Debug("event write failed, dropping subscriber",
					zap.String("remote", r.RemoteAddr),
					zap.Error(err),
				)
				return
			}
		}
	}
}
