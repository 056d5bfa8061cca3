package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"smartplanner/notification-service/internal/registry"
)

// clientMessage is what the browser sends after connecting.
type clientMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// serverMessage is what the gateway pushes to the browser.
type serverMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Gateway upgrades HTTP connections to websockets and runs the register
// protocol: the client must send {"type":"register","userId":...} before it
// receives anything; the gateway answers with a "registered" event.
type Gateway struct {
	registry *registry.Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewGateway(reg *registry.Registry, logger *zap.Logger) *Gateway {
	return &Gateway{
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 鉴权在网关层完成，这里放行所有来源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeWS handles GET /ws.
func (g *Gateway) ServeWS(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := registry.NewClient(conn)
	userID := ""

	defer func() {
		if userID != "" {
			g.registry.Unregister(userID, client)
			g.logger.Info("WebSocket disconnected", zap.String("user_id", userID))
		}
		_ = client.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Warn("WebSocket read failed", zap.String("user_id", userID), zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			g.logger.Warn("Discarding malformed client message", zap.Error(err))
			continue
		}

		if msg.Type == "register" && msg.UserID != "" {
			if userID != "" && userID != msg.UserID {
				// 同一连接换用户：先退出旧身份
				g.registry.Unregister(userID, client)
			}
			userID = msg.UserID
			g.registry.Register(userID, client)
			g.logger.Info("WebSocket registered", zap.String("user_id", userID))

			if err := client.WriteJSON(serverMessage{Event: "registered"}); err != nil {
				g.logger.Warn("Failed to confirm registration", zap.String("user_id", userID), zap.Error(err))
				return
			}
		}
	}
}

// Push writes one typed event to the user's registered connection.
// It reports false when the user has no live connection or the write fails.
func (g *Gateway) Push(userID, event string, data json.RawMessage) bool {
	client, ok := g.registry.Lookup(userID)
	if !ok {
		return false
	}
	if err := client.WriteJSON(serverMessage{Event: event, Data: data}); err != nil {
		g.logger.Warn("WebSocket push failed",
			zap.String("user_id", userID),
			zap.String("event", event),
			zap.Error(err))
		return false
	}
	return true
}
