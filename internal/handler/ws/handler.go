package ws

import (
	"net/http"
	"time"

	applogger "DemandCast/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Handler upgrades dashboard connections and attaches them to the hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	l        *applogger.Logger
}

func NewHandler(hub *Hub, l *applogger.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			// dashboards are served from other origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
		l: l,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/alerts", h.Alerts)
}

func (h *Handler) Alerts(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	cl := newClient(h.hub, conn)
	if !h.hub.attach(cl) {
		_ = conn.Close()
		return nil
	}
	go cl.writePump()
	go cl.readPump()
	return nil
}
