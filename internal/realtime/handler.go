package realtime

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/richxcame/petit-taxi/internal/simulation"
	"github.com/richxcame/petit-taxi/pkg/common"
	"github.com/richxcame/petit-taxi/pkg/logger"
	ws "github.com/richxcame/petit-taxi/pkg/websocket"
	"go.uber.org/zap"
)

const clientRole = "rider"

// ActiveRideSource exposes the ride in progress
type ActiveRideSource interface {
	Active() (*simulation.Snapshot, bool)
}

// Handler upgrades websocket connections and answers inbound messages
type Handler struct {
	service  *Service
	rides    ActiveRideSource
	upgrader websocket.Upgrader
}

// NewHandler creates a handler and installs the inbound message handlers on the hub
func NewHandler(service *Service, rides ActiveRideSource) *Handler {
	h := &Handler{
		service: service,
		rides:   rides,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}

	hub := service.Hub()
	hub.RegisterHandler(TypePing, h.handlePing)
	hub.RegisterHandler(TypeSubscribe, h.handleSubscribe)
	hub.RegisterHandler(TypeRideSnapshot, h.handleSnapshot)
	return h
}

// HandleWebSocket upgrades the request and starts the client pumps
// GET /api/v1/ws
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithContext(c.Request.Context()).Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(uuid.New().String(), conn, h.service.Hub(), clientRole, logger.Get())
	h.service.Hub().Register <- client
	connectionsTotal.Inc()

	go client.WritePump()
	go client.ReadPump()
}

// GetStats reports hub occupancy
func (h *Handler) GetStats(c *gin.Context) {
	hub := h.service.Hub()
	common.SuccessResponse(c, gin.H{
		"clients": hub.GetClientCount(),
		"rooms":   hub.GetRideCount(),
	})
}

// RegisterRoutes registers realtime routes
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", h.HandleWebSocket)
	r.GET("/ws/stats", h.GetStats)
}

func (h *Handler) handlePing(client *ws.Client, _ *ws.Message) {
	h.service.Hub().SendToUser(client.ID, h.service.message(TypePong, "", nil))
}

// handleSubscribe joins the client to the room of the ride it names, or of
// the active ride when none is named
func (h *Handler) handleSubscribe(client *ws.Client, msg *ws.Message) {
	rideID := msg.RideID
	if rideID == "" {
		snap, ok := h.rides.Active()
		if !ok {
			h.sendError(client, "no active ride")
			return
		}
		rideID = rideKey(snap.Ride.ID)
	}
	h.service.Hub().AddClientToRide(client.ID, rideID)
}

// handleSnapshot replies with the current state of the active ride and
// joins the client to its room
func (h *Handler) handleSnapshot(client *ws.Client, _ *ws.Message) {
	snap, ok := h.rides.Active()
	if !ok {
		h.sendError(client, "no active ride")
		return
	}
	rideID := rideKey(snap.Ride.ID)
	hub := h.service.Hub()
	hub.AddClientToRide(client.ID, rideID)
	hub.SendToUser(client.ID, h.service.message(TypeRideSnapshot, rideID, snapshotData(snap)))
}

func (h *Handler) sendError(client *ws.Client, reason string) {
	h.service.Hub().SendToUser(client.ID, h.service.message(TypeError, "", map[string]interface{}{
		"message": reason,
	}))
}
