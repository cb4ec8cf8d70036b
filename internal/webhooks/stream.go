package webhooks

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ocx/paygate/internal/events"
	"github.com/ocx/paygate/internal/multitenancy"
)

// upgrader validates the WebSocket handshake's Origin header the same
// way the teacher's fabric hub does: an allowlist in production, anything
// in dev/staging.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     buildCheckOrigin(),
}

func buildCheckOrigin() func(r *http.Request) bool {
	env := os.Getenv("OCX_ENV")
	allowedRaw := os.Getenv("OCX_ALLOWED_ORIGINS")

	if env == "production" && allowedRaw != "" {
		allowed := make(map[string]bool)
		for _, origin := range strings.Split(allowedRaw, ",") {
			allowed[strings.TrimSpace(origin)] = true
		}
		return func(r *http.Request) bool { return allowed[r.Header.Get("Origin")] }
	}
	return func(r *http.Request) bool { return true }
}

// StreamHandler serves GET /api/v1/flows/stream: a read-only WebSocket
// feed of every flow-transition CloudEvent for the
// caller's tenant, for operational visibility into in-flight flows
// without a dashboard.
type StreamHandler struct {
	bus    *events.EventBus
	logger *log.Logger
}

// NewStreamHandler wires the handler to the shared in-process event bus.
// bus must be the same *events.EventBus instance the orchestrator/engine
// were constructed with (orchestrator.WithEvents), or nothing will ever
// arrive on the stream.
func NewStreamHandler(bus *events.EventBus) *StreamHandler {
	return &StreamHandler{bus: bus, logger: log.New(os.Stdout, "[FLOW-STREAM] ", log.LstdFlags)}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID, err := multitenancy.GetTenantID(r.Context())
	if err != nil {
		http.Error(w, "missing tenant context", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch := h.bus.Subscribe()
	defer h.bus.Unsubscribe(ch)

	const pingPeriod = 30 * time.Second
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			if eventTenant, ok := event.Data["tenantId"].(string); ok && eventTenant != "" && eventTenant != tenantID {
				continue
			}
			payload, err := event.JSON()
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
