package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/anstrom/netsweep/internal/api/middleware"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/scanning"
	"github.com/anstrom/netsweep/internal/stream"
)

const (
	maxMessageSize = 512 // Maximum message size allowed from peer

	defaultMaxRequestSize = 1 << 20

	msgNoTarget    = "No target specified"
	msgStoreFailed = "Failed to save scan: %v"
	msgStreamDone  = "scan finished"
)

// ScanRequest is the body of POST /api/scan.
type ScanRequest struct {
	Target string `json:"target" validate:"required,max=255"`
}

// ScanHandler runs scans and streams their events to the client.
type ScanHandler struct {
	scanner        ScanStreamer
	store          HistoryStore
	logger         *logging.Logger
	validator      *validator.Validate
	upgrader       websocket.Upgrader
	maxRequestSize int64
}

// NewScanHandler creates a scan handler. maxRequestSize bounds the JSON body;
// zero selects 1 MiB.
func NewScanHandler(scanner ScanStreamer, store HistoryStore, logger *logging.Logger, maxRequestSize int64) *ScanHandler {
	if maxRequestSize <= 0 {
		maxRequestSize = defaultMaxRequestSize
	}
	return &ScanHandler{
		scanner:        scanner,
		store:          store,
		logger:         logger.WithComponent("scan-handler"),
		validator:      validator.New(),
		maxRequestSize: maxRequestSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// CORS policy is enforced by the router.
				return true
			},
		},
	}
}

// validateTarget trims target and checks it against ScanRequest rules.
func (h *ScanHandler) validateTarget(target string) (string, bool) {
	req := ScanRequest{Target: strings.TrimSpace(target)}
	if err := h.validator.Struct(req); err != nil {
		return "", false
	}
	return req.Target, true
}

// Scan handles POST /api/scan. The response is an event stream; the scan is
// saved once the stream has been fully delivered.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := parseJSON(r, &req, h.maxRequestSize); err != nil {
		writeError(w, r, http.StatusBadRequest, msgNoTarget)
		return
	}

	target, ok := h.validateTarget(req.Target)
	if !ok {
		writeError(w, r, http.StatusBadRequest, msgNoTarget)
		return
	}

	sse, err := stream.NewSSEWriter(w)
	if err != nil {
		h.logger.Error("Streaming unsupported", "error", err)
		writeError(w, r, http.StatusInternalServerError, msgInternalError)
		return
	}

	log := h.logger.WithTarget(target).WithFields("request_id", middleware.GetRequestID(r))
	log.Info("Scan requested", "transport", "sse")

	sse.Start()
	summary, err := stream.Relay(h.scanner.Stream(r.Context(), target), sse)
	if !summary.Completed {
		log.Info("Client disconnected, scan abandoned", "events", summary.Events, "error", err)
		return
	}

	if event, failed := h.persist(r.Context(), log, target, summary); failed {
		_ = sse.Send(event)
	}
	log.Info(msgStreamDone, "events", summary.Events, "hosts", len(summary.Results))
}

// ScanWebSocket handles GET /api/scan/ws?target=... and streams the same
// events as JSON messages.
func (h *ScanHandler) ScanWebSocket(w http.ResponseWriter, r *http.Request) {
	target, ok := h.validateTarget(r.URL.Query().Get("target"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, msgNoTarget)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	log := h.logger.WithTarget(target).WithFields("request_id", middleware.GetRequestID(r))
	log.Info("Scan requested", "transport", "websocket")

	// The request context does not end when a hijacked peer goes away, so
	// a reader cancels the scan once the connection closes.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sink := stream.NewWebSocketSink(conn)
	summary, err := stream.Relay(h.scanner.Stream(ctx, target), sink)
	if !summary.Completed {
		log.Info("Client disconnected, scan abandoned", "events", summary.Events, "error", err)
		return
	}

	if event, failed := h.persist(ctx, log, target, summary); failed {
		_ = sink.Send(event)
	}
	log.Info(msgStreamDone, "events", summary.Events, "hosts", len(summary.Results))
	_ = sink.Close(msgStreamDone)
}

// persist saves a fully delivered scan that produced host results. On
// failure it returns the error event to send to the still connected client.
func (h *ScanHandler) persist(
	ctx context.Context,
	log *logging.Logger,
	target string,
	summary stream.Summary,
) (scanning.Event, bool) {
	if !summary.Persistable() {
		return scanning.Event{}, false
	}

	// The save must not be cut short by the client leaving after the last frame.
	saveCtx := context.WithoutCancel(ctx)
	if _, err := h.store.Append(saveCtx, target, time.Now(), summary.Results); err != nil {
		log.ErrorStore("Failed to save scan", err)
		return scanning.ErrorEvent(fmt.Sprintf(msgStoreFailed, err)), true
	}
	return scanning.Event{}, false
}
