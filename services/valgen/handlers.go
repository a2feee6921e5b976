// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package valgen

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/KodiakAI/KodiakFuzz/services/valgen/dataset"
	"github.com/KodiakAI/KodiakFuzz/services/valgen/telemetry"
	"github.com/KodiakAI/KodiakFuzz/services/valgen/wire"
)

// ServiceVersion is the valgen service version.
const ServiceVersion = "0.1.0"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Handlers contains the HTTP and WebSocket handlers for valgen.
type Handlers struct {
	svc    *Service
	logger *slog.Logger

	// protoLog throttles protocol-error logging. A misbehaving client can
	// send garbage at line rate; the reply path stays cheap and the logs
	// stay readable.
	protoLog *rate.Limiter
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{
		svc:      svc,
		logger:   svc.logger,
		protoLog: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// HandleSession handles GET /v1/valgen/session.
//
// Description:
//
//	Upgrades the connection to a WebSocket and runs the request/reply loop
//	for one fuzzing session. Each binary frame is one protocol message;
//	every frame gets exactly one reply frame. The loop ends when the client
//	disconnects; a session that exited stays connected until the client
//	hangs up, with any further generation requests rejected.
func (h *Handlers) HandleSession(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	sess := h.svc.NewSession()
	defer h.svc.EndSession(sess)

	h.svc.count(c.Request.Context(), h.svc.metricOrNil().SessionsTotal)
	if m := h.svc.metrics; m != nil && m.ActiveSessions != nil {
		m.ActiveSessions.Add(c.Request.Context(), 1)
		defer m.ActiveSessions.Add(context.Background(), -1)
	}

	logger := h.logger.With(slog.String("session_id", sess.ID))
	logger.Info("session connected", slog.String("remote", c.Request.RemoteAddr))

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			logger.Info("session disconnected", slog.String("reason", err.Error()))
			return
		}

		reply := h.dispatch(c.Request.Context(), sess, msgType, data)

		if err := ws.WriteMessage(websocket.BinaryMessage, reply.Encode()); err != nil {
			logger.Warn("reply write failed", slog.String("error", err.Error()))
			return
		}
	}
}

// dispatch decodes one frame and routes it through the service. Frames that
// fail structural decoding answer the malformed status without touching
// session state.
func (h *Handlers) dispatch(ctx context.Context, sess *Session, msgType int, data []byte) *wire.Message {
	if msgType != websocket.BinaryMessage {
		return h.protoError(sess, "non-binary frame")
	}

	req, err := wire.Decode(data)
	if err != nil {
		return h.protoError(sess, err.Error())
	}

	return h.svc.HandleMessage(ctx, sess, req)
}

func (h *Handlers) protoError(sess *Session, reason string) *wire.Message {
	h.svc.malformedTotal.Add(1)
	h.svc.count(context.Background(), h.svc.metricOrNil().MalformedTotal)
	if h.protoLog.Allow() {
		h.logger.Debug("undecodable frame",
			slog.String("session_id", sess.ID),
			slog.String("reason", reason))
	}
	return wire.Malformed()
}

// HealthResponse is the response for GET /v1/valgen/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/valgen/ready.
type ReadyResponse struct {
	Ready           bool `json:"ready"`
	JournalDegraded bool `json:"journal_degraded"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HandleHealth handles GET /v1/valgen/health.
//
// Always returns 200 if the process is running.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/valgen/ready.
//
// Returns 200 once the tree is rebuilt and the service accepts sessions.
// A degraded journal is reported but does not fail readiness; generation
// still works, only persistence is lost.
func (h *Handlers) HandleReady(c *gin.Context) {
	st := h.svc.Snapshot()
	c.JSON(http.StatusOK, ReadyResponse{
		Ready:           true,
		JournalDegraded: st.JournalDegraded,
	})
}

// HandleStats handles GET /v1/valgen/stats.
//
// Response:
//
//	200 OK: Stats
func (h *Handlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Snapshot())
}

// HandleDataset handles GET /v1/valgen/dataset.
//
// Description:
//
//	Exports the training dataset from a point-in-time snapshot of the
//	execution tree. The format query parameter selects "jsonl" (default)
//	or "csv". Concurrent export requests share one tree traversal.
//
// Response:
//
//	200 OK: the dataset in the requested format
//	400 Bad Request: unknown format
func (h *Handlers) HandleDataset(c *gin.Context) {
	format := c.DefaultQuery("format", "jsonl")
	if format != "jsonl" && format != "csv" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "format must be jsonl or csv",
			Code:  "INVALID_FORMAT",
		})
		return
	}

	ctx, span := telemetry.StartSpan(c.Request.Context(), "valgen", "dataset.export",
		trace.WithAttributes(attribute.String("format", format)))
	defer span.End()

	start := time.Now()
	examples := h.svc.Examples()
	span.SetAttributes(attribute.Int("examples", len(examples)))

	if m := h.svc.metrics; m != nil {
		if m.ExportDuration != nil {
			m.ExportDuration.Record(ctx, time.Since(start).Seconds())
		}
		h.svc.count(ctx, m.ExportsTotal, attribute.String("format", format))
	}

	telemetry.LoggerWithTrace(ctx, h.logger).Info("dataset exported",
		slog.String("format", format),
		slog.Int("examples", len(examples)),
		slog.Duration("took", time.Since(start)))

	switch format {
	case "csv":
		c.Header("Content-Type", "text/csv")
		if err := dataset.WriteCSV(c.Writer, examples); err != nil {
			telemetry.RecordError(span, err)
			h.logger.Error("csv export write failed", slog.String("error", err.Error()))
		}
	default:
		c.Header("Content-Type", "application/x-ndjson")
		if err := dataset.WriteJSONL(c.Writer, examples); err != nil {
			telemetry.RecordError(span, err)
			h.logger.Error("jsonl export write failed", slog.String("error", err.Error()))
		}
	}
}
