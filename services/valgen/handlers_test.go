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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KodiakAI/KodiakFuzz/services/valgen/wire"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := newTestService(t, 1)
	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(svc))
	return router, svc
}

func TestHandleHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/valgen/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
}

func TestHandleReady(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/valgen/ready", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
	assert.False(t, resp.JournalDegraded)
}

func TestHandleStats(t *testing.T) {
	router, svc := newTestRouter(t)

	sess := svc.NewSession()
	svc.HandleMessage(context.Background(), sess, generateReq(0,
		wire.IntValue(wire.TagInt8, 0), wire.IntValue(wire.TagInt8, 5)))
	svc.EndSession(sess)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/valgen/stats", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var st Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, uint64(1), st.Seed)
	assert.Equal(t, int64(1), st.SessionsTotal)
	assert.Equal(t, int64(1), st.ValuesGenerated)
	assert.Equal(t, 1, st.TreeNodes)
}

func TestHandleDataset_JSONL(t *testing.T) {
	router, svc := newTestRouter(t)

	sess := svc.NewSession()
	svc.HandleMessage(context.Background(), sess, generateReq(0,
		wire.IntValue(wire.TagInt8, 7), wire.IntValue(wire.TagInt8, 7)))
	svc.HandleMessage(context.Background(), sess, exitReq(1))
	svc.EndSession(sess)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/valgen/dataset", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 1)

	var ex struct {
		Features []float64 `json:"features"`
		Label    int       `json:"label"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ex))
	require.Len(t, ex.Features, 10)
	assert.Equal(t, float64(7), ex.Features[0])
	assert.Equal(t, 1, ex.Label)
}

func TestHandleDataset_CSV(t *testing.T) {
	router, svc := newTestRouter(t)

	sess := svc.NewSession()
	svc.HandleMessage(context.Background(), sess, generateReq(0,
		wire.IntValue(wire.TagInt8, 3), wire.IntValue(wire.TagInt8, 3)))
	svc.EndSession(sess)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/valgen/dataset?format=csv", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "f0,f1,f2,f3,f4,f5,f6,f7,f8,f9,label", lines[0])
	assert.Equal(t, "3,0,0,0,0,0,0,0,0,0,0", lines[1])
}

func TestHandleDataset_BadFormat(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/valgen/dataset?format=xml", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_FORMAT", resp.Code)
}

func dialTestSession(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/valgen/session"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func roundTrip(t *testing.T, ws *websocket.Conn, req *wire.Message) *wire.Message {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, req.Encode()))

	msgType, data, err := ws.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, msgType)

	reply, err := wire.Decode(data)
	require.NoError(t, err)
	return reply
}

func TestHandleSession_RoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ws := dialTestSession(t, srv)

	lo, hi := wire.IntValue(wire.TagInt32, -100), wire.IntValue(wire.TagInt32, 100)
	reply := roundTrip(t, ws, generateReq(1, lo, hi))
	require.Equal(t, wire.StatusValue, replyStatus(t, reply))

	v, err := wire.DecodeValue(wire.TagInt32, reply.Part(1))
	require.NoError(t, err)
	assert.True(t, wire.LessEq(lo, v))
	assert.True(t, wire.LessEq(v, hi))

	reply = roundTrip(t, ws, exitReq(1))
	require.Equal(t, wire.StatusExitAck, replyStatus(t, reply))
	got, ok := reply.Byte(1)
	require.True(t, ok)
	assert.Equal(t, byte(1), got)
}

func TestHandleSession_UndecodableFrame(t *testing.T) {
	router, _ := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ws := dialTestSession(t, srv)

	// A 4-byte length header pointing past the end of the frame.
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage,
		[]byte{0x00, 0x00, 0x00, 0xFF, 0x01}))

	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	reply, err := wire.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusMalformed, replyStatus(t, reply))
}

func TestHandleSession_TextFrameIsMalformed(t *testing.T) {
	router, _ := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ws := dialTestSession(t, srv)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))

	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	reply, err := wire.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusMalformed, replyStatus(t, reply))
}

func TestHandleSession_SurvivesGarbageThenWorks(t *testing.T) {
	router, _ := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ws := dialTestSession(t, srv)

	// Garbage first; the connection must stay usable.
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{0xDE, 0xAD}))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	reply, err := wire.Decode(data)
	require.NoError(t, err)
	require.Equal(t, wire.StatusMalformed, replyStatus(t, reply))

	lo, hi := wire.BoolValue(false), wire.BoolValue(true)
	reply = roundTrip(t, ws, generateReq(0, lo, hi))
	assert.Equal(t, wire.StatusValue, replyStatus(t, reply))
}
