// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Integration tests exercising the full stack: the Go client against a real
// gin server, through the WebSocket protocol, the execution tree, the
// journal, and the dataset exporter. Everything runs in-process.
package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KodiakAI/KodiakFuzz/pkg/client"
	"github.com/KodiakAI/KodiakFuzz/services/valgen"
)

func startServer(t *testing.T, cfg valgen.ServiceConfig) (*httptest.Server, *valgen.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := valgen.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	router := gin.New()
	valgen.RegisterRoutes(router.Group("/v1"), valgen.NewHandlers(svc))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, svc
}

func sessionURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/valgen/session"
}

// runSession plays one instrumented run: a fixed-outcome coin, a draw in a
// small range, then exit.
func runSession(t *testing.T, srv *httptest.Server, win bool) {
	t.Helper()
	ctx := context.Background()

	c, err := client.Dial(ctx, sessionURL(srv))
	require.NoError(t, err)
	defer c.Close()

	flip, err := client.Between[bool](ctx, c, false, true, 100)
	require.NoError(t, err)
	_ = flip

	n, err := client.Between[int8](ctx, c, 0, 3, 101)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int8(0))
	assert.LessOrEqual(t, n, int8(3))

	echo, err := c.NotifyExit(ctx, win)
	require.NoError(t, err)
	assert.Equal(t, win, echo)
}

func TestFullStack_SessionsGrowSharedTree(t *testing.T) {
	cfg := valgen.DefaultServiceConfig()
	cfg.Seed = 7
	srv, svc := startServer(t, cfg)

	for i := 0; i < 20; i++ {
		runSession(t, srv, i%4 == 0)
	}

	st := svc.Snapshot()
	assert.Equal(t, int64(20), st.SessionsTotal)
	assert.Equal(t, int64(40), st.ValuesGenerated)
	assert.Equal(t, int64(5), st.Wins)

	// Two draws per run, bool (2 keys) x int8 in [0,3] (4 keys): the shared
	// tree can never exceed root + 2 + 2*4 nodes.
	assert.LessOrEqual(t, st.TreeNodes, 11)
	assert.Greater(t, st.TreeNodes, 1)
}

func TestFullStack_DatasetReflectsOutcomes(t *testing.T) {
	cfg := valgen.DefaultServiceConfig()
	cfg.Seed = 11
	srv, _ := startServer(t, cfg)

	ctx := context.Background()

	// One run, always winning, so its reached node is labeled 1.
	c, err := client.Dial(ctx, sessionURL(srv))
	require.NoError(t, err)
	defer c.Close()

	_, err = client.Between[uint8](ctx, c, 5, 5, 1)
	require.NoError(t, err)
	_, err = c.NotifyExit(ctx, true)
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/v1/valgen/dataset")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 1)

	var ex struct {
		Features []float64 `json:"features"`
		Label    int       `json:"label"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ex))
	assert.Equal(t, float64(5), ex.Features[0])
	assert.Equal(t, 1, ex.Label)
}

func TestFullStack_JournalSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	cfg := valgen.DefaultServiceConfig()
	cfg.Seed = 3
	cfg.JournalPath = dir

	srv, svc := startServer(t, cfg)
	for i := 0; i < 5; i++ {
		runSession(t, srv, true)
	}
	nodesBefore := svc.Snapshot().TreeNodes
	examplesBefore := svc.Examples()
	require.NoError(t, svc.Close())
	srv.Close()

	// Reopen on the same journal: the tree and its labels come back.
	cfg2 := valgen.DefaultServiceConfig()
	cfg2.Seed = 3
	cfg2.JournalPath = dir
	_, svc2 := startServer(t, cfg2)

	assert.Equal(t, nodesBefore, svc2.Snapshot().TreeNodes)
	assert.Equal(t, examplesBefore, svc2.Examples())
}

func TestFullStack_ConcurrentSessions(t *testing.T) {
	cfg := valgen.DefaultServiceConfig()
	cfg.Seed = 99
	srv, svc := startServer(t, cfg)

	const sessions = 8
	done := make(chan error, sessions)

	for i := 0; i < sessions; i++ {
		go func() {
			ctx := context.Background()
			c, err := client.Dial(ctx, sessionURL(srv))
			if err != nil {
				done <- err
				return
			}
			defer c.Close()

			for j := 0; j < 10; j++ {
				if _, err := client.Between[int32](ctx, c, -1000, 1000, uint64(j)); err != nil {
					done <- err
					return
				}
			}
			_, err = c.NotifyExit(ctx, false)
			done <- err
		}()
	}

	for i := 0; i < sessions; i++ {
		require.NoError(t, <-done)
	}

	st := svc.Snapshot()
	assert.Equal(t, int64(sessions), st.SessionsTotal)
	assert.Equal(t, int64(sessions*10), st.ValuesGenerated)
	assert.Equal(t, int64(0), st.ActiveSessions)
}
