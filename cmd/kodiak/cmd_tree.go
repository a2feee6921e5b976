// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KodiakAI/KodiakFuzz/pkg/ux"
	"github.com/KodiakAI/KodiakFuzz/services/valgen"
)

// fetchStats pulls the server's counter snapshot.
func fetchStats(ctx context.Context, baseURL string) (*valgen.Stats, error) {
	url := strings.TrimSuffix(baseURL, "/") + "/v1/valgen/stats"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("is the valgen server running at %s? %w", baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read stats response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var st valgen.Stats
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("parse stats response: %w", err)
	}
	return &st, nil
}

func runTreeStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	st, err := fetchStats(ctx, serverURL)
	if err != nil {
		return err
	}

	ux.Title("Execution Tree")
	ux.KeyValue("seed", st.Seed)
	ux.KeyValue("started_at", st.StartedAt.Format(time.RFC3339))
	ux.KeyValue("tree_nodes", st.TreeNodes)
	ux.KeyValue("sessions_total", st.SessionsTotal)
	ux.KeyValue("active_sessions", st.ActiveSessions)
	ux.KeyValue("values_generated", st.ValuesGenerated)
	ux.KeyValue("malformed_requests", st.Malformed)
	ux.KeyValue("unsupported_requests", st.Unsupported)
	ux.KeyValue("wins", st.Wins)
	if st.JournalDegraded {
		ux.Warning("journal is degraded: the tree is in-memory only")
	}
	if st.JournalDeltas > 0 {
		ux.KeyValue("journal_deltas", st.JournalDeltas)
	}
	return nil
}
