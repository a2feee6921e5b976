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
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KodiakAI/KodiakFuzz/cmd/kodiak/gcs"
	"github.com/KodiakAI/KodiakFuzz/pkg/ux"
	"github.com/KodiakAI/KodiakFuzz/services/valgen/dataset"
)

var (
	exportFormat  string
	exportOut     string
	exportUpload  string
	exportSAKey   string
	watchDebounce time.Duration
)

// fetchDataset pulls the current dataset from the server in the requested
// format and returns the raw body.
func fetchDataset(ctx context.Context, baseURL, format string) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/valgen/dataset?format=%s",
		strings.TrimSuffix(baseURL, "/"), format)

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
		return nil, fmt.Errorf("read dataset response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func runDatasetExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "csv" && exportFormat != "jsonl" {
		return fmt.Errorf("unknown format %q (want csv or jsonl)", exportFormat)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	var body []byte
	err := ux.WithSpinner("Exporting dataset", func() error {
		var err error
		body, err = fetchDataset(ctx, serverURL, exportFormat)
		return err
	})
	if err != nil {
		return err
	}

	if exportOut == "" {
		_, err := os.Stdout.Write(body)
		return err
	}
	if err := os.WriteFile(exportOut, body, 0644); err != nil {
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	ux.Success(fmt.Sprintf("Wrote %d bytes to %s", len(body), exportOut))

	if exportUpload != "" {
		return uploadDataset(ctx, exportOut, exportUpload)
	}
	return nil
}

// uploadDataset pushes an exported file to a gs://bucket/object destination.
func uploadDataset(ctx context.Context, localPath, dest string) error {
	bucket, object, err := gcs.ParseURI(dest)
	if err != nil {
		return err
	}

	client, err := gcs.NewClient(ctx, bucket, exportSAKey)
	if err != nil {
		return err
	}
	defer client.Close()

	return ux.WithSpinner(fmt.Sprintf("Uploading to gs://%s/%s", bucket, object), func() error {
		return client.UploadFile(ctx, localPath, object)
	})
}

func runDatasetWatch(cmd *cobra.Command, args []string) error {
	if exportFormat != "csv" && exportFormat != "jsonl" {
		return fmt.Errorf("unknown format %q (want csv or jsonl)", exportFormat)
	}
	journalDir := args[0]

	export := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		body, err := fetchDataset(ctx, serverURL, exportFormat)
		if err != nil {
			ux.Warning(fmt.Sprintf("export skipped: %v", err))
			return
		}
		if err := os.WriteFile(exportOut, body, 0644); err != nil {
			ux.Warning(fmt.Sprintf("write %s: %v", exportOut, err))
			return
		}
		ux.Info(fmt.Sprintf("dataset refreshed: %d bytes -> %s", len(body), exportOut))
	}

	var opts *dataset.WatcherOptions
	if watchDebounce > 0 {
		opts = &dataset.WatcherOptions{DebounceWindow: watchDebounce}
	}
	watcher, err := dataset.NewWatcher(journalDir, export, opts)
	if err != nil {
		return fmt.Errorf("watch %s: %w", journalDir, err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("watch %s: %w", journalDir, err)
	}
	defer watcher.Stop()

	// Initial export so the output file exists before the first change.
	export()
	ux.Title(fmt.Sprintf("Watching %s (ctrl-c to stop)", journalDir))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	return nil
}
