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
	"github.com/spf13/cobra"

	"github.com/KodiakAI/KodiakFuzz/pkg/ux"
)

// --- Global Command Variables ---
var (
	serverURL string
	plainMode bool

	rootCmd = &cobra.Command{
		Use:   "kodiak",
		Short: "A cli to manage the Kodiak feedback-guided fuzzing stack",
		Long: `Kodiak is a tool for operating the valgen value-generation
server and its training-data pipeline.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if plainMode {
				ux.SetPlain(true)
			}
		},
	}

	// --- Dataset ---
	datasetCmd = &cobra.Command{
		Use:   "dataset",
		Short: "Export and watch the training dataset",
	}
	datasetExportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export the execution tree as training examples",
		RunE:  runDatasetExport, // Defined in cmd_dataset.go
	}
	datasetWatchCmd = &cobra.Command{
		Use:   "watch [journal_dir]",
		Short: "Re-export the dataset whenever the journal changes",
		Args:  cobra.ExactArgs(1),
		RunE:  runDatasetWatch, // Defined in cmd_dataset.go
	}

	// --- Tree ---
	treeCmd = &cobra.Command{
		Use:   "tree",
		Short: "Inspect the server's execution tree",
	}
	treeStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show execution tree and session counters",
		RunE:  runTreeStats, // Defined in cmd_tree.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		"http://localhost:8080", "Base URL of the valgen server")
	rootCmd.PersistentFlags().BoolVar(&plainMode, "plain", false,
		"Disable styled output")

	datasetExportCmd.Flags().StringVar(&exportFormat, "format", "jsonl",
		"Output format: jsonl or csv")
	datasetExportCmd.Flags().StringVarP(&exportOut, "out", "o", "",
		"Output file (default stdout)")
	datasetExportCmd.Flags().StringVar(&exportUpload, "upload", "",
		"Also upload to a GCS destination, e.g. gs://bucket/runs/latest.csv")
	datasetExportCmd.Flags().StringVar(&exportSAKey, "sa-key", "",
		"Path to a GCP service account key for --upload")

	datasetWatchCmd.Flags().StringVar(&exportFormat, "format", "jsonl",
		"Output format: jsonl or csv")
	datasetWatchCmd.Flags().StringVarP(&exportOut, "out", "o", "dataset.jsonl",
		"Output file rewritten on every change")
	datasetWatchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0,
		"Quiet window before re-exporting (default 2s)")

	datasetCmd.AddCommand(datasetExportCmd)
	datasetCmd.AddCommand(datasetWatchCmd)
	treeCmd.AddCommand(treeStatsCmd)

	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(treeCmd)
}
