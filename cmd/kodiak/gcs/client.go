// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gcs uploads exported datasets to Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Client wraps a GCS storage client bound to one bucket.
type Client struct {
	storageClient *storage.Client
	BucketName    string
}

// ParseURI splits a gs://bucket/path/object destination into bucket and
// object.
func ParseURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("destination must start with gs://, got %q", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("destination must be gs://bucket/object, got %q", uri)
	}
	return bucket, object, nil
}

// NewClient creates a client for the given bucket. With an empty saKeyPath
// the client uses application default credentials.
func NewClient(ctx context.Context, bucketName, saKeyPath string) (*Client, error) {
	var opts []option.ClientOption
	if saKeyPath != "" {
		if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", saKeyPath)
		}
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}

	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &Client{
		storageClient: storageClient,
		BucketName:    bucketName,
	}, nil
}

// UploadFile copies a local file to the given object path in the bucket.
func (c *Client) UploadFile(ctx context.Context, localPath, gcsPath string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open the local file %s: %w", localPath, err)
	}
	defer localFile.Close()

	obj := c.storageClient.Bucket(c.BucketName).Object(gcsPath)
	writer := obj.NewWriter(ctx)
	writer.ContentType = contentTypeFor(gcsPath)
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, localFile); err != nil {
		return fmt.Errorf("failed to copy local file %s to GCS object %s: %w", localPath, gcsPath, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", gcsPath, err)
	}
	return nil
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	return c.storageClient.Close()
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".csv"):
		return "text/csv"
	case strings.HasSuffix(path, ".jsonl"):
		return "application/x-ndjson"
	default:
		return "application/octet-stream"
	}
}
