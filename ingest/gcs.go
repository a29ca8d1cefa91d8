// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSLister lists the objects of a bucket under a prefix.
type GCSLister struct {
	client *storage.Client
	Bucket string
	Prefix string
}

// NewGCSLister connects to Cloud Storage. An empty credentialsFile uses
// application default credentials.
func NewGCSLister(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSLister, error) {
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSLister{client: client, Bucket: bucket, Prefix: prefix}, nil
}

func (l *GCSLister) List(ctx context.Context) ([]Object, error) {
	it := l.client.Bucket(l.Bucket).Objects(ctx, &storage.Query{Prefix: l.Prefix})

	var objects []Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", l.Bucket, l.Prefix, err)
		}
		objects = append(objects, Object{
			Key: attrs.Name,
			URI: fmt.Sprintf("gs://%s/%s", l.Bucket, attrs.Name),
		})
	}
	return objects, nil
}

func (l *GCSLister) Close() error {
	return l.client.Close()
}
