// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package ingest fills the stimulus catalog from a bucket or a directory.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/danielhkuo/bestworst/models"
	"github.com/danielhkuo/bestworst/scaling"
)

// Object is one listed file. Key is slash separated and relative to the
// listing root; URI is what the presentation layer loads.
type Object struct {
	Key string
	URI string
}

type Lister interface {
	List(ctx context.Context) ([]Object, error)
}

// Registrar stores catalog rows. *store.Store satisfies it.
type Registrar interface {
	AddResource(ctx context.Context, r models.Resource) (scaling.StimulusID, bool, error)
}

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
	".aiff": true,
}

// IsAudio reports whether key names an audio file.
func IsAudio(key string) bool {
	return audioExtensions[strings.ToLower(path.Ext(key))]
}

type Report struct {
	Added    int
	Existing int
	Skipped  int
}

// Run registers every audio object of lister under groupKey. Directory
// placeholders and other files are skipped. Re-running over the same
// objects adds nothing.
func Run(ctx context.Context, lister Lister, reg Registrar, groupKey, description string) (Report, error) {
	if groupKey == "" {
		return Report{}, fmt.Errorf("%w: group key is required", scaling.ErrValidation)
	}

	objects, err := lister.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("%w: list objects: %w", scaling.ErrStoreUnavailable, err)
	}

	var report Report
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") || !IsAudio(obj.Key) {
			report.Skipped++
			continue
		}

		id, added, err := reg.AddResource(ctx, models.Resource{
			FolderPath:  groupKey,
			Filename:    path.Base(obj.Key),
			URI:         obj.URI,
			Description: description,
		})
		if err != nil {
			return report, fmt.Errorf("register %s: %w", obj.Key, err)
		}
		if added {
			report.Added++
			slog.Debug("resource added", "id", id, "key", obj.Key)
		} else {
			report.Existing++
		}
	}

	slog.Info("ingest finished",
		"group_key", groupKey,
		"added", report.Added,
		"existing", report.Existing,
		"skipped", report.Skipped)
	return report, nil
}
