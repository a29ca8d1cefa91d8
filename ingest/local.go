// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
)

// LocalLister lists the files below Root. URIs are URLPrefix joined with
// the relative key, or the file path when URLPrefix is empty.
type LocalLister struct {
	Root      string
	URLPrefix string
}

func (l LocalLister) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	err := filepath.WalkDir(l.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(l.Root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)

		uri := p
		if l.URLPrefix != "" {
			uri = path.Join(l.URLPrefix, key)
		}
		objects = append(objects, Object{Key: key, URI: uri})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}
