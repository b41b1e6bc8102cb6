package plugins

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch re-scans dir whenever a manifest appears or changes, so plugins
// dropped into the directory become loadable without a restart. Registration
// only: already-loaded modules are never replaced, matching the append-only
// instance cache above. Watch blocks until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	// Pick up whatever is already there.
	if err := r.ScanDirectory(dir); err != nil {
		r.log.WithError(err).Warn("initial plugin directory scan failed")
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isManifestPath(event.Name) {
				// A new plugin subdirectory may have been created; rescan to
				// find its manifest.
				if event.Op&fsnotify.Create == 0 {
					continue
				}
			}
			r.log.Debugf("plugin directory changed: %s", event.Name)
			if err := r.ScanDirectory(dir); err != nil {
				r.log.WithError(err).Warn("plugin directory rescan failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.WithError(err).Warn("plugin directory watch error")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// isManifestPath reports whether path names a plugin manifest file.
func isManifestPath(path string) bool {
	return strings.EqualFold(filepath.Base(path), "manifest.yaml")
}
