package catalog

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"ratebench.io/internal/obs"
)

// Watch reloads the catalog whenever its file is rewritten. The watcher runs
// until the context ends. Reload outcomes are reported on the returned channel
// so callers (and tests) can observe them; the channel is closed on shutdown.
func Watch(ctx context.Context, c *Catalog, path string) (<-chan error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: editors and config maps replace the
	// file on write, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	results := make(chan error, 1)
	go func() {
		defer watcher.Close()
		defer close(results)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				err := c.ReloadFrom(path)
				if err != nil {
					obs.LogRequest(map[string]any{
						"level": "error",
						"msg":   "catalog_reload_failed",
						"path":  path,
						"error": err.Error(),
					})
				} else {
					obs.LogRequest(map[string]any{
						"level": "info",
						"msg":   "catalog_reloaded",
						"path":  path,
					})
				}
				select {
				case results <- err:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				obs.LogRequest(map[string]any{
					"level": "error",
					"msg":   "catalog_watch_error",
					"error": err.Error(),
				})
			}
		}
	}()
	return results, nil
}
