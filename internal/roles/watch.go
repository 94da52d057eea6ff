package roles

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads role overrides whenever files in dir change. It blocks until
// ctx is done; run it in its own goroutine.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.LoadDir(dir); err != nil {
				r.logger.Warn("role reload failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("role watcher error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}
