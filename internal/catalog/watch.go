package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/listenupapp/listenup-player/internal/watcher"
)

// DefaultRescanDelay batches bursts of file events into one rescan.
const DefaultRescanDelay = 2 * time.Second

// Watch rescans the library whenever audio files change, until ctx ends.
// onScan, if non-nil, is called after each rescan.
func (c *Catalog) Watch(ctx context.Context, delay time.Duration, onScan func(ScanResult)) error {
	if delay <= 0 {
		delay = DefaultRescanDelay
	}

	w, err := watcher.New(c.logger, watcher.Options{Extensions: Extensions})
	if err != nil {
		return err
	}
	defer w.Stop() //nolint:errcheck // Nothing to do on shutdown

	if err := w.Watch(c.root); err != nil {
		return fmt.Errorf("watch %s: %w", c.root, err)
	}

	go w.Start(ctx) //nolint:errcheck // Returns when ctx ends

	c.logger.Info("watching library", "path", c.root)

	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-w.Events():
			c.logger.Debug("library changed", "path", event.Path, "type", event.Type.String())
			timer.Reset(delay)

		case err := <-w.Errors():
			c.logger.Warn("library watcher error", "error", err)

		case <-timer.C:
			result, err := c.Scan(ctx)
			if err != nil {
				c.logger.Warn("library rescan failed", "error", err)
				continue
			}
			if onScan != nil {
				onScan(result)
			}
		}
	}
}
