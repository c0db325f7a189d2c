package infra

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	checkExecInterval = 5 * time.Second
)

// MonitorExecutable signals once the running binary is replaced on disk.
func MonitorExecutable(ctx context.Context) <-chan struct{} {
	exeFilename, err := os.Executable()
	if err != nil {
		log.WithError(err).Warn("cant resolve executable path for monitor")
		return make(chan struct{})
	}
	return WatchFile(ctx, exeFilename, checkExecInterval)
}

// WatchFile emits when the modification time of path changes and then closes.
// The channel closes without a value when ctx ends or path cannot be read.
func WatchFile(ctx context.Context, path string, interval time.Duration) <-chan struct{} {
	ch := make(chan struct{}, 1)
	entry := log.WithField("path", path)
	stat, err := os.Stat(path)
	if err != nil {
		entry.WithError(err).Warn("cant stat file for monitor")
		close(ch)
		return ch
	}
	originalTime := stat.ModTime()

	go func() {
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stat, err := os.Stat(path)
				if err != nil {
					entry.WithError(err).Warn("cant stat file for monitor tick")
					continue
				}
				if !originalTime.Equal(stat.ModTime()) {
					ch <- struct{}{}
					return
				}
			}
		}
	}()
	return ch
}
