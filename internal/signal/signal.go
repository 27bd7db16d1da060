// Package signal cancels the root context on SIGINT/SIGTERM, with support
// for deferring cancellation across critical sections.
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	mu         sync.Mutex
	blockCount int
	// pending holds a cancel that arrived while signals were blocked.
	pending context.CancelFunc
)

// WithSignalCancel returns a context cancelled on SIGINT or SIGTERM.
func WithSignalCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			mu.Lock()
			if blockCount > 0 {
				pending = cancel
				mu.Unlock()
				return
			}
			mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// BlockSignals defers signal cancellation until the matching UnblockSignals.
// Calls nest.
func BlockSignals() {
	mu.Lock()
	defer mu.Unlock()
	blockCount++
}

// UnblockSignals ends a critical section. A signal received while blocked
// cancels once the outermost section ends.
func UnblockSignals() {
	mu.Lock()
	defer mu.Unlock()
	if blockCount > 0 {
		blockCount--
	}
	if blockCount == 0 && pending != nil {
		pending()
		pending = nil
	}
}

// Critical runs fn with signals blocked.
func Critical(fn func() error) error {
	BlockSignals()
	defer UnblockSignals()
	return fn()
}
