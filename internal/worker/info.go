package worker

import (
	"context"
	"time"
)

// DefaultInfoInterval is the cadence of the live status stream.
const DefaultInfoInterval = 500 * time.Millisecond

// RequestInfo issues a QueryInfo and waits up to timeout for the snapshot.
// On timeout it falls back to the last cached snapshot, flagged with
// ErrInfoStale; it never hangs. ErrNoModelLoaded is returned while the worker
// is in the empty state.
func (w *Worker) RequestInfo(ctx context.Context, timeout time.Duration) (RuntimeInfo, error) {
	res := make(chan RuntimeInfo, 1)
	if err := w.Submit(QueryInfoCommand{Result: res}); err != nil {
		return w.cachedInfo(err)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case info, ok := <-res:
		if !ok {
			return RuntimeInfo{}, ErrNoModelLoaded
		}
		return info, nil
	case <-timer.C:
		return w.cachedInfo(ErrInfoStale)
	case <-ctx.Done():
		return w.cachedInfo(ctx.Err())
	}
}

// TryRequestInfo is the fallible one-shot used to poll worker liveness: it
// fails exactly while no model is loaded, which is how the unload handler
// waits out in-flight work before confirming completion.
func (w *Worker) TryRequestInfo(ctx context.Context) (RuntimeInfo, error) {
	res := make(chan RuntimeInfo, 1)
	if err := w.Submit(QueryInfoCommand{Result: res}); err != nil {
		return RuntimeInfo{}, err
	}
	select {
	case info, ok := <-res:
		if !ok {
			return RuntimeInfo{}, ErrNoModelLoaded
		}
		return info, nil
	case <-ctx.Done():
		return RuntimeInfo{}, ctx.Err()
	}
}

// RequestInfoStream samples runtime info on a fixed cadence and forwards each
// snapshot to out until ctx is cancelled. Backlog for a slow consumer is
// coalesced to the latest snapshot; the worker is never blocked.
func (w *Worker) RequestInfoStream(ctx context.Context, interval time.Duration, out chan RuntimeInfo) {
	if interval <= 0 {
		interval = DefaultInfoInterval
	}
	defer close(out)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		info, err := w.RequestInfo(ctx, interval)
		if err != nil && err != ErrInfoStale {
			// unloaded or shutting down; keep polling until told to stop
			continue
		}
		select {
		case out <- info:
		default:
			// drop the stale queued snapshot in favor of the fresh one
			select {
			case <-out:
			default:
			}
			select {
			case out <- info:
			default:
			}
		}
	}
}

func (w *Worker) cachedInfo(cause error) (RuntimeInfo, error) {
	if last := w.lastInfo.Load(); last != nil {
		return *last, ErrInfoStale
	}
	return RuntimeInfo{}, cause
}
