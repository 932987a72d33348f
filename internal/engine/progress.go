package engine

import (
	"context"
	"sync"
)

// Phase labels where a running operation currently is.
type Phase string

const (
	PhaseLocating   Phase = "locating"
	PhaseCollecting Phase = "collecting"
	PhaseArchiving  Phase = "archiving"
	PhaseVerifying  Phase = "verifying"
	PhaseStaging    Phase = "staging"
	PhaseCommitting Phase = "committing"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
	PhaseCancelled  Phase = "cancelled"
)

// Event is one progress update from a running backup or restore.
type Event struct {
	Phase      Phase  `json:"phase"`
	Path       string `json:"path,omitempty"`
	FilesDone  int    `json:"files_done,omitempty"`
	FilesTotal int    `json:"files_total,omitempty"`
	Bytes      int64  `json:"bytes,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Handle tracks one asynchronous operation. Events() delivers progress
// on a buffered channel; a consumer that falls behind loses events, the
// operation never stalls on it. Wait() blocks until the terminal state.
type Handle struct {
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc

	mu      sync.Mutex
	err     error
	backup  *BackupReport
	restore *RestoreReport
}

func newHandle(cancel context.CancelFunc) *Handle {
	return &Handle{
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Events returns the progress channel. It is closed when the operation
// reaches a terminal state.
func (h *Handle) Events() <-chan Event { return h.events }

// Cancel requests cancellation. The operation stops at the next file
// boundary; Wait() then returns context.Canceled.
func (h *Handle) Cancel() { h.cancel() }

// Wait blocks until the operation finishes and returns its terminal
// error, nil on success.
func (h *Handle) Wait() error {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// BackupReport returns the completed backup's report, nil before Wait
// returns or for restore handles.
func (h *Handle) BackupReport() *BackupReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.backup
}

// RestoreReport returns the completed restore's report, nil before Wait
// returns or for backup handles.
func (h *Handle) RestoreReport() *RestoreReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restore
}

// publish sends an event without blocking. Full buffer drops the event.
func (h *Handle) publish(ev Event) {
	select {
	case h.events <- ev:
	default:
	}
}

// finish records the terminal outcome and releases waiters. Called
// exactly once, by the worker goroutine.
func (h *Handle) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	close(h.events)
	close(h.done)
}

func (h *Handle) setBackupReport(r *BackupReport) {
	h.mu.Lock()
	h.backup = r
	h.mu.Unlock()
}

func (h *Handle) setRestoreReport(r *RestoreReport) {
	h.mu.Lock()
	h.restore = r
	h.mu.Unlock()
}
