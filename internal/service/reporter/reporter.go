package reporter

import (
	"context"

	"github.com/swzo/brassworks-updater/internal/domain/progress"
	"github.com/swzo/brassworks-updater/internal/logger"
)

// Display accepts a short human-readable status string.
type Display interface {
	UpdateProgress(message string)
}

// ActivityDisplay is a Display that can also show a message without step
// counts, used for indeterminate states.
type ActivityDisplay interface {
	Display
	ShowActivity(message string)
}

// ProgressSink changes the step counts of a host progress meter.
type ProgressSink interface {
	// Total returns the currently stored step total.
	Total() (uint, error)
	// SetTotal replaces the step total.
	SetTotal(n uint) error
	// SetCurrent replaces the number of finished steps.
	SetCurrent(n uint) error
}

// Bridge delivers progress states to a Display and an optional ProgressSink.
type Bridge struct {
	display Display
	sink    ProgressSink
}

// New creates a Bridge. Either collaborator may be nil.
func New(display Display, sink ProgressSink) *Bridge {
	return &Bridge{
		display: display,
		sink:    sink,
	}
}

// Report pushes state to the host. It never fails: numeric updates that the
// sink rejects are logged at debug level and dropped.
func (b *Bridge) Report(ctx context.Context, state progress.State) {
	if b.sink != nil && state.IsDeterminate() {
		if err := b.syncSteps(state); err != nil {
			logger.DebugKV(ctx, "Skipping numeric progress update", "error", err)
		}
	}

	if b.display == nil {
		return
	}

	if activity, ok := b.display.(ActivityDisplay); ok && !state.IsDeterminate() {
		activity.ShowActivity(state.Message)
		return
	}

	b.display.UpdateProgress(state.Message)
}

// syncSteps writes the total only when it changed, so the bar is not reset needlessly.
func (b *Bridge) syncSteps(state progress.State) error {
	total, err := b.sink.Total()
	if err != nil {
		return err
	}

	if total != state.Total {
		if err = b.sink.SetTotal(state.Total); err != nil {
			return err
		}
	}

	return b.sink.SetCurrent(state.Current)
}
