package bootstrap

// Stage is a step of the linear bootstrap state machine.
type Stage int

const (
	// StageStart is the initial stage.
	StageStart Stage = iota
	// StageConfigured means settings were resolved and staging allocated.
	StageConfigured
	// StageExtracted means the updater artifact was staged.
	StageExtracted
	// StageRunning means the child process was launched.
	StageRunning
	// StageStreaming means child output is being consumed.
	StageStreaming
	// StageExited means the child was reaped.
	StageExited
	// StageDone is the successful terminal stage.
	StageDone
	// StageFailed is the terminal stage after a fatal error.
	StageFailed
)

// String implements fmt.Stringer.
func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageConfigured:
		return "configured"
	case StageExtracted:
		return "extracted"
	case StageRunning:
		return "running"
	case StageStreaming:
		return "streaming"
	case StageExited:
		return "exited"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}
