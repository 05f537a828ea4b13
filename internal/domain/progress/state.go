package progress

// Mode selects how a progress bar is drawn.
type Mode int

const (
	// Indeterminate shows activity without a fraction.
	Indeterminate Mode = iota
	// Determinate shows Current out of Total.
	Determinate
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case Indeterminate:
		return "indeterminate"
	case Determinate:
		return "determinate"
	default:
		return "unknown"
	}
}

// State is the latest progress signal. Only the most recent value matters.
// Current never exceeds Total for a Determinate state with Total > 0.
type State struct {
	// Message is the short status shown on the loading screen.
	Message string
	// Mode selects determinate or indeterminate rendering.
	Mode Mode
	// Current is the number of finished steps.
	Current uint
	// Total is the number of steps.
	Total uint
}

// IsDeterminate reports whether the state carries a usable fraction.
func (s State) IsDeterminate() bool {
	return s.Mode == Determinate && s.Total > 0
}
