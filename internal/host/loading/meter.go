package loading

import "sync"

// Meter tracks the steps of one named startup task.
type Meter struct {
	mu      sync.Mutex
	name    string
	total   int
	current int
}

// NewMeter creates a meter with a fixed number of steps.
func NewMeter(name string, total int) *Meter {
	return &Meter{
		name:  name,
		total: max(total, 0),
	}
}

// Name returns the task name.
func (m *Meter) Name() string {
	return m.name
}

// Increment advances the meter by one step, stopping at the total.
func (m *Meter) Increment() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current < m.total {
		m.current++
	}
}

// Complete moves the meter to its last step.
func (m *Meter) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = m.total
}

// Steps returns the current and total step counts.
func (m *Meter) Steps() (current, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current, m.total
}
