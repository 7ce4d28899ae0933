package stats

import "sync"

type MockStatsUpdater struct {
	mu        sync.Mutex
	IncrCalls []string
	DecrCalls []string
}

func (m *MockStatsUpdater) Incr(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IncrCalls = append(m.IncrCalls, name)
}

func (m *MockStatsUpdater) Decr(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DecrCalls = append(m.DecrCalls, name)
}

// Calls returns copies of the recorded Incr and Decr calls, safe to read
// while other goroutines keep updating.
func (m *MockStatsUpdater) Calls() (incr, decr []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.IncrCalls...), append([]string(nil), m.DecrCalls...)
}

func (m *MockStatsUpdater) RegisterMetric(name string) {}

func (m *MockStatsUpdater) Run() {}
