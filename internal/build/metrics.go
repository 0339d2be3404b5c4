package build

import (
	"sync"
	"time"
)

// ClassMetrics holds counters for one asset class.
type ClassMetrics struct {
	Total         int64
	Succeeded     int64
	Failed        int64
	TotalDuration time.Duration
	LastSource    string
	LastError     string
}

// AverageDuration returns the mean transform time.
func (cm ClassMetrics) AverageDuration() time.Duration {
	if cm.Total == 0 {
		return 0
	}

	return cm.TotalDuration / time.Duration(cm.Total)
}

// Metrics tracks transform outcomes per asset class.
type Metrics struct {
	classes map[Class]*ClassMetrics
	mutex   sync.RWMutex
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{classes: make(map[Class]*ClassMetrics)}
}

// Record adds result to the counters of its class.
func (m *Metrics) Record(result Result) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	cm, ok := m.classes[result.Class]
	if !ok {
		cm = &ClassMetrics{}
		m.classes[result.Class] = cm
	}

	cm.Total++
	cm.TotalDuration += result.Duration
	cm.LastSource = result.Source

	if result.Err != nil {
		cm.Failed++
		cm.LastError = result.Err.Error()
	} else {
		cm.Succeeded++
		cm.LastError = ""
	}
}

// Snapshot returns a copy of the counters.
func (m *Metrics) Snapshot() map[Class]ClassMetrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make(map[Class]ClassMetrics, len(m.classes))
	for class, cm := range m.classes {
		out[class] = *cm
	}

	return out
}
