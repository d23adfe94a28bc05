// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"sync"
)

// MockTransport implements the Transport interface for testing. It keeps
// everything it is sent.
type MockTransport struct {
	mu      sync.Mutex
	sent    []any
	closed  bool
	SendErr error // returned by every Send when set
}

// Send stores the data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, data)
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.sent...)
}

// Last returns the most recent value, or nil.
func (m *MockTransport) Last() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// AlternatingVolts returns n samples alternating between +volts and -volts,
// starting positive.
func AlternatingVolts(n int, volts float32) []float32 {
	buffer := make([]float32, n)
	for i := range buffer {
		if i%2 == 0 {
			buffer[i] = volts
		} else {
			buffer[i] = -volts
		}
	}
	return buffer
}

// SineVolts returns n samples of a sine with the given peak in volts.
func SineVolts(n int, sampleRate, frequency, peak float64) []float32 {
	buffer := make([]float32, n)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * peak)
	}
	return buffer
}

// ComplexVolts is a 440Hz fundamental with two harmonics, peaking just
// under peak volts.
func ComplexVolts(n int, sampleRate, peak float64) []float32 {
	buffer := make([]float32, n)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * peak * 0.9)
	}
	return buffer
}
