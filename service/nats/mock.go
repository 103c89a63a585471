package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockPublisher records mint events the way the MINTS stream would store
// them: keyed by subject, with duplicate message IDs dropped.
type MockPublisher struct {
	mu         sync.RWMutex
	subjects   []string
	bySubject  map[string][]*MintEvent
	seen       map[string]bool
	duplicates int
	err        error
	closed     bool
}

// NewMockPublisher creates an empty mock publisher.
func NewMockPublisher() *MockPublisher {
	m := &MockPublisher{}
	m.Reset()
	return m
}

// PublishMint stores the event under Subject(event.ContractAddress). The event
// must survive a JSON round trip, as it would on the wire.
func (m *MockPublisher) PublishMint(ctx context.Context, event *MintEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal mint event: %w", err)
	}
	var stored MintEvent
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to decode mint event: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return fmt.Errorf("failed to publish mint event: %w", m.err)
	}

	id := stored.MsgID()
	if m.seen[id] {
		m.duplicates++
		return nil
	}
	m.seen[id] = true

	subject := Subject(stored.ContractAddress)
	if _, ok := m.bySubject[subject]; !ok {
		m.subjects = append(m.subjects, subject)
	}
	m.bySubject[subject] = append(m.bySubject[subject], &stored)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Subjects returns the subjects published to, in first-publish order.
func (m *MockPublisher) Subjects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.subjects...)
}

// GetPublishedEventsForContract returns the stored events on the contract's subject.
func (m *MockPublisher) GetPublishedEventsForContract(contract string) []*MintEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*MintEvent(nil), m.bySubject[Subject(contract)]...)
}

// GetPublishedEventCount returns the number of stored events across subjects.
func (m *MockPublisher) GetPublishedEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, events := range m.bySubject {
		n += len(events)
	}
	return n
}

// DuplicateCount returns how many publishes were dropped as already seen.
func (m *MockPublisher) DuplicateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.duplicates
}

// LatestCounter returns the counter carried by the last event on the
// contract's subject, and false when nothing was published there.
func (m *MockPublisher) LatestCounter(contract string) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.bySubject[Subject(contract)]
	if len(events) == 0 {
		return 0, false
	}
	return events[len(events)-1].Counter, true
}

// SetPublishError makes every following PublishMint fail with err.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Reset clears stored events, dedup state and the configured error.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = nil
	m.bySubject = make(map[string][]*MintEvent)
	m.seen = make(map[string]bool)
	m.duplicates = 0
	m.err = nil
	m.closed = false
}

// IsClosed reports whether Close was called.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
