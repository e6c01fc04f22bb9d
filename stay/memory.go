package stay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/folio/id"
	"github.com/xraph/folio/types"
)

// MemorySource is an in-process Source.
type MemorySource struct {
	mu    sync.RWMutex
	stays map[string]*Stay
}

var _ Source = (*MemorySource)(nil)

func NewMemorySource() *MemorySource {
	return &MemorySource{stays: make(map[string]*Stay)}
}

// Put inserts or replaces a stay, assigning an ID if it has none.
func (m *MemorySource) Put(s *Stay) id.StayID {
	if s.ID.IsNil() {
		s.ID = id.NewStayID()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stays[s.ID.String()] = s.clone()
	return s.ID
}

func (m *MemorySource) GetStay(_ context.Context, stayID id.StayID) (*Stay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stays[stayID.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, stayID)
	}
	return s.clone(), nil
}

// AddIncidental posts a charge to a stay.
func (m *MemorySource) AddIncidental(stayID id.StayID, description string, amount types.Money, at time.Time) (id.ChargeID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stays[stayID.String()]
	if !ok {
		return id.Nil, fmt.Errorf("%w: %s", ErrNotFound, stayID)
	}
	chg := Incidental{
		ID:          id.NewChargeID(),
		Description: description,
		Amount:      amount,
		ChargedAt:   at.UTC(),
	}
	s.Incidentals = append(s.Incidentals, chg)
	return chg.ID, nil
}

// VoidIncidental marks a posted charge as voided.
func (m *MemorySource) VoidIncidental(stayID id.StayID, chargeID id.ChargeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stays[stayID.String()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, stayID)
	}
	for i := range s.Incidentals {
		if s.Incidentals[i].ID.Equal(chargeID) {
			s.Incidentals[i].Voided = true
			return nil
		}
	}
	return fmt.Errorf("stay: charge %s not found on %s", chargeID, stayID)
}

// CheckOut records the departure time.
func (m *MemorySource) CheckOut(stayID id.StayID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stays[stayID.String()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, stayID)
	}
	out := at.UTC()
	s.CheckOut = &out
	return nil
}

// Delete removes a stay.
func (m *MemorySource) Delete(stayID id.StayID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stays, stayID.String())
}
