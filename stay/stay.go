// Package stay describes the guest stays folio bills for. Stays are owned by
// the front-desk system; folio only reads them through a Source.
package stay

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/folio/id"
	"github.com/xraph/folio/types"
)

// ErrNotFound is returned by a Source when a stay does not exist.
var ErrNotFound = errors.New("folio: stay not found")

// Stay is one room occupancy.
type Stay struct {
	ID            id.StayID         `json:"id"`
	ReservationID *id.ReservationID `json:"reservation_id,omitempty"`
	RoomNumber    string            `json:"room_number"`
	NightlyRate   *types.Money      `json:"nightly_rate,omitempty"`
	CheckIn       time.Time         `json:"check_in"`
	CheckOut      *time.Time        `json:"check_out,omitempty"`
	Incidentals   []Incidental      `json:"incidentals,omitempty"`
}

// Incidental is an extra charge posted to a stay (minibar, room service...).
type Incidental struct {
	ID          id.ChargeID `json:"id"`
	Description string      `json:"description"`
	Amount      types.Money `json:"amount"`
	Voided      bool        `json:"voided"`
	ChargedAt   time.Time   `json:"charged_at"`
}

// Source looks up stays.
type Source interface {
	GetStay(ctx context.Context, stayID id.StayID) (*Stay, error)
}

func (s *Stay) clone() *Stay {
	c := *s
	if s.ReservationID != nil {
		v := *s.ReservationID
		c.ReservationID = &v
	}
	if s.NightlyRate != nil {
		v := *s.NightlyRate
		c.NightlyRate = &v
	}
	if s.CheckOut != nil {
		v := *s.CheckOut
		c.CheckOut = &v
	}
	c.Incidentals = append([]Incidental(nil), s.Incidentals...)
	return &c
}
