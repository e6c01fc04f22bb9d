package charge_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xraph/folio/charge"
	"github.com/xraph/folio/id"
	"github.com/xraph/folio/stay"
	"github.com/xraph/folio/types"
)

var checkIn = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := checkIn.Add(d)
	return &t
}

func rate(cents int64) *types.Money {
	m := types.USD(cents)
	return &m
}

func TestNights(t *testing.T) {
	calc := charge.New(charge.WithClock(func() time.Time { return checkIn.Add(72 * time.Hour) }))

	tests := []struct {
		name     string
		checkOut *time.Time
		want     int
	}{
		{"Same day", at(3 * time.Hour), 1},
		{"Next morning", at(19 * time.Hour), 1},
		{"Two nights", at(44 * time.Hour), 2},
		{"Late checkout crosses midnight", at(58 * time.Hour), 3},
		{"Still in house uses clock", nil, 3},
		{"Checkout before checkin", at(-48 * time.Hour), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stay.Stay{ID: id.NewStayID(), CheckIn: checkIn, CheckOut: tt.checkOut}
			assert.Equal(t, tt.want, calc.Nights(s))
		})
	}
}

func TestRoomCharges(t *testing.T) {
	calc := charge.New()

	s := &stay.Stay{CheckIn: checkIn, CheckOut: at(44 * time.Hour), NightlyRate: rate(12000)}
	assert.Equal(t, types.USD(24000), calc.RoomCharges(s))

	s.NightlyRate = nil
	assert.Equal(t, types.USD(20000), calc.RoomCharges(s), "falls back to default nightly rate")

	custom := charge.New(charge.WithDefaultNightlyRate(types.USD(8000)))
	assert.Equal(t, types.USD(16000), custom.RoomCharges(s))
}

func TestIncidentalTotal(t *testing.T) {
	calc := charge.New()
	s := &stay.Stay{
		CheckIn: checkIn,
		Incidentals: []stay.Incidental{
			{ID: id.NewChargeID(), Description: "Minibar", Amount: types.USD(3000)},
			{ID: id.NewChargeID(), Description: "Spa", Amount: types.USD(2000)},
			{ID: id.NewChargeID(), Description: "Disputed", Amount: types.USD(9900), Voided: true},
		},
	}
	assert.Equal(t, types.USD(5000), calc.IncidentalTotal(s))

	s.Incidentals = nil
	assert.Equal(t, types.USD(0), calc.IncidentalTotal(s))
}

func TestTax(t *testing.T) {
	tests := []struct {
		name     string
		subtotal types.Money
		rate     string
		want     types.Money
	}{
		{"Ten percent", types.USD(20000), "0.10", types.USD(2000)},
		{"Rounds to cents", types.USD(333), "0.10", types.USD(33)},
		{"Zero rate", types.USD(20000), "0", types.USD(0)},
		{"Negative rate", types.USD(20000), "-0.05", types.USD(0)},
		{"Zero subtotal", types.USD(0), "0.10", types.USD(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, charge.Tax(tt.subtotal, decimal.RequireFromString(tt.rate)))
		})
	}
}

func TestCompute(t *testing.T) {
	calc := charge.New()
	s := &stay.Stay{
		CheckIn:     checkIn,
		CheckOut:    at(20 * time.Hour),
		NightlyRate: rate(15000),
		Incidentals: []stay.Incidental{{ID: id.NewChargeID(), Description: "Dinner", Amount: types.USD(5000)}},
	}

	b := calc.Compute(s)
	assert.Equal(t, 1, b.Nights)
	assert.Equal(t, types.USD(15000), b.RoomCharges)
	assert.Equal(t, types.USD(5000), b.IncidentalCharges)
	assert.Equal(t, types.USD(20000), b.Subtotal)
	assert.Equal(t, types.USD(2000), b.Taxes)
	assert.Equal(t, types.USD(22000), b.Total())
	assert.True(t, b.TaxRate.Equal(charge.DefaultTaxRate))
}
