package extension

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/folio"
	"github.com/xraph/folio/stay"
	"github.com/xraph/folio/store/memory"
	"github.com/xraph/folio/types"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{PaymentTermsDays: 14})

	assert.Equal(t, "usd", cfg.Currency)
	assert.Equal(t, 0.10, cfg.TaxRate)
	assert.Equal(t, int64(10000), cfg.DefaultNightlyRate)
	assert.Equal(t, 14, cfg.PaymentTermsDays)
	assert.False(t, cfg.DisableMigrate)
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{Currency: "eur", TaxRate: 0.2}
	prog := Config{Currency: "gbp", DefaultNightlyRate: 15000, PaymentTermsDays: 7, DisableMigrate: true}

	cfg := mergeConfigurations(yaml, prog)

	assert.Equal(t, "eur", cfg.Currency, "file config wins")
	assert.Equal(t, 0.2, cfg.TaxRate)
	assert.Equal(t, int64(15000), cfg.DefaultNightlyRate, "programmatic fills gaps")
	assert.Equal(t, 7, cfg.PaymentTermsDays)
	assert.True(t, cfg.DisableMigrate)
}

func TestBuildFolioOpts(t *testing.T) {
	e := New(
		WithCurrency("eur"),
		WithTaxRate(0.2),
		WithDefaultNightlyRate(8000),
		WithPaymentTermsDays(30),
	)
	e.config = mergeWithDefaults(e.config)

	checkIn := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	checkOut := checkIn.Add(20 * time.Hour)
	stays := stay.NewMemorySource()
	stayID := stays.Put(&stay.Stay{CheckIn: checkIn, CheckOut: &checkOut})
	eng := folio.New(memory.New(), stays, e.buildFolioOpts()...)
	require.NoError(t, eng.Start(context.Background()))

	inv, err := eng.GenerateInvoice(context.Background(), stayID)
	require.NoError(t, err)

	assert.Equal(t, "eur", eng.Currency())
	assert.True(t, inv.RoomCharges.Equal(types.EUR(8000)))
	assert.True(t, inv.Taxes.Equal(types.EUR(1600)))
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, 30*24*time.Hour, inv.DueDate.Sub(inv.IssuedTime))
}
