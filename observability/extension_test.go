package observability_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/folio/id"
	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/observability"
	"github.com/xraph/folio/payment"
	"github.com/xraph/folio/types"
)

type counter struct {
	mu sync.Mutex
	v  float64
}

func (c *counter) Inc() { c.Add(1) }

func (c *counter) Add(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v += v
}

type histogram struct {
	mu  sync.Mutex
	obs []float64
}

func (h *histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.obs = append(h.obs, v)
}

type factory struct {
	counters   map[string]*counter
	histograms map[string]*histogram
}

func newFactory() *factory {
	return &factory{counters: map[string]*counter{}, histograms: map[string]*histogram{}}
}

func (f *factory) Counter(name string) observability.Counter {
	c := &counter{}
	f.counters[name] = c
	return c
}

func (f *factory) Histogram(name string) observability.Histogram {
	h := &histogram{}
	f.histograms[name] = h
	return h
}

func TestMetricsExtension(t *testing.T) {
	f := newFactory()
	m := observability.NewMetricsExtension(f)
	ctx := context.Background()

	inv := &invoice.Invoice{ID: id.NewInvoiceID(), Currency: "usd", TotalAmount: types.USD(22000)}
	p := &payment.Payment{ID: id.NewPaymentID(), InvoiceID: inv.ID, Amount: types.USD(10000), Method: payment.MethodCash}

	require.NoError(t, m.OnInit(ctx, nil))
	require.NoError(t, m.OnInvoiceGenerated(ctx, inv))
	require.NoError(t, m.OnPaymentRecorded(ctx, inv, p))
	require.NoError(t, m.OnPaymentRefunded(ctx, inv, p))
	require.NoError(t, m.OnInvoiceStatusChanged(ctx, inv, invoice.StatusUnpaid, invoice.StatusOverdue))
	require.NoError(t, m.OnDiscountApplied(ctx, inv, types.USD(2000), "loyalty"))
	require.NoError(t, m.OnDiscountApplied(ctx, inv, types.Zero("usd"), ""))

	assert.Equal(t, 1.0, f.counters["folio.invoice.generated"].v)
	assert.Equal(t, []float64{220}, f.histograms["folio.invoice.total_amount"].obs)
	assert.Equal(t, 1.0, f.counters["folio.payment.recorded"].v)
	assert.Equal(t, []float64{100}, f.histograms["folio.payment.amount"].obs)
	assert.Equal(t, 1.0, f.counters["folio.payment.refunded"].v)
	assert.Equal(t, 1.0, f.counters["folio.invoice.status_changes"].v)
	assert.Equal(t, 1.0, f.counters["folio.invoice.overdue"].v)
	assert.Equal(t, 1.0, f.counters["folio.discount.applied"].v)
	assert.Equal(t, 1.0, f.counters["folio.discount.removed"].v)
	assert.Equal(t, []float64{20}, f.histograms["folio.discount.amount"].obs)
	assert.Equal(t, 0.0, f.counters["folio.invoice.paid"].v)
}
