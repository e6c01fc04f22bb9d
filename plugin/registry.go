package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
	"github.com/xraph/folio/types"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages registered plugins and dispatches events to them.
// Hook implementations are discovered once at registration and cached
// per hook type.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                 []OnInit
	onShutdown             []OnShutdown
	onInvoiceGenerated     []OnInvoiceGenerated
	onInvoiceRegenerated   []OnInvoiceRegenerated
	onInvoicePaid          []OnInvoicePaid
	onInvoiceStatusChanged []OnInvoiceStatusChanged
	onDiscountApplied      []OnDiscountApplied
	onPaymentRecorded      []OnPaymentRecorded
	onPaymentRefunded      []OnPaymentRefunded
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its hooks.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnInvoiceGenerated); ok {
		r.onInvoiceGenerated = append(r.onInvoiceGenerated, v)
		hooks = append(hooks, "OnInvoiceGenerated")
	}
	if v, ok := p.(OnInvoiceRegenerated); ok {
		r.onInvoiceRegenerated = append(r.onInvoiceRegenerated, v)
		hooks = append(hooks, "OnInvoiceRegenerated")
	}
	if v, ok := p.(OnInvoicePaid); ok {
		r.onInvoicePaid = append(r.onInvoicePaid, v)
		hooks = append(hooks, "OnInvoicePaid")
	}
	if v, ok := p.(OnInvoiceStatusChanged); ok {
		r.onInvoiceStatusChanged = append(r.onInvoiceStatusChanged, v)
		hooks = append(hooks, "OnInvoiceStatusChanged")
	}
	if v, ok := p.(OnDiscountApplied); ok {
		r.onDiscountApplied = append(r.onDiscountApplied, v)
		hooks = append(hooks, "OnDiscountApplied")
	}
	if v, ok := p.(OnPaymentRecorded); ok {
		r.onPaymentRecorded = append(r.onPaymentRecorded, v)
		hooks = append(hooks, "OnPaymentRecorded")
	}
	if v, ok := p.(OnPaymentRefunded); ok {
		r.onPaymentRefunded = append(r.onPaymentRefunded, v)
		hooks = append(hooks, "OnPaymentRefunded")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()
	emit(ctx, r, "OnInit", plugins, func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()
	emit(ctx, r, "OnShutdown", plugins, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitInvoiceGenerated emits an invoice generated event.
func (r *Registry) EmitInvoiceGenerated(ctx context.Context, inv *invoice.Invoice) {
	r.mu.RLock()
	plugins := r.onInvoiceGenerated
	r.mu.RUnlock()
	emit(ctx, r, "OnInvoiceGenerated", plugins, func(p OnInvoiceGenerated) error {
		return p.OnInvoiceGenerated(ctx, inv)
	})
}

// EmitInvoiceRegenerated emits an invoice regenerated event.
func (r *Registry) EmitInvoiceRegenerated(ctx context.Context, inv *invoice.Invoice, previousTotal types.Money) {
	r.mu.RLock()
	plugins := r.onInvoiceRegenerated
	r.mu.RUnlock()
	emit(ctx, r, "OnInvoiceRegenerated", plugins, func(p OnInvoiceRegenerated) error {
		return p.OnInvoiceRegenerated(ctx, inv, previousTotal)
	})
}

// EmitInvoicePaid emits an invoice paid event.
func (r *Registry) EmitInvoicePaid(ctx context.Context, inv *invoice.Invoice) {
	r.mu.RLock()
	plugins := r.onInvoicePaid
	r.mu.RUnlock()
	emit(ctx, r, "OnInvoicePaid", plugins, func(p OnInvoicePaid) error {
		return p.OnInvoicePaid(ctx, inv)
	})
}

// EmitInvoiceStatusChanged emits a status transition.
func (r *Registry) EmitInvoiceStatusChanged(ctx context.Context, inv *invoice.Invoice, from, to invoice.Status) {
	r.mu.RLock()
	plugins := r.onInvoiceStatusChanged
	r.mu.RUnlock()
	emit(ctx, r, "OnInvoiceStatusChanged", plugins, func(p OnInvoiceStatusChanged) error {
		return p.OnInvoiceStatusChanged(ctx, inv, from, to)
	})
}

// EmitDiscountApplied emits a discount change.
func (r *Registry) EmitDiscountApplied(ctx context.Context, inv *invoice.Invoice, amount types.Money, reason string) {
	r.mu.RLock()
	plugins := r.onDiscountApplied
	r.mu.RUnlock()
	emit(ctx, r, "OnDiscountApplied", plugins, func(p OnDiscountApplied) error {
		return p.OnDiscountApplied(ctx, inv, amount, reason)
	})
}

// EmitPaymentRecorded emits a payment recorded event.
func (r *Registry) EmitPaymentRecorded(ctx context.Context, inv *invoice.Invoice, pay *payment.Payment) {
	r.mu.RLock()
	plugins := r.onPaymentRecorded
	r.mu.RUnlock()
	emit(ctx, r, "OnPaymentRecorded", plugins, func(p OnPaymentRecorded) error {
		return p.OnPaymentRecorded(ctx, inv, pay)
	})
}

// EmitPaymentRefunded emits a payment refunded event.
func (r *Registry) EmitPaymentRefunded(ctx context.Context, inv *invoice.Invoice, pay *payment.Payment) {
	r.mu.RLock()
	plugins := r.onPaymentRefunded
	r.mu.RUnlock()
	emit(ctx, r, "OnPaymentRefunded", plugins, func(p OnPaymentRefunded) error {
		return p.OnPaymentRefunded(ctx, inv, pay)
	})
}

// emit runs fn for each plugin in registration order. Failures are logged
// and never returned to the caller.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, fn func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the billing pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
