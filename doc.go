// Package folio provides the billing ledger of a hotel property management
// system: it turns guest stays into invoices, records payments and refunds
// against them, and keeps every invoice's paid amount, outstanding balance
// and status reconciled with its payments.
//
// Folio is a library, not a service. Embed it in the front-desk application
// and inject a store and a stay source:
//
//	import (
//	    "github.com/xraph/folio"
//	    "github.com/xraph/folio/stay"
//	    "github.com/xraph/folio/store/memory"
//	)
//
//	f := folio.New(memory.New(), stays,
//	    folio.WithTaxRate(decimal.RequireFromString("0.10")),
//	)
//	if err := f.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Stop()
//
//	inv, err := f.GenerateInvoice(ctx, stayID)
//	p, err := f.ProcessPayment(ctx, inv.ID, folio.USD(10000), payment.MethodCreditCard)
//
// # Amounts
//
// All amounts are integers in the smallest currency unit. A ledger bills in
// one currency. Tax is applied with shopspring/decimal and rounded half away
// from zero to whole cents.
//
// # Status
//
// An invoice is UNPAID until a payment lands, PARTIALLY_PAID while a balance
// remains and PAID once completed payments cover the total. OVERDUE is only
// ever set by UpdateInvoiceStatus. Every payment, refund, discount change and
// regeneration re-derives the status from the payment set.
//
// # Concurrency
//
// Mutations of one invoice are serialized by a per-invoice lock inside the
// engine; different invoices proceed in parallel. Reads take no lock.
//
// # Stores
//
// store/memory keeps everything in process. store/postgres, store/sqlite and
// store/mongo persist through grove and create the folio_invoices and
// folio_payments tables (collections) on Start.
//
// # TypeID
//
// Entities use prefixed TypeIDs:
//
//	inv_01h455vb4pex5vsknk084sn02q   // Invoice
//	pay_01h455vb4pex5vsknk084sn02q   // Payment
//	stay_01h455vb4pex5vsknk084sn02q  // Stay
package folio
