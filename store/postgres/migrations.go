package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Folio store.
var Migrations = migrate.NewGroup("folio")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_folio_invoices",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS folio_invoices (
    id                        TEXT PRIMARY KEY,
    stay_id                   TEXT,
    reservation_id            TEXT,
    currency                  TEXT NOT NULL DEFAULT 'usd',
    nights                    INT NOT NULL DEFAULT 0,
    room_charges_cents        BIGINT NOT NULL DEFAULT 0 CHECK (room_charges_cents >= 0),
    incidental_charges_cents  BIGINT NOT NULL DEFAULT 0 CHECK (incidental_charges_cents >= 0),
    tax_rate                  TEXT NOT NULL DEFAULT '0',
    taxes_cents               BIGINT NOT NULL DEFAULT 0 CHECK (taxes_cents >= 0),
    discounts_cents           BIGINT NOT NULL DEFAULT 0 CHECK (discounts_cents >= 0),
    discount_reason           TEXT,
    total_amount_cents        BIGINT NOT NULL DEFAULT 0,
    amount_paid_cents         BIGINT NOT NULL DEFAULT 0,
    outstanding_balance_cents BIGINT NOT NULL DEFAULT 0 CHECK (outstanding_balance_cents >= 0),
    status                    TEXT NOT NULL DEFAULT 'UNPAID',
    issued_time               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    due_date                  TIMESTAMPTZ,
    paid_at                   TIMESTAMPTZ,
    metadata                  JSONB NOT NULL DEFAULT '{}',
    created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_folio_invoices_stay ON folio_invoices (stay_id);
CREATE INDEX IF NOT EXISTS idx_folio_invoices_status ON folio_invoices (status);
CREATE INDEX IF NOT EXISTS idx_folio_invoices_issued ON folio_invoices (issued_time);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS folio_invoices`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_folio_payments",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS folio_payments (
    id                    TEXT PRIMARY KEY,
    invoice_id            TEXT NOT NULL REFERENCES folio_invoices (id),
    amount_cents          BIGINT NOT NULL CHECK (amount_cents > 0),
    currency              TEXT NOT NULL DEFAULT 'usd',
    method                TEXT NOT NULL,
    transaction_reference TEXT,
    status                TEXT NOT NULL DEFAULT 'COMPLETED',
    payment_time          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    refunded_at           TIMESTAMPTZ,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_folio_payments_invoice ON folio_payments (invoice_id, payment_time);
CREATE UNIQUE INDEX IF NOT EXISTS idx_folio_payments_reference
    ON folio_payments (invoice_id, transaction_reference)
    WHERE transaction_reference IS NOT NULL;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS folio_payments`)
				return err
			},
		},
	)
}
