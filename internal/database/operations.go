package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tokendesk/internal/models"
)

// operationRow is the persisted shape of a history entry
type operationRow struct {
	Reference     string         `db:"reference"`
	Kind          string         `db:"kind"`
	Amount        string         `db:"amount"`
	AmountText    string         `db:"amount_text"`
	Decimals      int16          `db:"decimals"`
	TargetAddress sql.NullString `db:"target_address"`
	Status        string         `db:"status"`
	Message       string         `db:"message"`
	SubmittedAt   time.Time      `db:"submitted_at"`
}

func toRow(op models.Operation) operationRow {
	row := operationRow{
		Reference:   op.ExternalRef,
		Kind:        string(op.Kind),
		Amount:      "0",
		AmountText:  op.AmountText,
		Decimals:    int16(op.Decimals),
		Status:      string(op.Status),
		Message:     op.Message,
		SubmittedAt: op.SubmittedAt.UTC(),
	}
	if op.Amount != nil {
		row.Amount = op.Amount.String()
	}
	if op.TargetAddress != nil {
		row.TargetAddress = ToNullString(op.TargetAddress.Hex())
	}
	return row
}

const upsertOperationQuery = `
	INSERT INTO operations (
		reference, kind, amount, amount_text, decimals, target_address,
		status, message, submitted_at
	) VALUES (
		:reference, :kind, :amount, :amount_text, :decimals, :target_address,
		:status, :message, :submitted_at
	)
	ON CONFLICT (reference) DO UPDATE SET
		status = EXCLUDED.status,
		message = EXCLUDED.message,
		updated_at = NOW()
`

// UpsertOperation mirrors a history entry. Only status and message change
// on conflict, matching the history's immutability rules.
func (db *DB) UpsertOperation(ctx context.Context, op models.Operation) error {
	if op.ExternalRef == "" {
		return fmt.Errorf("failed to upsert operation: missing reference")
	}

	if _, err := db.NamedExecContext(ctx, upsertOperationQuery, toRow(op)); err != nil {
		return fmt.Errorf("failed to upsert operation %s: %w", op.ExternalRef, err)
	}
	return nil
}
