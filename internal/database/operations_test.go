package database

import (
	"context"
	"errors"
	"math/big"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"

	"tokendesk/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return Wrap(conn), mock
}

func TestToRow(t *testing.T) {
	target := common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	submitted := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	tests := []struct {
		name       string
		op         models.Operation
		wantAmount string
		wantTarget string
		wantValid  bool
	}{
		{
			name: "mint without target",
			op: models.Operation{
				Kind: models.ActionMint, Amount: big.NewInt(100), AmountText: "0.0000000000000001",
				Decimals: 18, Status: models.OperationStatusPending, ExternalRef: "0xabc", SubmittedAt: submitted,
			},
			wantAmount: "100",
		},
		{
			name: "transfer with target",
			op: models.Operation{
				Kind: models.ActionTransfer, Amount: big.NewInt(5), TargetAddress: &target,
				Status: models.OperationStatusSuccess, ExternalRef: "0xdef", SubmittedAt: submitted,
			},
			wantAmount: "5",
			wantTarget: target.Hex(),
			wantValid:  true,
		},
		{
			name:       "missing amount",
			op:         models.Operation{Kind: models.ActionBurn, ExternalRef: "0x1"},
			wantAmount: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := toRow(tt.op)
			if row.Reference != tt.op.ExternalRef || row.Kind != string(tt.op.Kind) {
				t.Errorf("identity = %s/%s", row.Reference, row.Kind)
			}
			if row.Amount != tt.wantAmount {
				t.Errorf("Amount = %s, want %s", row.Amount, tt.wantAmount)
			}
			if row.TargetAddress.Valid != tt.wantValid || row.TargetAddress.String != tt.wantTarget {
				t.Errorf("TargetAddress = %+v", row.TargetAddress)
			}
			if row.SubmittedAt.Location() != time.UTC {
				t.Errorf("SubmittedAt not normalized to UTC: %v", row.SubmittedAt)
			}
		})
	}
}

func TestUpsertOperation(t *testing.T) {
	db, mock := newMockDB(t)
	target := common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")

	op := models.Operation{
		Kind:          models.ActionApprove,
		Amount:        big.NewInt(2500),
		AmountText:    "25",
		Decimals:      2,
		TargetAddress: &target,
		SubmittedAt:   time.Now(),
		Status:        models.OperationStatusPending,
		Message:       "Approving tokens...",
		ExternalRef:   "0xabc",
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO operations")).
		WithArgs("0xabc", "approve", "2500", "25", 2, target.Hex(), "pending", "Approving tokens...", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := db.UpsertOperation(context.Background(), op); err != nil {
		t.Fatalf("UpsertOperation() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpsertOperationErrors(t *testing.T) {
	db, mock := newMockDB(t)

	if err := db.UpsertOperation(context.Background(), models.Operation{Kind: models.ActionMint}); err == nil {
		t.Error("expected error for an operation without reference")
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO operations")).
		WillReturnError(errors.New("connection reset"))

	op := models.Operation{Kind: models.ActionMint, Amount: big.NewInt(1), ExternalRef: "0x1", Status: models.OperationStatusPending}
	if err := db.UpsertOperation(context.Background(), op); err == nil {
		t.Error("expected error when the insert fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRunMigrations(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS operations")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := db.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
