package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"go.uber.org/zap"

	"tokendesk/internal/models"
)

type fakeReader struct {
	info       *models.TokenInfo
	balance    *big.Int
	infoErr    error
	balanceErr error
}

func (f *fakeReader) TokenInfo(ctx context.Context) (*models.TokenInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info, nil
}

func (f *fakeReader) BalanceOf(ctx context.Context) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return f.balance, nil
}

func TestTokenService_Defaults(t *testing.T) {
	s := NewTokenService(&fakeReader{}, 18, zap.NewNop())

	if d, ok := s.Decimals(); d != 18 || ok {
		t.Errorf("Decimals() = %d, %v, want default 18 not loaded", d, ok)
	}
	if s.Loaded() {
		t.Error("Loaded() = true before any refresh")
	}
	info := s.Info()
	if info.Balance.Sign() != 0 || info.TotalSupply.Sign() != 0 {
		t.Errorf("initial info = %+v", info)
	}
}

func TestTokenService_RefreshInfo(t *testing.T) {
	tests := []struct {
		name         string
		reader       *fakeReader
		wantDecimals uint8
		wantLoaded   bool
		wantErr      bool
	}{
		{
			name: "token with 6 decimals",
			reader: &fakeReader{info: &models.TokenInfo{
				Name: "Desk", Symbol: "DESK", Decimals: 6,
				TotalSupply: big.NewInt(1000), Balance: big.NewInt(10),
			}},
			wantDecimals: 6,
			wantLoaded:   true,
		},
		{
			name:         "whole-unit token with zero decimals",
			reader:       &fakeReader{info: &models.TokenInfo{Name: "Whole", Symbol: "WHL", Decimals: 0}},
			wantDecimals: 0,
			wantLoaded:   true,
		},
		{
			name:         "ledger unavailable",
			reader:       &fakeReader{infoErr: errors.New("dial tcp: connection refused")},
			wantDecimals: 18,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTokenService(tt.reader, 18, zap.NewNop())

			err := s.RefreshInfo(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("RefreshInfo() error = %v, wantErr %v", err, tt.wantErr)
			}
			d, ok := s.Decimals()
			if d != tt.wantDecimals || ok != tt.wantLoaded {
				t.Errorf("Decimals() = %d, %v, want %d, %v", d, ok, tt.wantDecimals, tt.wantLoaded)
			}
			if s.Loaded() != tt.wantLoaded {
				t.Errorf("Loaded() = %v, want %v", s.Loaded(), tt.wantLoaded)
			}
			info := s.Info()
			if info.TotalSupply == nil || info.Balance == nil {
				t.Error("Info() returned nil amounts")
			}
		})
	}
}

func TestTokenService_RefreshBalance(t *testing.T) {
	reader := &fakeReader{balance: big.NewInt(500)}
	s := NewTokenService(reader, 18, zap.NewNop())

	if err := s.RefreshBalance(context.Background()); err != nil {
		t.Fatalf("RefreshBalance() error = %v", err)
	}
	if got := s.Info().Balance.Int64(); got != 500 {
		t.Errorf("Balance = %d, want 500", got)
	}

	// a failed refresh keeps the last known balance
	reader.balanceErr = errors.New("timeout")
	if err := s.RefreshBalance(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := s.Info().Balance.Int64(); got != 500 {
		t.Errorf("Balance after failure = %d, want 500", got)
	}
}

func TestTokenService_InfoIsCopy(t *testing.T) {
	reader := &fakeReader{balance: big.NewInt(1)}
	s := NewTokenService(reader, 18, zap.NewNop())
	_ = s.RefreshBalance(context.Background())

	info := s.Info()
	info.Balance.SetInt64(999)

	if got := s.Info().Balance.Int64(); got != 1 {
		t.Errorf("mutating a snapshot changed the service: %d", got)
	}
	// the reader's value must not alias the stored one either
	reader.balance.SetInt64(42)
	if got := s.Info().Balance.Int64(); got != 1 {
		t.Errorf("reader value aliased the stored balance: %d", got)
	}
}
