package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"tokendesk/internal/ledger"
	"tokendesk/internal/models"
)

// TokenService keeps the derived token view: metadata, total supply and the
// signer's balance. Refresh failures keep the last known values.
type TokenService struct {
	reader          ledger.TokenReader
	defaultDecimals uint8
	logger          *zap.Logger

	mu     sync.RWMutex
	info   models.TokenInfo
	loaded bool
}

// NewTokenService creates a new token service
func NewTokenService(reader ledger.TokenReader, defaultDecimals uint8, logger *zap.Logger) *TokenService {
	return &TokenService{
		reader:          reader,
		defaultDecimals: defaultDecimals,
		logger:          logger.Named("token"),
		info: models.TokenInfo{
			Decimals:    defaultDecimals,
			TotalSupply: new(big.Int),
			Balance:     new(big.Int),
		},
	}
}

// RefreshInfo re-reads everything from the ledger
func (s *TokenService) RefreshInfo(ctx context.Context) error {
	info, err := s.reader.TokenInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch token info: %w", err)
	}

	s.mu.Lock()
	s.info = *info
	if s.info.TotalSupply == nil {
		s.info.TotalSupply = new(big.Int)
	}
	if s.info.Balance == nil {
		s.info.Balance = new(big.Int)
	}
	s.loaded = true
	s.mu.Unlock()

	s.logger.Debug("Token info refreshed",
		zap.String("symbol", info.Symbol),
		zap.Uint8("decimals", info.Decimals),
		zap.String("total_supply", s.Info().TotalSupply.String()))

	return nil
}

// RefreshBalance re-reads the signer's balance
func (s *TokenService) RefreshBalance(ctx context.Context) error {
	balance, err := s.reader.BalanceOf(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch balance: %w", err)
	}

	s.mu.Lock()
	s.info.Balance = new(big.Int).Set(balance)
	s.info.UpdatedAt = time.Now()
	s.mu.Unlock()

	s.logger.Debug("Balance refreshed", zap.String("balance", balance.String()))
	return nil
}

// Decimals returns the token's decimals. Until the first successful fetch it
// returns the default and ok=false; a fetched zero is a real value.
func (s *TokenService) Decimals() (uint8, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return s.defaultDecimals, false
	}
	return s.info.Decimals, true
}

// Loaded reports whether token info was fetched at least once
func (s *TokenService) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Info returns a copy of the current token view
func (s *TokenService) Info() models.TokenInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.info
	out.TotalSupply = new(big.Int).Set(s.info.TotalSupply)
	out.Balance = new(big.Int).Set(s.info.Balance)
	return out
}
