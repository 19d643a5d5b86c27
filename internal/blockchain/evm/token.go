package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"tokendesk/internal/ledger"
	"tokendesk/internal/models"
)

// TokenABI is the ABI of the mintable ERC20 token contract
const TokenABI = `[
	{"inputs": [], "name": "name", "outputs": [{"internalType": "string", "name": "", "type": "string"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "symbol", "outputs": [{"internalType": "string", "name": "", "type": "string"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "decimals", "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "totalSupply", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{
		"inputs": [{"internalType": "address", "name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "recipient", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"},
			{"internalType": "address", "name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "spender", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "sender", "type": "address"},
			{"internalType": "address", "name": "recipient", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "transferFrom",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "value", "type": "uint256"}],
		"name": "mint",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "value", "type": "uint256"}
		],
		"name": "mintTo",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "value", "type": "uint256"}],
		"name": "burn",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "from", "type": "address"},
			{"indexed": true, "internalType": "address", "name": "to", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
		],
		"name": "Transfer",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
			{"indexed": true, "internalType": "address", "name": "spender", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
		],
		"name": "Approval",
		"type": "event"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "from", "type": "address"},
			{"internalType": "uint256", "name": "have", "type": "uint256"},
			{"internalType": "uint256", "name": "want", "type": "uint256"}
		],
		"name": "InsufficientBalance",
		"type": "error"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"},
			{"internalType": "address", "name": "spender", "type": "address"},
			{"internalType": "uint256", "name": "have", "type": "uint256"},
			{"internalType": "uint256", "name": "want", "type": "uint256"}
		],
		"name": "InsufficientAllowance",
		"type": "error"
	}
]`

// Token provides methods to interact with the token contract. It implements
// ledger.Client, ledger.TokenReader and ledger.AddressParser.
type Token struct {
	client       backend
	address      common.Address
	abi          abi.ABI
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewToken creates a token bound to the contract at address
func NewToken(client backend, address common.Address, pollInterval time.Duration, logger *zap.Logger) (*Token, error) {
	parsedABI, err := abi.JSON(strings.NewReader(TokenABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	return &Token{
		client:       client,
		address:      address,
		abi:          parsedABI,
		pollInterval: pollInterval,
		logger:       logger.Named("token"),
	}, nil
}

// Address returns the token contract address
func (t *Token) Address() common.Address {
	return t.address
}

// ParseAddress implements ledger.AddressParser
func (t *Token) ParseAddress(s string) (common.Address, error) {
	return models.ParseHexAddress(s)
}

// pack encodes a write action into contract call data
func (t *Token) pack(req ledger.Request) ([]byte, error) {
	needsTarget := func() error {
		if req.Target == nil {
			return fmt.Errorf("%s requires a target address", req.Action)
		}
		return nil
	}

	switch req.Action {
	case models.ActionMint:
		return t.abi.Pack("mint", req.Amount)
	case models.ActionMintTo:
		if err := needsTarget(); err != nil {
			return nil, err
		}
		return t.abi.Pack("mintTo", *req.Target, req.Amount)
	case models.ActionTransfer:
		if err := needsTarget(); err != nil {
			return nil, err
		}
		return t.abi.Pack("transfer", *req.Target, req.Amount)
	case models.ActionApprove:
		if err := needsTarget(); err != nil {
			return nil, err
		}
		return t.abi.Pack("approve", *req.Target, req.Amount)
	case models.ActionBurn:
		return t.abi.Pack("burn", req.Amount)
	}
	return nil, fmt.Errorf("unsupported token action %q", req.Action)
}

// Submit signs and sends the action and returns the transaction hash
func (t *Token) Submit(ctx context.Context, req ledger.Request) (string, error) {
	data, err := t.pack(req)
	if err != nil {
		return "", fmt.Errorf("failed to pack %s call: %w", req.Action, err)
	}

	t.logger.Info("Sending token transaction",
		zap.String("action", string(req.Action)),
		zap.String("amount", req.Amount.String()))

	txHash, err := t.client.SignAndSendTransaction(ctx, t.address, data, big.NewInt(0))
	if err != nil {
		return "", t.wrapError("submit", err)
	}

	return txHash.Hex(), nil
}

// AwaitFinality polls for the receipt until it is mined or ctx is done.
// A receipt with status 0 is replayed to recover the revert reason.
func (t *Token) AwaitFinality(ctx context.Context, reference string) (*ledger.Receipt, error) {
	if !isTxHash(reference) {
		return nil, fmt.Errorf("invalid transaction hash %q", reference)
	}
	txHash := common.HexToHash(reference)

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.client.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil && receipt != nil:
			out := &ledger.Receipt{Reference: reference, GasUsed: receipt.GasUsed}
			if receipt.BlockNumber != nil {
				out.BlockNumber = receipt.BlockNumber.Uint64()
			}
			if receipt.Status == 0 {
				return out, t.revertError(ctx, txHash, receipt.BlockNumber)
			}
			t.logger.Info("Token transaction confirmed",
				zap.String("tx_hash", reference),
				zap.Uint64("gas_used", receipt.GasUsed),
				zap.Uint64("block_number", out.BlockNumber))
			return out, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			t.logger.Debug("Receipt lookup failed, retrying",
				zap.String("tx_hash", reference),
				zap.Error(err))
		}
		// Transaction not yet mined, continue waiting

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("stopped waiting for transaction %s: %w", reference, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (t *Token) revertError(ctx context.Context, txHash common.Hash, block *big.Int) error {
	replayErr := t.client.ReplayTransaction(ctx, txHash, block)
	if replayErr != nil {
		if lerr := t.wrapError("finality", replayErr); lerr.Reason != "" {
			lerr.Err = ledger.ErrReverted
			return lerr
		}
	}
	return &ledger.Error{
		Op:      "finality",
		Message: fmt.Sprintf("transaction %s reverted", txHash.Hex()),
		Err:     ledger.ErrReverted,
	}
}

// Allowance returns how much spender may move on behalf of the signer
func (t *Token) Allowance(ctx context.Context, spender common.Address) (*big.Int, error) {
	var out *big.Int
	if err := t.call(ctx, &out, "allowance", t.client.From(), spender); err != nil {
		return nil, err
	}
	return out, nil
}

// BalanceOf returns the signer's token balance
func (t *Token) BalanceOf(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	if err := t.call(ctx, &out, "balanceOf", t.client.From()); err != nil {
		return nil, err
	}
	return out, nil
}

// TokenInfo reads name, symbol, decimals, total supply and the signer's balance
func (t *Token) TokenInfo(ctx context.Context) (*models.TokenInfo, error) {
	info := &models.TokenInfo{Owner: t.client.From().Hex()}

	if err := t.call(ctx, &info.Name, "name"); err != nil {
		return nil, err
	}
	if err := t.call(ctx, &info.Symbol, "symbol"); err != nil {
		return nil, err
	}
	if err := t.call(ctx, &info.Decimals, "decimals"); err != nil {
		return nil, err
	}
	if err := t.call(ctx, &info.TotalSupply, "totalSupply"); err != nil {
		return nil, err
	}

	balance, err := t.BalanceOf(ctx)
	if err != nil {
		return nil, err
	}
	info.Balance = balance
	info.UpdatedAt = time.Now()

	return info, nil
}

func (t *Token) call(ctx context.Context, out interface{}, method string, args ...interface{}) error {
	data, err := t.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	result, err := t.client.CallContract(ctx, t.address, data, nil)
	if err != nil {
		return t.wrapError("query", fmt.Errorf("failed to call %s: %w", method, err))
	}

	if err := t.abi.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return nil
}

func isTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}
