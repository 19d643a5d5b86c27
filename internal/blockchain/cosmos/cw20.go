package cosmos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tokendesk/internal/ledger"
	"tokendesk/internal/models"
)

// wasmClient is the chain access a CW20 token needs
type wasmClient interface {
	Sender() string
	QueryContract(ctx context.Context, contractAddr string, queryMsg interface{}) ([]byte, error)
	ExecuteContract(ctx context.Context, contractAddr string, executeMsg interface{}, funds sdk.Coins) (string, error)
	GetTx(ctx context.Context, txHash string) (*TxResult, error)
}

// CW20 execute messages
type (
	MintMsg struct {
		Mint MintParams `json:"mint"`
	}
	MintParams struct {
		Recipient string   `json:"recipient"`
		Amount    math.Int `json:"amount"`
	}

	TransferMsg struct {
		Transfer TransferParams `json:"transfer"`
	}
	TransferParams struct {
		Recipient string   `json:"recipient"`
		Amount    math.Int `json:"amount"`
	}

	BurnMsg struct {
		Burn BurnParams `json:"burn"`
	}
	BurnParams struct {
		Amount math.Int `json:"amount"`
	}

	IncreaseAllowanceMsg struct {
		IncreaseAllowance AllowanceParams `json:"increase_allowance"`
	}
	DecreaseAllowanceMsg struct {
		DecreaseAllowance AllowanceParams `json:"decrease_allowance"`
	}
	AllowanceParams struct {
		Spender string   `json:"spender"`
		Amount  math.Int `json:"amount"`
	}
)

// CW20 query messages and responses
type (
	tokenInfoQuery struct {
		TokenInfo struct{} `json:"token_info"`
	}
	TokenInfoResponse struct {
		Name        string   `json:"name"`
		Symbol      string   `json:"symbol"`
		Decimals    uint8    `json:"decimals"`
		TotalSupply math.Int `json:"total_supply"`
	}

	balanceQuery struct {
		Balance struct {
			Address string `json:"address"`
		} `json:"balance"`
	}
	BalanceResponse struct {
		Balance math.Int `json:"balance"`
	}

	allowanceQuery struct {
		Allowance struct {
			Owner   string `json:"owner"`
			Spender string `json:"spender"`
		} `json:"allowance"`
	}
	AllowanceResponse struct {
		Allowance math.Int `json:"allowance"`
	}
)

// CW20 provides methods to interact with a CW20 token contract. It implements
// ledger.Client, ledger.TokenReader and ledger.AddressParser.
type CW20 struct {
	client       wasmClient
	contract     string
	prefix       string
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewCW20 creates a CW20 token bound to contract
func NewCW20(client wasmClient, contract, prefix string, pollInterval time.Duration, logger *zap.Logger) *CW20 {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &CW20{
		client:       client,
		contract:     contract,
		prefix:       prefix,
		pollInterval: pollInterval,
		logger:       logger.Named("cw20"),
	}
}

// ParseAddress implements ledger.AddressParser
func (t *CW20) ParseAddress(s string) (common.Address, error) {
	return Addresses{Prefix: t.prefix}.ParseAddress(s)
}

func (t *CW20) bech32(addr *common.Address) (string, error) {
	if addr == nil {
		return "", fmt.Errorf("missing target address")
	}
	return EncodeBech32(t.prefix, *addr)
}

// message builds the execute message for a write action
func (t *CW20) message(ctx context.Context, req ledger.Request) (interface{}, error) {
	amount := math.NewIntFromBigInt(req.Amount)

	switch req.Action {
	case models.ActionMint:
		return MintMsg{Mint: MintParams{Recipient: t.client.Sender(), Amount: amount}}, nil
	case models.ActionMintTo:
		recipient, err := t.bech32(req.Target)
		if err != nil {
			return nil, err
		}
		return MintMsg{Mint: MintParams{Recipient: recipient, Amount: amount}}, nil
	case models.ActionTransfer:
		recipient, err := t.bech32(req.Target)
		if err != nil {
			return nil, err
		}
		return TransferMsg{Transfer: TransferParams{Recipient: recipient, Amount: amount}}, nil
	case models.ActionBurn:
		return BurnMsg{Burn: BurnParams{Amount: amount}}, nil
	case models.ActionApprove:
		return t.approveMessage(ctx, req.Target, amount)
	}
	return nil, fmt.Errorf("unsupported token action %q", req.Action)
}

// ErrAllowanceUnchanged is returned for an approve that would not change the
// allowance; nothing is broadcast.
var ErrAllowanceUnchanged = errors.New("allowance unchanged")

// approveMessage sets the allowance to amount. CW20 only adjusts allowances
// relatively, so the current value is read first.
func (t *CW20) approveMessage(ctx context.Context, target *common.Address, amount math.Int) (interface{}, error) {
	spender, err := t.bech32(target)
	if err != nil {
		return nil, err
	}

	current, err := t.allowance(ctx, spender)
	if err != nil {
		return nil, err
	}

	if amount.Equal(current) {
		return nil, &ledger.Error{
			Op:     "submit",
			Reason: "Allowance is already set to this amount",
			Err:    ErrAllowanceUnchanged,
		}
	}
	if amount.LT(current) {
		return DecreaseAllowanceMsg{DecreaseAllowance: AllowanceParams{
			Spender: spender,
			Amount:  current.Sub(amount),
		}}, nil
	}
	return IncreaseAllowanceMsg{IncreaseAllowance: AllowanceParams{
		Spender: spender,
		Amount:  amount.Sub(current),
	}}, nil
}

// Submit executes the action on the contract and returns the transaction hash
func (t *CW20) Submit(ctx context.Context, req ledger.Request) (string, error) {
	msg, err := t.message(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to build %s message: %w", req.Action, err)
	}

	t.logger.Info("Executing token message",
		zap.String("action", string(req.Action)),
		zap.String("contract", t.contract),
		zap.String("amount", req.Amount.String()))

	txHash, err := t.client.ExecuteContract(ctx, t.contract, msg, nil)
	if err != nil {
		return "", wrapError("submit", err)
	}
	return txHash, nil
}

// AwaitFinality polls until the transaction is included or ctx is done
func (t *CW20) AwaitFinality(ctx context.Context, reference string) (*ledger.Receipt, error) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		result, err := t.client.GetTx(ctx, reference)
		switch {
		case err == nil:
			receipt := &ledger.Receipt{
				Reference:   reference,
				BlockNumber: uint64(result.Height),
				GasUsed:     uint64(result.GasUsed),
			}
			if result.Code != 0 {
				return receipt, &ledger.Error{
					Op:      "finality",
					Reason:  reasonFromLog(result.Log),
					Message: fmt.Sprintf("transaction failed with code %d: %s", result.Code, result.Log),
					Err:     ledger.ErrReverted,
				}
			}
			t.logger.Info("Token transaction confirmed",
				zap.String("tx_hash", reference),
				zap.Int64("height", result.Height))
			return receipt, nil
		case !errors.Is(err, ErrTxNotFound):
			t.logger.Debug("Tx lookup failed, retrying",
				zap.String("tx_hash", reference),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("stopped waiting for transaction %s: %w", reference, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Allowance returns how much spender may move on behalf of the signer
func (t *CW20) Allowance(ctx context.Context, spender common.Address) (*big.Int, error) {
	addr, err := EncodeBech32(t.prefix, spender)
	if err != nil {
		return nil, err
	}
	amount, err := t.allowance(ctx, addr)
	if err != nil {
		return nil, err
	}
	return amount.BigInt(), nil
}

func (t *CW20) allowance(ctx context.Context, spender string) (math.Int, error) {
	var q allowanceQuery
	q.Allowance.Owner = t.client.Sender()
	q.Allowance.Spender = spender

	var resp AllowanceResponse
	if err := t.query(ctx, q, &resp); err != nil {
		return math.Int{}, err
	}
	if resp.Allowance.IsNil() {
		return math.ZeroInt(), nil
	}
	return resp.Allowance, nil
}

// BalanceOf returns the signer's token balance
func (t *CW20) BalanceOf(ctx context.Context) (*big.Int, error) {
	var q balanceQuery
	q.Balance.Address = t.client.Sender()

	var resp BalanceResponse
	if err := t.query(ctx, q, &resp); err != nil {
		return nil, err
	}
	if resp.Balance.IsNil() {
		return new(big.Int), nil
	}
	return resp.Balance.BigInt(), nil
}

// TokenInfo reads token metadata and the signer's balance
func (t *CW20) TokenInfo(ctx context.Context) (*models.TokenInfo, error) {
	var resp TokenInfoResponse
	if err := t.query(ctx, tokenInfoQuery{}, &resp); err != nil {
		return nil, err
	}

	balance, err := t.BalanceOf(ctx)
	if err != nil {
		return nil, err
	}

	supply := new(big.Int)
	if !resp.TotalSupply.IsNil() {
		supply = resp.TotalSupply.BigInt()
	}

	return &models.TokenInfo{
		Name:        resp.Name,
		Symbol:      resp.Symbol,
		Decimals:    resp.Decimals,
		TotalSupply: supply,
		Balance:     balance,
		Owner:       t.client.Sender(),
		UpdatedAt:   time.Now(),
	}, nil
}

func (t *CW20) query(ctx context.Context, q interface{}, out interface{}) error {
	data, err := t.client.QueryContract(ctx, t.contract, q)
	if err != nil {
		return wrapError("query", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode query response: %w", err)
	}
	return nil
}

// Contract errors surface in the log as "...: <reason>: execute wasm contract failed"
var wasmFailure = regexp.MustCompile(`(?:failed to execute message; message index: \d+: )?(.*?):? execute wasm contract failed`)

func reasonFromLog(log string) string {
	if m := wasmFailure.FindStringSubmatch(log); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func wrapError(op string, err error) *ledger.Error {
	lerr := &ledger.Error{Op: op, Err: err}
	var berr *BroadcastError
	if errors.As(err, &berr) {
		lerr.Reason = reasonFromLog(berr.Log)
	}
	return lerr
}
