package cosmos

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cosmossdk.io/math"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	cryptocodec "github.com/cosmos/cosmos-sdk/crypto/codec"
	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	authsigning "github.com/cosmos/cosmos-sdk/x/auth/signing"
	authtx "github.com/cosmos/cosmos-sdk/x/auth/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	"go.uber.org/zap"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"

	"tokendesk/internal/config"
)

const (
	CoinType        = 118
	DefaultGasLimit = 500000
	DefaultGasPrice = 0.025
	keyName         = "signer"
)

// ErrTxNotFound is returned while a broadcast transaction is not yet in a block
var ErrTxNotFound = errors.New("transaction not found")

// TxResult is the execution outcome of an included transaction
type TxResult struct {
	Hash    string
	Height  int64
	Code    uint32
	Log     string
	GasUsed int64
}

// BroadcastError is a CheckTx rejection returned by the node
type BroadcastError struct {
	Code uint32
	Log  string
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("transaction failed with code %d: %s", e.Code, e.Log)
}

// Client wraps Cosmos SDK client functionality for executing CosmWasm contracts
type Client struct {
	rpcClient    *rpchttp.HTTP
	restEndpoint string
	httpClient   *http.Client
	cdc          codec.Codec
	txConfig     client.TxConfig
	keyring      keyring.Keyring
	signerAddr   sdk.AccAddress
	signerBech32 string
	pubKey       cryptotypes.PubKey
	chainID      string
	cfg          *config.CosmosConfig
	logger       *zap.Logger
}

// NewClient creates a new Cosmos client with a signer derived from the configured mnemonic
func NewClient(ctx context.Context, cfg *config.CosmosConfig, logger *zap.Logger) (*Client, error) {
	rpcClient, err := rpchttp.New(cfg.RPCEndpoint, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client: %w", err)
	}

	status, err := rpcClient.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain status: %w", err)
	}
	chainID := status.NodeInfo.Network

	interfaceRegistry := codectypes.NewInterfaceRegistry()
	cryptocodec.RegisterInterfaces(interfaceRegistry)
	authtypes.RegisterInterfaces(interfaceRegistry)
	wasmtypes.RegisterInterfaces(interfaceRegistry)
	cdc := codec.NewProtoCodec(interfaceRegistry)

	txConfig := authtx.NewTxConfig(cdc, authtx.DefaultSignModes)

	kr := keyring.NewInMemory(cdc)

	hdPath := hd.CreateHDPath(CoinType, 0, 0).String()
	record, err := kr.NewAccount(keyName, cfg.Mnemonic, "", hdPath, hd.Secp256k1)
	if err != nil {
		return nil, fmt.Errorf("failed to create key from mnemonic: %w", err)
	}

	pubKey, err := record.GetPubKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	signerAddr := sdk.AccAddress(pubKey.Address())

	// Encode with the configured prefix rather than the SDK's global config
	signerBech32, err := sdk.Bech32ifyAddressBytes(cfg.Bech32Prefix, signerAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signer address: %w", err)
	}

	logger.Info("Cosmos client initialized",
		zap.String("chain_id", chainID),
		zap.String("rpc_endpoint", cfg.RPCEndpoint),
		zap.String("signer_address", signerBech32))

	return &Client{
		rpcClient:    rpcClient,
		restEndpoint: strings.TrimRight(cfg.RESTEndpoint, "/"),
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		cdc:          cdc,
		txConfig:     txConfig,
		keyring:      kr,
		signerAddr:   signerAddr,
		signerBech32: signerBech32,
		pubKey:       pubKey,
		chainID:      chainID,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// Close closes the RPC client connection
func (c *Client) Close() error {
	return c.rpcClient.Stop()
}

// Sender returns the signer's bech32 address
func (c *Client) Sender() string {
	return c.signerBech32
}

// ChainID returns the chain ID
func (c *Client) ChainID() string {
	return c.chainID
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetAccountInfo returns account number and sequence for transaction signing
func (c *Client) GetAccountInfo(ctx context.Context, address string) (uint64, uint64, error) {
	var result struct {
		Account struct {
			AccountNumber string `json:"account_number"`
			Sequence      string `json:"sequence"`
		} `json:"account"`
	}

	url := fmt.Sprintf("%s/cosmos/auth/v1beta1/accounts/%s", c.restEndpoint, address)
	if err := c.getJSON(ctx, url, &result); err != nil {
		return 0, 0, fmt.Errorf("failed to query account: %w", err)
	}

	accountNum, err := strconv.ParseUint(result.Account.AccountNumber, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid account number %q: %w", result.Account.AccountNumber, err)
	}
	// a fresh account may report no sequence yet
	var sequence uint64
	if result.Account.Sequence != "" {
		sequence, err = strconv.ParseUint(result.Account.Sequence, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid sequence %q: %w", result.Account.Sequence, err)
		}
	}

	return accountNum, sequence, nil
}

// QueryContract queries a CosmWasm contract via REST API
func (c *Client) QueryContract(ctx context.Context, contractAddr string, queryMsg interface{}) ([]byte, error) {
	queryMsgBytes, err := json.Marshal(queryMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query message: %w", err)
	}

	queryBase64 := base64.StdEncoding.EncodeToString(queryMsgBytes)

	url := fmt.Sprintf("%s/cosmwasm/wasm/v1/contract/%s/smart/%s",
		c.restEndpoint, contractAddr, queryBase64)

	var result struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.getJSON(ctx, url, &result); err != nil {
		return nil, fmt.Errorf("contract query failed: %w", err)
	}

	return result.Data, nil
}

// ExecuteContract executes a CosmWasm contract message and returns the tx hash
func (c *Client) ExecuteContract(
	ctx context.Context,
	contractAddr string,
	executeMsg interface{},
	funds sdk.Coins,
) (string, error) {
	executeMsgBytes, err := json.Marshal(executeMsg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal execute message: %w", err)
	}

	msg := &wasmtypes.MsgExecuteContract{
		Sender:   c.signerBech32,
		Contract: contractAddr,
		Msg:      executeMsgBytes,
		Funds:    funds,
	}

	return c.SignAndBroadcast(ctx, msg)
}

// SignAndBroadcast signs and broadcasts a transaction using cosmos-sdk tx builder
func (c *Client) SignAndBroadcast(ctx context.Context, msgs ...sdk.Msg) (string, error) {
	accountNum, sequence, err := c.GetAccountInfo(ctx, c.signerBech32)
	if err != nil {
		return "", fmt.Errorf("failed to get account info: %w", err)
	}

	txBuilder := c.txConfig.NewTxBuilder()

	if err := txBuilder.SetMsgs(msgs...); err != nil {
		return "", fmt.Errorf("failed to set messages: %w", err)
	}

	gasLimit := c.cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}
	gasPrice := c.cfg.GasPrice
	if gasPrice <= 0 {
		gasPrice = DefaultGasPrice
	}
	txBuilder.SetGasLimit(gasLimit)
	feeAmount := int64(float64(gasLimit) * gasPrice)
	txBuilder.SetFeeAmount(sdk.NewCoins(sdk.NewCoin(c.cfg.FeeDenom, math.NewInt(feeAmount))))
	txBuilder.SetMemo("")

	// Set signature placeholder to get proper sign bytes
	sigV2 := signing.SignatureV2{
		PubKey: c.pubKey,
		Data: &signing.SingleSignatureData{
			SignMode:  signing.SignMode_SIGN_MODE_DIRECT,
			Signature: nil,
		},
		Sequence: sequence,
	}
	if err := txBuilder.SetSignatures(sigV2); err != nil {
		return "", fmt.Errorf("failed to set signature placeholder: %w", err)
	}

	signerData := authsigning.SignerData{
		ChainID:       c.chainID,
		AccountNumber: accountNum,
		Sequence:      sequence,
	}

	signBytes, err := authsigning.GetSignBytesAdapter(
		ctx,
		c.txConfig.SignModeHandler(),
		signing.SignMode_SIGN_MODE_DIRECT,
		signerData,
		txBuilder.GetTx(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to get sign bytes: %w", err)
	}

	sigBytes, _, err := c.keyring.Sign(keyName, signBytes, signing.SignMode_SIGN_MODE_DIRECT)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	sigV2.Data = &signing.SingleSignatureData{
		SignMode:  signing.SignMode_SIGN_MODE_DIRECT,
		Signature: sigBytes,
	}
	if err := txBuilder.SetSignatures(sigV2); err != nil {
		return "", fmt.Errorf("failed to set final signature: %w", err)
	}

	txBytes, err := c.txConfig.TxEncoder()(txBuilder.GetTx())
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}

	// Broadcast via RPC (sync mode)
	resp, err := c.rpcClient.BroadcastTxSync(ctx, txBytes)
	if err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	if resp.Code != 0 {
		return "", &BroadcastError{Code: resp.Code, Log: resp.Log}
	}

	txHash := strings.ToUpper(hex.EncodeToString(resp.Hash))
	c.logger.Info("Transaction broadcast successfully",
		zap.String("tx_hash", txHash),
		zap.Uint64("account_number", accountNum),
		zap.Uint64("sequence", sequence))

	return txHash, nil
}

// GetTx returns the result of an included transaction, or ErrTxNotFound
func (c *Client) GetTx(ctx context.Context, txHash string) (*TxResult, error) {
	hashBytes, err := hex.DecodeString(txHash)
	if err != nil {
		return nil, fmt.Errorf("invalid tx hash: %w", err)
	}

	result, err := c.rpcClient.Tx(ctx, hashBytes, false)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, ErrTxNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &TxResult{
		Hash:    txHash,
		Height:  result.Height,
		Code:    result.TxResult.Code,
		Log:     result.TxResult.Log,
		GasUsed: result.TxResult.GasUsed,
	}, nil
}
