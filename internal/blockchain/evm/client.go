package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"tokendesk/internal/config"
)

// backend is the chain access the token contract needs
type backend interface {
	From() common.Address
	CallContract(ctx context.Context, to common.Address, data []byte, block *big.Int) ([]byte, error)
	SignAndSendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ReplayTransaction(ctx context.Context, txHash common.Hash, block *big.Int) error
}

// Client wraps Ethereum client functionality for signing and sending token transactions
type Client struct {
	ethClient   *ethclient.Client
	cfg         *config.EVMConfig
	privateKey  *ecdsa.PrivateKey
	fromAddress common.Address
	chainID     *big.Int
	logger      *zap.Logger
}

// NewClient connects to the configured RPC endpoint and loads the signer key
func NewClient(ctx context.Context, cfg *config.EVMConfig, logger *zap.Logger) (*Client, error) {
	ethClient, err := ethclient.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint %s: %w", cfg.RPCEndpoint, err)
	}

	privateKeyHex := strings.TrimPrefix(cfg.PrivateKey, "0x")
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		ethClient.Close()
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		ethClient.Close()
		return nil, fmt.Errorf("failed to cast public key to ECDSA")
	}
	fromAddress := crypto.PubkeyToAddress(*publicKeyECDSA)

	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		ethClient.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	logger.Info("EVM client initialized",
		zap.String("chain_id", chainID.String()),
		zap.String("rpc_endpoint", cfg.RPCEndpoint),
		zap.String("signer_address", fromAddress.Hex()))

	return &Client{
		ethClient:   ethClient,
		cfg:         cfg,
		privateKey:  privateKey,
		fromAddress: fromAddress,
		chainID:     chainID,
		logger:      logger,
	}, nil
}

// Close closes the underlying RPC connection
func (c *Client) Close() {
	c.ethClient.Close()
}

// From returns the signer address
func (c *Client) From() common.Address {
	return c.fromAddress
}

// CallContract executes a read-only call against the latest state, or the given block
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte, block *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, ethereum.CallMsg{
		From: c.fromAddress,
		To:   &to,
		Data: data,
	}, block)
}

// TransactionReceipt returns the receipt, or ethereum.NotFound while the transaction is pending
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return c.ethClient.TransactionReceipt(ctx, txHash)
}

// ReplayTransaction re-executes a mined transaction as a call so a failed one
// yields its revert data
func (c *Client) ReplayTransaction(ctx context.Context, txHash common.Hash, block *big.Int) error {
	tx, _, err := c.ethClient.TransactionByHash(ctx, txHash)
	if err != nil {
		return fmt.Errorf("failed to get transaction: %w", err)
	}

	_, err = c.ethClient.CallContract(ctx, ethereum.CallMsg{
		From:     c.fromAddress,
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}, block)
	return err
}

// SignAndSendTransaction creates, signs, and sends a transaction
func (c *Client) SignAndSendTransaction(
	ctx context.Context,
	to common.Address,
	data []byte,
	value *big.Int,
) (common.Hash, error) {
	nonce, err := c.ethClient.PendingNonceAt(ctx, c.fromAddress)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to suggest gas price: %w", err)
	}

	// Estimation executes the call, so a revert surfaces here with its data
	gasLimit, err := c.ethClient.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.fromAddress,
		To:    &to,
		Data:  data,
		Value: value,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
	}

	// Add 20% buffer
	gasLimit = gasLimit * 120 / 100

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.ethClient.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Info("Transaction sent",
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", gasLimit))

	return signedTx.Hash(), nil
}
