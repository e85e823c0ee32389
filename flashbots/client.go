// Package flashbots submits transaction bundles to a Fastlane-style
// MEV relay over signed JSON-RPC.
package flashbots

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/polymev/flasharb/apperror"
)

const (
	contentTypeJSON = "application/json"
	signatureHeader = "X-Flashbots-Signature"

	methodSendBundle = "eth_sendBundle"
	methodCallBundle = "eth_callBundle"
	methodUserStats  = "flashbots_getUserStats"
)

// Client is a relay RPC client. Every request body is keccak-hashed
// and signed with the auth key; the relay uses the recovered address
// for reputation.
type Client struct {
	httpClient *http.Client
	relayURL   string
	authKey    *ecdsa.PrivateKey
	logger     *zap.Logger
}

// NewClient creates a relay client.
func NewClient(relayURL string, authKey *ecdsa.PrivateKey, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 3 * time.Second},
		relayURL:   relayURL,
		authKey:    authKey,
		logger:     logger,
	}
}

// SendBundleArgs is the eth_sendBundle wire payload.
type SendBundleArgs struct {
	Txs               []hexutil.Bytes `json:"txs"`
	BlockNumber       hexutil.Uint64  `json:"blockNumber"`
	MinTimestamp      uint64          `json:"minTimestamp,omitempty"`
	MaxTimestamp      uint64          `json:"maxTimestamp,omitempty"`
	RevertingTxHashes []common.Hash   `json:"revertingTxHashes,omitempty"`
}

// CallBundleArgs is the eth_callBundle wire payload.
type CallBundleArgs struct {
	Txs              []hexutil.Bytes `json:"txs"`
	BlockNumber      hexutil.Uint64  `json:"blockNumber"`
	StateBlockNumber string          `json:"stateBlockNumber"`
	Timestamp        uint64          `json:"timestamp,omitempty"`
}

// CallBundleResult is the relay's simulation verdict.
type CallBundleResult struct {
	BundleHash       string           `json:"bundleHash"`
	BundleGasPrice   string           `json:"bundleGasPrice"`
	CoinbaseDiff     string           `json:"coinbaseDiff"`
	TotalGasUsed     uint64           `json:"totalGasUsed"`
	StateBlockNumber uint64           `json:"stateBlockNumber"`
	Results          []CallBundleItem `json:"results"`
}

// CallBundleItem is one transaction's outcome inside a simulated
// bundle.
type CallBundleItem struct {
	TxHash  string `json:"txHash"`
	GasUsed uint64 `json:"gasUsed"`
	Error   string `json:"error,omitempty"`
	Revert  string `json:"revert,omitempty"`
}

// UserStats is the relay's view of this signer's reputation.
type UserStats struct {
	IsHighPriority       bool   `json:"is_high_priority"`
	AllTimeMinerPayments string `json:"all_time_miner_payments"`
	LastNDaysSuccessRate string `json:"last_7d_success_rate"`
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// SendBundle submits a signed bundle for the given target block and
// returns the relay's bundle hash.
func (c *Client) SendBundle(ctx context.Context, args *SendBundleArgs) (common.Hash, error) {
	raw, err := c.call(ctx, methodSendBundle, args)
	if err != nil {
		return common.Hash{}, err
	}

	var result struct {
		BundleHash common.Hash `json:"bundleHash"`
	}
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &result); err != nil {
			return common.Hash{}, fmt.Errorf("failed to decode bundle hash: %w", err)
		}
	}
	return result.BundleHash, nil
}

// CallBundle asks the relay to simulate the bundle against the given
// state block.
func (c *Client) CallBundle(ctx context.Context, args *CallBundleArgs) (*CallBundleResult, error) {
	if args.StateBlockNumber == "" {
		args.StateBlockNumber = "latest"
	}

	raw, err := c.call(ctx, methodCallBundle, args)
	if err != nil {
		return nil, err
	}

	var result CallBundleResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode simulation result: %w", err)
	}
	return &result, nil
}

// GetUserStats fetches the signer's relay reputation as of the given
// block.
func (c *Client) GetUserStats(ctx context.Context, blockNumber uint64) (*UserStats, error) {
	raw, err := c.call(ctx, methodUserStats, hexutil.Uint64(blockNumber))
	if err != nil {
		return nil, err
	}

	var stats UserStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode user stats: %w", err)
	}
	return &stats, nil
}

// call posts one signed JSON-RPC request and unwraps the response
// envelope.
func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(&rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  []interface{}{params},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	header, err := c.signPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set(signatureHeader, header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindExternalCall, err, "relay request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read relay response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.ExternalCall("relay returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode relay response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, apperror.ExternalCall("relay rejected %s: %s (code %d)",
			method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	return rpcResp.Result, nil
}

// signPayload produces the X-Flashbots-Signature header value: the
// signer address and an EIP-191 signature over the keccak of the body.
func (c *Client) signPayload(payload []byte) (string, error) {
	signature, err := crypto.Sign(
		accounts.TextHash([]byte(hexutil.Encode(crypto.Keccak256(payload)))),
		c.authKey,
	)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s",
		crypto.PubkeyToAddress(c.authKey.PublicKey).Hex(),
		hexutil.Encode(signature),
	), nil
}
