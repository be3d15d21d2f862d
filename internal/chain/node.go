package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// NodeClient submits a signed transaction to a ledger RPC node and returns
// the ledger reference assigned to it.
type NodeClient interface {
	SubmitTransaction(ctx context.Context, signedTx []byte) (string, error)
}

// RPCClient is the HTTP JSON-RPC implementation of NodeClient. It always
// targets the ring's current endpoint so endpoint rotation takes effect on
// the next submission.
type RPCClient struct {
	ring   *Ring
	http   *http.Client
	logger *zap.Logger
}

// NewRPCClient creates a node client over the endpoint ring.
func NewRPCClient(ring *Ring, timeout time.Duration, logger *zap.Logger) *RPCClient {
	return &RPCClient{
		ring:   ring,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type rpcResponse struct {
	Result *struct {
		ID string `json:"id"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SubmitTransaction broadcasts the signed transaction to the current node.
func (c *RPCClient) SubmitTransaction(ctx context.Context, signedTx []byte) (string, error) {
	node := c.ring.Current()
	if node == "" {
		return "", fmt.Errorf("no ledger nodes configured")
	}

	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "broadcast_transaction",
		Params:  []json.RawMessage{signedTx},
		ID:      1,
	})
	if err != nil {
		return "", fmt.Errorf("encoding broadcast request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, node, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("building broadcast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("broadcast to %s: %w", node, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading broadcast response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("broadcast to %s: status %d", node, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return "", fmt.Errorf("decoding broadcast response: %w", err)
	}
	if rpcResp.Error != nil {
		return "", fmt.Errorf("node rejected transaction: %s", rpcResp.Error.Message)
	}
	if rpcResp.Result == nil || rpcResp.Result.ID == "" {
		return "", fmt.Errorf("node returned no transaction id")
	}

	c.logger.Debug("transaction broadcast",
		zap.String("node", node),
		zap.String("trx_id", rpcResp.Result.ID),
	)
	return rpcResp.Result.ID, nil
}
