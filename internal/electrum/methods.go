package electrum

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/btcsuite/btcd/btcutil"

	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// ServerVersion performs the protocol handshake and returns the server
// software string and the negotiated protocol version.
func (c *Client) ServerVersion(ctx context.Context) (string, string, error) {
	raw, err := c.call(ctx, "server.version", []any{clientName, protocolVersion})
	if err != nil {
		return "", "", wrapRPC(err, "server.version")
	}

	var pair [2]string
	if err := json.Unmarshal(raw, &pair); err != nil {
		return "", "", sweeperr.Classify(sweeperr.ErrProtocol, err, "unexpected server.version reply")
	}
	return pair[0], pair[1], nil
}

// ScriptHashGetHistory returns the transaction history of one script hash.
func (c *Client) ScriptHashGetHistory(ctx context.Context, scriptHash string) ([]HistoryItem, error) {
	raw, err := c.call(ctx, "blockchain.scripthash.get_history", []any{scriptHash})
	if err != nil {
		return nil, wrapRPC(err, "blockchain.scripthash.get_history")
	}

	var items []HistoryItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, sweeperr.Classify(sweeperr.ErrProtocol, err, "unexpected get_history reply")
	}
	return items, nil
}

// ScriptHashGetHistoryBatch fetches histories for a whole window of
// script hashes. Results are in argument order.
func (c *Client) ScriptHashGetHistoryBatch(ctx context.Context, scriptHashes []string) ([][]HistoryItem, error) {
	paramsList := make([][]any, len(scriptHashes))
	for i, sh := range scriptHashes {
		paramsList[i] = []any{sh}
	}

	raws, err := c.callBatch(ctx, "blockchain.scripthash.get_history", paramsList)
	if err != nil {
		return nil, wrapRPC(err, "blockchain.scripthash.get_history")
	}

	histories := make([][]HistoryItem, len(raws))
	for i, raw := range raws {
		if err := json.Unmarshal(raw, &histories[i]); err != nil {
			return nil, sweeperr.Classify(sweeperr.ErrProtocol, err, "unexpected get_history reply")
		}
	}
	return histories, nil
}

// ScriptHashListUnspent returns the unspent outputs of one script hash.
func (c *Client) ScriptHashListUnspent(ctx context.Context, scriptHash string) ([]Unspent, error) {
	raw, err := c.call(ctx, "blockchain.scripthash.listunspent", []any{scriptHash})
	if err != nil {
		return nil, wrapRPC(err, "blockchain.scripthash.listunspent")
	}

	var utxos []Unspent
	if err := json.Unmarshal(raw, &utxos); err != nil {
		return nil, sweeperr.Classify(sweeperr.ErrProtocol, err, "unexpected listunspent reply")
	}
	return utxos, nil
}

// ScriptHashListUnspentBatch fetches unspent outputs for a whole window
// of script hashes. Results are in argument order.
func (c *Client) ScriptHashListUnspentBatch(ctx context.Context, scriptHashes []string) ([][]Unspent, error) {
	paramsList := make([][]any, len(scriptHashes))
	for i, sh := range scriptHashes {
		paramsList[i] = []any{sh}
	}

	raws, err := c.callBatch(ctx, "blockchain.scripthash.listunspent", paramsList)
	if err != nil {
		return nil, wrapRPC(err, "blockchain.scripthash.listunspent")
	}

	utxos := make([][]Unspent, len(raws))
	for i, raw := range raws {
		if err := json.Unmarshal(raw, &utxos[i]); err != nil {
			return nil, sweeperr.Classify(sweeperr.ErrProtocol, err, "unexpected listunspent reply")
		}
	}
	return utxos, nil
}

// TransactionGet returns the raw serialized transaction in hex.
func (c *Client) TransactionGet(ctx context.Context, txID string) (string, error) {
	raw, err := c.call(ctx, "blockchain.transaction.get", []any{txID})
	if err != nil {
		return "", wrapRPC(err, "blockchain.transaction.get")
	}

	var hexTx string
	if err := json.Unmarshal(raw, &hexTx); err != nil {
		return "", sweeperr.Classify(sweeperr.ErrProtocol, err, "unexpected transaction.get reply")
	}
	return hexTx, nil
}

// EstimateFee asks the server for a fee estimate targeting confirmation
// within the given number of blocks and converts it to satoshis per
// virtual byte. Returns 0 when the server has no estimate, so the
// caller can fall back to a configured rate.
func (c *Client) EstimateFee(ctx context.Context, targetBlocks int) (int64, error) {
	raw, err := c.call(ctx, "blockchain.estimatefee", []any{targetBlocks})
	if err != nil {
		return 0, wrapRPC(err, "blockchain.estimatefee")
	}

	var btcPerKB float64
	if err := json.Unmarshal(raw, &btcPerKB); err != nil {
		return 0, sweeperr.Classify(sweeperr.ErrProtocol, err, "unexpected estimatefee reply")
	}
	if btcPerKB <= 0 {
		return 0, nil
	}
	return int64(btcPerKB * float64(btcutil.SatoshiPerBitcoin) / 1024), nil
}

// TransactionBroadcast submits a raw transaction in hex and returns the
// txid the server assigned. A rejection carries the server's reason
// verbatim.
func (c *Client) TransactionBroadcast(ctx context.Context, rawTxHex string) (string, error) {
	raw, err := c.call(ctx, "blockchain.transaction.broadcast", []any{rawTxHex})
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return "", sweeperr.WithDetails(
				sweeperr.Classify(sweeperr.ErrTxRejected, err, ""),
				map[string]string{"server_message": rpcErr.Message})
		}
		return "", wrapRPC(err, "blockchain.transaction.broadcast")
	}

	var txID string
	if err := json.Unmarshal(raw, &txID); err != nil {
		return "", sweeperr.Classify(sweeperr.ErrProtocol, err, "unexpected broadcast reply")
	}
	return txID, nil
}

// wrapRPC normalizes errors coming out of the call plumbing: RPC error
// objects become protocol errors, everything already classified passes
// through.
func wrapRPC(err error, method string) error {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return sweeperr.WithDetails(
			sweeperr.Classify(sweeperr.ErrProtocol, err, "%s failed", method),
			map[string]string{"server_message": rpcErr.Message})
	}

	var se *sweeperr.SweepError
	if errors.As(err, &se) {
		return err
	}
	return sweeperr.Wrap(err, "%s failed", method)
}
