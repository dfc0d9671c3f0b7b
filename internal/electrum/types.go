package electrum

import "encoding/json"

// Client identification sent in the server.version handshake.
const (
	clientName      = "hdsweep 1.0"
	protocolVersion = "1.4"
)

// HistoryItem is one confirmed or mempool transaction touching a script
// hash, as returned by blockchain.scripthash.get_history.
type HistoryItem struct {
	TxHash string `json:"tx_hash"`
	Height int64  `json:"height"`
	Fee    int64  `json:"fee,omitempty"`
}

// Unspent is one unspent output on a script hash, as returned by
// blockchain.scripthash.listunspent.
type Unspent struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Height int64  `json:"height"`
	Value  int64  `json:"value"`
}

// RPCError is an error object from a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

type rpcResult struct {
	result json.RawMessage
	err    error
}
