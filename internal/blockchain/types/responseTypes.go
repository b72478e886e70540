package types

import "time"

// RPCResponse is the envelope of every message on a Tendermint/CometBFT
// websocket subscription.
type RPCResponse struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      interface{}  `json:"id"`
	Result  *EventResult `json:"result,omitempty"`
	Error   *RPCError    `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

// EventResult is empty for the subscription ack.
type EventResult struct {
	Query string    `json:"query"`
	Data  EventData `json:"data"`
}

type EventData struct {
	Type  string        `json:"type"` // e.g. "tendermint/event/NewBlock"
	Value NewBlockValue `json:"value"`
}

type NewBlockValue struct {
	Block *Block `json:"block"`
}

type Block struct {
	Header BlockHeader `json:"header"`
}

type BlockHeader struct {
	ChainID string    `json:"chain_id"`
	Height  string    `json:"height"` // int64 encoded as a string
	Time    time.Time `json:"time"`
}
