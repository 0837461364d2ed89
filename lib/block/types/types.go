// Package types common blockchain types.
package types

import (
	"errors"
)

// Event contains a decoded contract event. Args holds both the indexed and non indexed event arguments by name.
type Event struct {
	Contract string                 `json:"contract"`
	Name     string                 `json:"name"`
	Address  string                 `json:"address"`
	Block    uint64                 `json:"block"`
	Hash     string                 `json:"hash"` // transaction hash
	Index    uint                   `json:"index"`
	Removed  bool                   `json:"removed,omitempty"`
	Args     map[string]interface{} `json:"args,omitempty"`
	Source   string                 `json:"source,omitempty"` // service instance that published it, if any
}

// Error codes.
var (
	ErrNoAccounts  = errors.New("no accounts available")
	ErrTxFailed    = errors.New("transaction reverted")
	ErrBadEndpoint = errors.New("invalid provider endpoint")
)
