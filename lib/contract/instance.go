package contract

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/tarancss/adoption/lib/block/types"
	"github.com/tarancss/adoption/watcher"
)

// Errors returned by an Instance.
var (
	ErrNoCode  = errors.New("no contract code at given address")
	ErrNoEvent = errors.New("event not found in contract abi")
)

// Backend is the connection an Instance calls through. *block.Client implements it.
type Backend interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	Transact(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error)
	WaitMined(ctx context.Context, hash common.Hash) (*etypes.Receipt, error)
}

// Instance is a deployed contract bound to a connection. It is not modified after Bind.
type Instance struct {
	Descriptor
	backend Backend
}

// Bind returns the instance of the contract described by d.
func Bind(d Descriptor, b Backend) *Instance {
	return &Instance{Descriptor: d, backend: b}
}

// Call invokes a read-only method and returns its unpacked outputs.
func (c *Instance) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	input, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot pack %s.%s: %w", c.Name, method, err)
	}

	output, err := c.backend.Call(ctx, c.Address, input)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, method, err)
	}

	if len(output) == 0 {
		return nil, fmt.Errorf("%s.%s at %s: %w", c.Name, method, c.Address.Hex(), ErrNoCode)
	}

	res, err := c.ABI.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("cannot unpack %s.%s: %w", c.Name, method, err)
	}

	return res, nil
}

// Transact sends a transaction invoking method from account from and waits for it to be mined.
func (c *Instance) Transact(ctx context.Context, from common.Address, method string, args ...interface{}) (*etypes.Receipt, error) {
	input, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot pack %s.%s: %w", c.Name, method, err)
	}

	hash, err := c.backend.Transact(ctx, from, c.Address, input)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, method, err)
	}

	return c.backend.WaitMined(ctx, hash)
}

// Watch subscribes to the logs of event emitted by the contract.
func (c *Instance) Watch(ctx context.Context, event string, src watcher.LogSource, opts watcher.Options) (*watcher.Subscription, error) {
	ev, ok := c.ABI.Events[event]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, event, ErrNoEvent)
	}

	q := ethereum.FilterQuery{
		Addresses: []common.Address{c.Address},
		Topics:    [][]common.Hash{{ev.ID}},
	}

	return watcher.Watch(ctx, src, q, c.DecodeLog, opts), nil
}

// DecodeLog decodes a log emitted by the contract into an event.
func (c *Instance) DecodeLog(l etypes.Log) (types.Event, error) {
	if len(l.Topics) == 0 {
		return types.Event{}, fmt.Errorf("%s: log without topics: %w", c.Name, ErrNoEvent)
	}

	ev, err := c.ABI.EventByID(l.Topics[0])
	if err != nil {
		return types.Event{}, fmt.Errorf("%s: %w", c.Name, ErrNoEvent)
	}

	args := make(map[string]interface{})
	if len(l.Data) > 0 {
		if err = c.ABI.UnpackIntoMap(args, ev.Name, l.Data); err != nil {
			return types.Event{}, fmt.Errorf("cannot unpack %s.%s: %w", c.Name, ev.Name, err)
		}
	}

	var indexed abi.Arguments

	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	if err = abi.ParseTopicsIntoMap(args, indexed, l.Topics[1:]); err != nil {
		return types.Event{}, fmt.Errorf("cannot parse topics of %s.%s: %w", c.Name, ev.Name, err)
	}

	return types.Event{
		Contract: c.Name,
		Name:     ev.Name,
		Address:  l.Address.Hex(),
		Block:    l.BlockNumber,
		Hash:     l.TxHash.Hex(),
		Index:    l.Index,
		Removed:  l.Removed,
		Args:     args,
	}, nil
}
