// Package watcher implements subscriptions to contract events. A subscription follows the chain block by block from
// its start, filters the logs of every block and delivers the decoded events, or the errors found, through a single
// channel until it is cancelled.
//
// When the parent hash of a new block does not match the last block scanned, the chain has been reorganised: the
// subscription delivers ErrReorg, rewinds its cursor and scans the affected blocks again, so an event can be delivered
// more than once but is never skipped.
package watcher

import (
	"context"
	"errors"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	etypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/tarancss/adoption/lib/block/types"
	"github.com/tarancss/adoption/watcher/cursor"
)

// Default options.
const (
	DefaultPoll      = 2 * time.Second
	DefaultMaxBlocks = 8
)

// ErrReorg is delivered when a chain reorganisation is detected.
var ErrReorg = errors.New("chain reorganisation detected, rescanning blocks")

// LogSource is the part of the node client the watcher needs. *ethclient.Client implements it.
type LogSource interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*etypes.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]etypes.Log, error)
}

// Decoder turns a log into an event.
type Decoder func(etypes.Log) (types.Event, error)

// Result is delivered for every event found, or error.
type Result struct {
	Event types.Event
	Err   error
}

// Options of a subscription. From is the first block scanned, the head of the chain when nil.
type Options struct {
	Poll      time.Duration
	MaxBlocks int
	From      *big.Int
}

// Subscription is a cancellable watch. C is closed when the subscription ends.
type Subscription struct {
	C      <-chan Result
	cancel context.CancelFunc
	done   chan struct{}
}

// Unsubscribe stops the subscription and waits for it to end.
func (s *Subscription) Unsubscribe() {
	s.cancel()
	<-s.done
}

// Watch starts a subscription for the logs matching q. BlockHash, FromBlock and ToBlock of q are ignored.
func Watch(ctx context.Context, src LogSource, q ethereum.FilterQuery, decode Decoder, opts Options) *Subscription {
	if opts.Poll <= 0 {
		opts.Poll = DefaultPoll
	}

	if opts.MaxBlocks <= 0 {
		opts.MaxBlocks = DefaultMaxBlocks
	}

	q.FromBlock, q.ToBlock = nil, nil

	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Result)
	s := &Subscription{C: ch, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer close(ch)

		w := &watch{src: src, q: q, decode: decode, opts: opts, ch: ch}
		w.run(ctx)
	}()

	return s
}

type watch struct {
	src    LogSource
	q      ethereum.FilterQuery
	decode Decoder
	opts   Options
	ch     chan<- Result
	cur    *cursor.Cursor
}

func (w *watch) run(ctx context.Context) {
	for ctx.Err() == nil {
		if w.cur == nil {
			if err := w.start(ctx); err != nil {
				if !w.deliver(ctx, Result{Err: err}) || !w.wait(ctx) {
					return
				}
			}

			continue
		}

		h, err := w.src.HeaderByNumber(ctx, new(big.Int).SetUint64(w.cur.Next()))
		if errors.Is(err, ethereum.NotFound) {
			// lets wait for a new block to be mined
			if !w.wait(ctx) {
				return
			}

			continue
		}

		if err != nil {
			if !w.deliver(ctx, Result{Err: err}) || !w.wait(ctx) {
				return
			}

			continue
		}

		if !w.cur.Chained(h.ParentHash.Hex()) {
			b := w.cur.Rewind(w.opts.MaxBlocks)
			log.Printf("[watch] Block %d is not chained, rewinding to block %d", h.Number.Uint64(), b)

			if !w.deliver(ctx, Result{Err: ErrReorg}) {
				return
			}

			continue
		}

		hash := h.Hash()
		q := w.q
		q.BlockHash = &hash

		logs, err := w.src.FilterLogs(ctx, q)
		if err != nil {
			if !w.deliver(ctx, Result{Err: err}) || !w.wait(ctx) {
				return
			}

			continue
		}

		for _, l := range logs {
			ev, err := w.decode(l)
			if !w.deliver(ctx, Result{Event: ev, Err: err}) {
				return
			}
		}

		w.cur.UpdateChain(hash.Hex())
	}
}

// start positions the cursor just before the first block to scan.
func (w *watch) start(ctx context.Context) error {
	from := w.opts.From
	if from == nil {
		h, err := w.src.HeaderByNumber(ctx, nil)
		if err != nil {
			return err
		}

		from = h.Number
	}

	var last uint64
	if from.Sign() > 0 {
		last = from.Uint64() - 1
	}

	w.cur = cursor.New(last, w.opts.MaxBlocks)

	return nil
}

func (w *watch) deliver(ctx context.Context, r Result) bool {
	select {
	case w.ch <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *watch) wait(ctx context.Context) bool {
	select {
	case <-time.After(w.opts.Poll):
		return true
	case <-ctx.Done():
		return false
	}
}
