package watcher

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/tarancss/adoption/lib/block/types"
)

// chain is a fake LogSource.
type chain struct {
	mu      sync.Mutex
	head    uint64
	headers map[uint64]*etypes.Header
	logs    map[common.Hash][]etypes.Log
}

func newChain(n uint64) *chain {
	c := &chain{headers: make(map[uint64]*etypes.Header), logs: make(map[common.Hash][]etypes.Log)}

	var parent common.Hash
	for i := uint64(1); i <= n; i++ {
		h := header(i, parent)
		c.headers[i] = h
		parent = h.Hash()
	}

	return c
}

func header(n uint64, parent common.Hash) *etypes.Header {
	return &etypes.Header{Number: new(big.Int).SetUint64(n), ParentHash: parent, Difficulty: big.NewInt(1), Time: n}
}

func (c *chain) set(n uint64, h *etypes.Header) {
	c.mu.Lock()
	c.headers[n] = h
	c.mu.Unlock()
}

func (c *chain) HeaderByNumber(ctx context.Context, number *big.Int) (*etypes.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.head
	if number != nil {
		n = number.Uint64()
	}

	h, ok := c.headers[n]
	if !ok {
		return nil, ethereum.NotFound
	}

	return h, nil
}

func (c *chain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]etypes.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if q.BlockHash == nil {
		return nil, errors.New("expected a block hash filter")
	}

	return c.logs[*q.BlockHash], nil
}

func decode(l etypes.Log) (types.Event, error) {
	return types.Event{Name: "Adopted", Block: l.BlockNumber, Hash: l.TxHash.Hex()}, nil
}

func next(t *testing.T, s *Subscription) Result {
	t.Helper()

	select {
	case r, ok := <-s.C:
		if !ok {
			t.Fatal("subscription channel closed")
		}

		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for a result")
	}

	return Result{}
}

// TestWatch checks events are delivered, re-delivered after a reorganisation and the channel is closed on Unsubscribe.
func TestWatch(t *testing.T) {
	c := newChain(3)
	c.head = 1
	c.logs[c.headers[2].Hash()] = []etypes.Log{{BlockNumber: 2, TxHash: common.HexToHash("0x02")}}

	s := Watch(context.Background(), c, ethereum.FilterQuery{}, decode, Options{Poll: 10 * time.Millisecond, MaxBlocks: 2})

	r := next(t, s)
	if r.Err != nil || r.Event.Block != 2 || r.Event.Name != "Adopted" {
		t.Fatalf("unexpected result %+v", r)
	}

	// block 4 does not chain with block 3
	c.set(4, header(4, common.HexToHash("0xbad")))

	if r = next(t, s); !errors.Is(r.Err, ErrReorg) {
		t.Fatalf("expected ErrReorg but got %+v", r)
	}

	c.mu.Lock()
	c.headers[4] = header(4, c.headers[3].Hash())
	c.mu.Unlock()

	// block 2 is scanned again
	if r = next(t, s); r.Err != nil || r.Event.Block != 2 {
		t.Fatalf("expected event of block 2 again but got %+v", r)
	}

	s.Unsubscribe()

	if _, ok := <-s.C; ok {
		t.Errorf("channel should be closed after Unsubscribe")
	}
}

// TestWatchFrom checks a subscription can start at a given block and errors are delivered on the same channel.
func TestWatchFrom(t *testing.T) {
	c := newChain(2)
	c.head = 2
	c.logs[c.headers[1].Hash()] = []etypes.Log{{BlockNumber: 1, TxHash: common.HexToHash("0x01")}}

	s := Watch(context.Background(), c, ethereum.FilterQuery{}, func(l etypes.Log) (types.Event, error) {
		return types.Event{}, errors.New("cannot decode")
	}, Options{Poll: 10 * time.Millisecond, From: big.NewInt(1)})
	defer s.Unsubscribe()

	if r := next(t, s); r.Err == nil || r.Err.Error() != "cannot decode" {
		t.Errorf("expected decode error but got %+v", r)
	}
}
