// Package cursor keeps the position of a watcher in the chain: the last block scanned and a revolving slice with the
// hashes of the last blocks, so a reorganisation of the chain can be detected.
package cursor

import (
	"sync"
)

// Cursor contains the fields required to follow a chain block by block.
type Cursor struct {
	l     sync.Mutex // l is a mutex to ensure concurrent updating of the cursor
	Block uint64     // last block scanned
	Bh    []string   // contains the last blocks hashes (from Block to Block-maxBlocks+1)
	Bhi   int        // index to last block's hash in Bh
}

// New returns a Cursor positioned at block, whose hash is not known yet. max is how many hashes are kept.
func New(block uint64, max int) *Cursor {
	if max < 1 {
		max = 1
	}

	return &Cursor{
		Block: block,
		Bh:    make([]string, max),
	}
}

// Next returns the number of the next block to scan.
func (c *Cursor) Next() uint64 {
	c.l.Lock()
	defer c.l.Unlock()

	return c.Block + 1
}

// Chained checks if the supplied hash is the last block's hash
func (c *Cursor) Chained(hash string) bool {
	c.l.Lock()
	defer c.l.Unlock()

	return c.Bh[c.Bhi] == hash || c.Bh[c.Bhi] == ""
}

// UpdateChain moves the cursor to the next block with the given hash
func (c *Cursor) UpdateChain(hash string) {
	c.l.Lock()
	defer c.l.Unlock()

	c.Block++
	c.Bhi++
	c.Bhi %= len(c.Bh)
	c.Bh[c.Bhi] = hash
}

// Rewind moves the cursor back n blocks (at most the number of hashes kept) forgetting their hashes, so those blocks
// are scanned again. It returns the new last block.
func (c *Cursor) Rewind(n int) uint64 {
	c.l.Lock()
	defer c.l.Unlock()

	if n > len(c.Bh) {
		n = len(c.Bh)
	}

	for i := 0; i < n && c.Block > 0; i++ {
		c.Bh[c.Bhi] = ""
		c.Bhi = (c.Bhi - 1 + len(c.Bh)) % len(c.Bh)
		c.Block--
	}
	// the hash of the new last block is not trusted either
	c.Bh[c.Bhi] = ""

	return c.Block
}
