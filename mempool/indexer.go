package mempool

import (
	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"

	"github.com/polymev/flasharb/apperror"
)

// Indexer remembers recently seen transaction hashes so each one is
// processed once. Entries are keyed by a 64-bit digest; a collision
// only costs a skipped candidate.
type Indexer struct {
	cache *lru.Cache
}

// NewIndexer creates an index bounded to size entries. A non-positive
// size defaults to 8192.
func NewIndexer(size int) (*Indexer, error) {
	if size <= 0 {
		size = 8192
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, err, "failed to create index cache")
	}
	return &Indexer{cache: cache}, nil
}

// Seen reports whether hash was already indexed, recording it if not.
func (i *Indexer) Seen(hash common.Hash) bool {
	seen, _ := i.cache.ContainsOrAdd(xxhash.Sum64(hash[:]), struct{}{})
	return seen
}

// Len returns the number of indexed hashes.
func (i *Indexer) Len() int {
	return i.cache.Len()
}
