package ipld

import (
	"context"
	"sync"
	"sync/atomic"

	block "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	ipldcbor "github.com/ipfs/go-ipld-cbor"
	ipldformat "github.com/ipfs/go-ipld-format"

	"github.com/filecoin-project/vesting-actors/actors/util/adt"
)

// Creates a new, empty IPLD store in memory.
// This store is appropriate for most kinds of testing.
func NewADTStore(ctx context.Context) adt.Store {
	return adt.WrapBlockStore(ctx, NewBlockStoreInMemory())
}

//
// A basic in-memory block store.
//
type BlockStoreInMemory struct {
	mu   sync.RWMutex
	data map[cid.Cid]block.Block
}

var _ ipldcbor.IpldBlockstore = (*BlockStoreInMemory)(nil)

func NewBlockStoreInMemory() *BlockStoreInMemory {
	return &BlockStoreInMemory{data: make(map[cid.Cid]block.Block)}
}

func (mb *BlockStoreInMemory) Get(c cid.Cid) (block.Block, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	d, ok := mb.data[c]
	if ok {
		return d, nil
	}
	return nil, ipldformat.ErrNotFound
}

func (mb *BlockStoreInMemory) Put(b block.Block) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.data[b.Cid()] = b
	return nil
}

// Returns the number of blocks held.
func (mb *BlockStoreInMemory) Len() int {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	return len(mb.data)
}

// A store which tracks the number and total size of blocks written and read.
// Counters are updated atomically.
type MetricsBlockStore struct {
	bs         ipldcbor.IpldBlockstore
	Writes     uint64
	WriteBytes uint64
	Reads      uint64
	ReadBytes  uint64
}

func NewMetricsBlockStore(underlying ipldcbor.IpldBlockstore) *MetricsBlockStore {
	return &MetricsBlockStore{bs: underlying}
}

func (ms *MetricsBlockStore) Get(c cid.Cid) (block.Block, error) {
	atomic.AddUint64(&ms.Reads, 1)
	blk, err := ms.bs.Get(c)
	if err != nil {
		return blk, err
	}
	atomic.AddUint64(&ms.ReadBytes, uint64(len(blk.RawData())))
	return blk, nil
}

func (ms *MetricsBlockStore) Put(b block.Block) error {
	atomic.AddUint64(&ms.Writes, 1)
	atomic.AddUint64(&ms.WriteBytes, uint64(len(b.RawData())))
	return ms.bs.Put(b)
}
