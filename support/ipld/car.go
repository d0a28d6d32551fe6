package ipld

import (
	"bytes"
	"io"

	block "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	car "github.com/ipld/go-car"
	carutil "github.com/ipld/go-car/util"
	mh "github.com/multiformats/go-multihash"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"
)

// BlockGetter reads blocks by CID.
type BlockGetter interface {
	Get(c cid.Cid) (block.Block, error)
}

// ExportCar writes the DAG reachable from root to w in CAR format, root first.
// Links are discovered by scanning DAG-CBOR blocks. Identity-hashed CIDs carry their data inline and are not written.
func ExportCar(w io.Writer, bs BlockGetter, root cid.Cid) error {
	if err := car.WriteHeader(&car.CarHeader{Roots: []cid.Cid{root}, Version: 1}, w); err != nil {
		return xerrors.Errorf("failed to write car header: %w", err)
	}

	seen := cid.NewSet()
	queue := []cid.Cid{root}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if !seen.Visit(c) || c.Prefix().MhType == mh.IDENTITY {
			continue
		}

		blk, err := bs.Get(c)
		if err != nil {
			return xerrors.Errorf("failed to load block %v: %w", c, err)
		}
		if err := carutil.LdWrite(w, c.Bytes(), blk.RawData()); err != nil {
			return xerrors.Errorf("failed to write block %v: %w", c, err)
		}

		if c.Prefix().Codec != cid.DagCBOR {
			continue
		}
		err = cbg.ScanForLinks(bytes.NewReader(blk.RawData()), func(link cid.Cid) {
			queue = append(queue, link)
		})
		if err != nil {
			return xerrors.Errorf("failed to scan block %v for links: %w", c, err)
		}
	}
	return nil
}

// ImportCar loads every block of a CAR into the store, returning the CAR's roots.
func ImportCar(r io.Reader, bs car.Store) ([]cid.Cid, error) {
	header, err := car.LoadCar(bs, r)
	if err != nil {
		return nil, xerrors.Errorf("failed to load car: %w", err)
	}
	return header.Roots, nil
}
