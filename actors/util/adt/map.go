package adt

import (
	"bytes"

	hamt "github.com/filecoin-project/go-hamt-ipld/v3"
	cid "github.com/ipfs/go-cid"
	sha256 "github.com/minio/sha256-simd"
	errors "github.com/pkg/errors"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/vesting-actors/actors/runtime"
)

// DefaultHamtBitwidth is the default bitwidth for HAMTs in actor state.
const DefaultHamtBitwidth = 5

// HamtOptions specifies the hash function and bitwidth used by every HAMT in actor state.
func HamtOptions(bitwidth int) []hamt.Option {
	return []hamt.Option{
		hamt.UseTreeBitWidth(bitwidth),
		hamt.UseHashFunction(func(input []byte) []byte {
			res := sha256.Sum256(input)
			return res[:]
		}),
	}
}

// Map stores key-value pairs in a HAMT.
type Map struct {
	lastCid cid.Cid
	root    *hamt.Node
	store   Store
}

// AsMap interprets a store as a HAMT-based map with root `r`.
// The HAMT is interpreted with the given bitwidth.
func AsMap(s Store, root cid.Cid, bitwidth int) (*Map, error) {
	nd, err := hamt.LoadNode(s.Context(), s, root, HamtOptions(bitwidth)...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load hamt node %v", root)
	}

	return &Map{
		lastCid: root,
		root:    nd,
		store:   s,
	}, nil
}

// Creates a new map backed by an empty HAMT.
func MakeEmptyMap(s Store, bitwidth int) (*Map, error) {
	nd, err := hamt.NewNode(s, HamtOptions(bitwidth)...)
	if err != nil {
		return nil, err
	}
	return &Map{
		lastCid: cid.Undef,
		root:    nd,
		store:   s,
	}, nil
}

// Creates and stores a new empty map, returning its CID.
func StoreEmptyMap(s Store, bitwidth int) (cid.Cid, error) {
	m, err := MakeEmptyMap(s, bitwidth)
	if err != nil {
		return cid.Undef, err
	}
	return m.Root()
}

// Returns the root cid of underlying HAMT.
func (m *Map) Root() (cid.Cid, error) {
	if err := m.root.Flush(m.store.Context()); err != nil {
		return cid.Undef, errors.Wrapf(err, "failed to flush map root %v", m.lastCid)
	}

	c, err := m.store.Put(m.store.Context(), m.root)
	if err != nil {
		return cid.Undef, errors.Wrapf(err, "writing map root object")
	}
	m.lastCid = c

	return c, nil
}

// Put adds value `v` with key `k` to the hamt store.
func (m *Map) Put(k Keyer, v runtime.CBORMarshaler) error {
	if err := m.root.Set(m.store.Context(), k.Key(), v); err != nil {
		return errors.Wrapf(err, "failed to set key %v value %v in node %v", k.Key(), v, m.lastCid)
	}
	return nil
}

// PutIfAbsent adds value `v` with key `k` to the hamt store if not already present.
// Returns whether the value was written.
func (m *Map) PutIfAbsent(k Keyer, v runtime.CBORMarshaler) (bool, error) {
	modified, err := m.root.SetIfAbsent(m.store.Context(), k.Key(), v)
	if err != nil {
		return false, errors.Wrapf(err, "failed to set key %v value %v in node %v", k.Key(), v, m.lastCid)
	}
	return modified, nil
}

// Get retrieves the value at `k` into `out`, if the `k` is present and `out` is non-nil.
// Returns whether the key was found.
func (m *Map) Get(k Keyer, out runtime.CBORUnmarshaler) (bool, error) {
	found, err := m.root.Find(m.store.Context(), k.Key(), out)
	if err != nil {
		return false, errors.Wrapf(err, "failed to get key %v in node %v", k.Key(), m.lastCid)
	}
	return found, nil
}

// Has checks for the existence of a key without deserializing its value.
func (m *Map) Has(k Keyer) (bool, error) {
	return m.Get(k, nil)
}

// Removes the value at `k` from the hamt store, if it exists.
// Returns whether the key was previously present.
func (m *Map) TryDelete(k Keyer) (bool, error) {
	found, err := m.root.Delete(m.store.Context(), k.Key())
	if err != nil {
		return false, errors.Wrapf(err, "failed to delete key %v in node %v", k.Key(), m.root)
	}
	return found, nil
}

// Removes the value at `k` from the hamt store, expecting it to exist.
func (m *Map) Delete(k Keyer) error {
	if found, err := m.TryDelete(k); err != nil {
		return err
	} else if !found {
		return errors.Errorf("failed to find key %v to delete", k.Key())
	}
	return nil
}

// Iterates all entries in the map, deserializing each value in turn into `out` and then
// calling a function with the corresponding key.
// Iteration halts if the function returns an error.
// If the output parameter is nil, deserialization is skipped.
func (m *Map) ForEach(out runtime.CBORUnmarshaler, fn func(key string) error) error {
	return m.root.ForEach(m.store.Context(), func(k string, val *cbg.Deferred) error {
		if out != nil {
			// Why doesn't hamt.ForEach() just return the value as bytes?
			err := out.UnmarshalCBOR(bytes.NewReader(val.Raw))
			if err != nil {
				return err
			}
		}
		return fn(k)
	})
}

// Collects all the keys from the map into a slice of strings.
func (m *Map) CollectKeys() (out []string, err error) {
	err = m.ForEach(nil, func(key string) error {
		out = append(out, key)
		return nil
	})
	return
}
