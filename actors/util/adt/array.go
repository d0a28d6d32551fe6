package adt

import (
	"bytes"

	amt "github.com/filecoin-project/go-amt-ipld/v4"
	cid "github.com/ipfs/go-cid"
	errors "github.com/pkg/errors"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/vesting-actors/actors/runtime"
)

// DefaultAmtBitwidth is the default bitwidth for AMTs in actor state.
const DefaultAmtBitwidth = 3

// Array stores a sparse sequence of values in an AMT.
type Array struct {
	root  *amt.Root
	store Store
}

// AsArray interprets a store as an AMT-based array with root `r`.
func AsArray(s Store, r cid.Cid, bitwidth int) (*Array, error) {
	root, err := amt.LoadAMT(s.Context(), s, r, amt.UseTreeBitWidth(uint(bitwidth)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load array root %v", r)
	}

	return &Array{
		root:  root,
		store: s,
	}, nil
}

// Creates a new array backed by an empty AMT.
func MakeEmptyArray(s Store, bitwidth int) (*Array, error) {
	root, err := amt.NewAMT(s, amt.UseTreeBitWidth(uint(bitwidth)))
	if err != nil {
		return nil, err
	}
	return &Array{
		root:  root,
		store: s,
	}, nil
}

// Writes a new empty array to the store, returning its CID.
func StoreEmptyArray(s Store, bitwidth int) (cid.Cid, error) {
	arr, err := MakeEmptyArray(s, bitwidth)
	if err != nil {
		return cid.Undef, err
	}
	return arr.Root()
}

// Returns the root CID of the underlying AMT.
func (a *Array) Root() (cid.Cid, error) {
	return a.root.Flush(a.store.Context())
}

// Appends a value to the end of the array. Assumes continuous array.
// If the array isn't continuous use Set and a separate counter
func (a *Array) AppendContinuous(value runtime.CBORMarshaler) error {
	if err := a.root.Set(a.store.Context(), a.root.Len(), value); err != nil {
		return errors.Wrapf(err, "array append failed to set index %v value %v", a.root.Len(), value)
	}
	return nil
}

func (a *Array) Set(i uint64, value runtime.CBORMarshaler) error {
	if err := a.root.Set(a.store.Context(), i, value); err != nil {
		return errors.Wrapf(err, "array set failed to set index %v value %v", i, value)
	}
	return nil
}

// Get retrieves array element into the 'out' unmarshaler, returning a boolean
// indicating whether the element was found in the array
func (a *Array) Get(k uint64, out runtime.CBORUnmarshaler) (bool, error) {
	found, err := a.root.Get(a.store.Context(), k, out)
	if err != nil {
		return false, errors.Wrapf(err, "failed to get index %v", k)
	}
	return found, nil
}

// Returns the number of elements in the array.
func (a *Array) Length() uint64 {
	return a.root.Len()
}

// Iterates all entries in the array, deserializing each value in turn into `out` and then calling a function.
// Iteration halts if the function returns an error.
// If the output parameter is nil, deserialization is skipped.
func (a *Array) ForEach(out runtime.CBORUnmarshaler, fn func(i int64) error) error {
	return a.root.ForEach(a.store.Context(), func(k uint64, val *cbg.Deferred) error {
		if out != nil {
			// Why doesn't amt.ForEach() just return the value as bytes?
			if err := out.UnmarshalCBOR(bytes.NewReader(val.Raw)); err != nil {
				return err
			}
		}
		return fn(int64(k))
	})
}
