package ipld_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/vesting-actors/actors/util/adt"
	"github.com/filecoin-project/vesting-actors/support/ipld"
)

func TestCarRoundTrip(t *testing.T) {
	ctx := context.Background()
	bs := ipld.NewBlockStoreInMemory()
	store := adt.WrapBlockStore(ctx, bs)

	// A map large enough to need more than one node.
	m, err := adt.MakeEmptyMap(store, 2)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		v := abi.NewTokenAmount(int64(i))
		require.NoError(t, m.Put(abi.IntKey(int64(i)), &v))
	}
	root, err := m.Root()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ipld.ExportCar(&buf, bs, root))

	imported := ipld.NewBlockStoreInMemory()
	roots, err := ipld.ImportCar(&buf, imported)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root, roots[0])
	assert.Greater(t, imported.Len(), 1)

	loaded, err := adt.AsMap(adt.WrapBlockStore(ctx, imported), root, 2)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		var v abi.TokenAmount
		found, err := loaded.Get(abi.IntKey(int64(i)), &v)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, int64(i), v.Int64())
	}
}

func TestExportMissingBlock(t *testing.T) {
	ctx := context.Background()
	bs := ipld.NewBlockStoreInMemory()
	root, err := adt.StoreEmptyMap(adt.WrapBlockStore(ctx, bs), adt.DefaultHamtBitwidth)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = ipld.ExportCar(&buf, ipld.NewBlockStoreInMemory(), root)
	assert.Error(t, err)
}
