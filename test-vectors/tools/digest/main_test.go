package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest(t *testing.T) {
	dir, err := ioutil.TempDir("", "vectors")
	require.NoError(t, err)
	defer os.RemoveAll(dir) // nolint: errcheck

	write := func(name, content string) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	}

	write("vesting/testdata/TestA.golden", "a")
	first, err := digest(dir)
	require.NoError(t, err)
	assert.Len(t, first, 32)

	// Files other than vectors are ignored.
	write("vesting/testdata/notes.txt", "ignored")
	same, err := digest(dir)
	require.NoError(t, err)
	assert.Equal(t, first, same)

	write("vesting/testdata/TestA.golden", "b")
	changed, err := digest(dir)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)

	// The repository's own vectors digest without error.
	_, err = digest("../../../actors")
	require.NoError(t, err)
}
