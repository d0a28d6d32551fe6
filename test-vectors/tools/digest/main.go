package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	sha256 "github.com/minio/sha256-simd"
	"golang.org/x/xerrors"
)

// Prints a digest of the golden test vectors under a directory, keyed by relative path and content.
// The digest changes whenever a vector is added, removed or regenerated.
func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Expected exactly one argument, path of directory to digest")
		os.Exit(1)
	}
	h, err := digest(os.Args[1])
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("- %x\n", h)
}

func digest(rootDir string) ([]byte, error) {
	h := sha256.New()
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".golden" {
			return nil
		}
		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return xerrors.Errorf("failed to read vector %s: %w", rel, err)
		}
		_, _ = h.Write([]byte(filepath.ToSlash(rel)))
		_, _ = h.Write(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
