// +build tools

// Package tools pins the linters run over the repository, including the check that map iteration,
// whose order is random, never feeds actor state.
package tools

import (
	_ "github.com/Kubuxu/go-no-map-range"
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
)
