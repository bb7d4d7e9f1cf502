// Command isrvet reports interrupt handlers that log, allocate or block, and
// direct calls to interrupt handlers from ordinary code.
//
//	go run omibyte.io/tasker/cmd/isrvet ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"omibyte.io/tasker/internal/isrcheck"
)

func main() {
	singlechecker.Main(isrcheck.Analyzer)
}
