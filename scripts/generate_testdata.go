//go:build ignore

// generate_testdata.go writes large definition files for manual and
// benchmark runs.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	testdata/definitions/small.yaml   (~100 pages)
//	testdata/definitions/medium.yaml  (~1000 pages)
//	testdata/definitions/large.yaml   (~10000 pages)
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/settree/pkg/testutil"
)

type datasetSpec struct {
	name                   string
	groups, depth, breadth int
}

var datasets = []datasetSpec{
	{"small", 4, 2, 4},
	{"medium", 8, 3, 5},
	{"large", 10, 4, 6},
}

func main() {
	outputDir := filepath.Join("testdata", "definitions")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		cfg := testutil.DefaultConfig()
		cfg.Seed = int64(ds.groups*100 + ds.depth*10 + ds.breadth)
		cfg.ProjectEvery = 7

		groups := testutil.New(cfg).Tree(ds.groups, ds.depth, ds.breadth)
		data, err := testutil.ToYAML(groups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", ds.name, err)
			os.Exit(1)
		}

		path := filepath.Join(outputDir, ds.name+".yaml")
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("  Wrote %s (%d groups, %d pages)\n", path, len(groups), testutil.CountPages(groups))
	}
}
