// mkfixture writes the demo costing workbook used by the quick start and the
// end-to-end tests: reference codes, one model and one run.
// Usage: go run ./cmd/mkfixture --out testdata/demo.xlsx
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gyeh/clincost/internal/workbook"
)

func main() {
	out := flag.String("out", "testdata/demo.xlsx", "output workbook")
	checkOnly := flag.Bool("check", false, "only read the workbook back and print sheet sizes")
	flag.Parse()

	if !*checkOnly {
		if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
			os.Exit(1)
		}
		if err := workbook.Write(*out, workbook.Sample()); err != nil {
			fmt.Fprintf(os.Stderr, "write workbook: %v\n", err)
			os.Exit(1)
		}
	}

	sheets, err := workbook.Read(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read workbook: %v\n", err)
		os.Exit(1)
	}
	total := 0
	for _, s := range sheets {
		scope := "-"
		if t, ok := workbook.TableByName(s.Name); ok {
			scope = string(t.Scope)
		}
		fmt.Printf("  %-32s %-8s %4d rows\n", s.Name, scope, len(s.Rows))
		total += len(s.Rows)
	}
	fmt.Printf("\n%s: %d sheets, %d rows\n", *out, len(sheets), total)
}
