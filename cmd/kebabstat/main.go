// Command kebabstat loads a serialized index and prints its configuration
// and Bloom filter load statistics. It never parses FASTA or constructs an
// index itself; those remain the embedding application's concern.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kebab-bio/kebab"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <index-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0)); err != nil {
		log.Fatalf("kebabstat: %v", err)
	}
}

func run(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	idx, err := kebab.LoadIndex(f)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	fmt.Printf("%s:\n%s\n", path, idx.Stats())
	return nil
}
