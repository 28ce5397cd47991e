package kebab_test

import (
	"bytes"
	"fmt"

	"github.com/kebab-bio/kebab"
)

// Example demonstrates building an index from a reference with a known
// k-mer count and scanning a read against it.
func Example() {
	const k = 16
	reference := []byte("ACGTACGTACGTACGTACGTACGTACGTACGT")

	numKmers := uint64(len(reference)) - k + 1
	idx, err := kebab.NewIndexFromParams(k, numKmers, 0.01, 0, kebab.KmerModeCanonical, kebab.FilterSizeNextPowerOfTwo)
	if err != nil {
		panic(err)
	}
	if err := idx.AddSequence(reference); err != nil {
		panic(err)
	}

	fragments, err := idx.ScanRead(reference, k, true, false)
	if err != nil {
		panic(err)
	}

	fmt.Println(len(fragments) > 0)
	// Output:
	// true
}

// Example_builder demonstrates IndexBuilder, which estimates the planned
// k-mer count from the build sequences themselves instead of requiring the
// caller to supply one up front.
func Example_builder() {
	const k = 16
	sequences := [][]byte{
		[]byte("ACGTACGTACGTACGTACGTACGTACGTACGT"),
		[]byte("TTTTGGGGCCCCAAAATTTTGGGGCCCCAAAA"),
	}

	b, err := kebab.NewIndexBuilder(k, 0, 0.01, 0, kebab.KmerModeCanonical, kebab.FilterSizeNextPowerOfTwo)
	if err != nil {
		panic(err)
	}
	for _, seq := range sequences {
		b.Observe(seq)
	}

	idx, err := b.Build()
	if err != nil {
		panic(err)
	}
	for _, seq := range sequences {
		if err := idx.AddSequence(seq); err != nil {
			panic(err)
		}
	}

	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		panic(err)
	}

	loaded, err := kebab.LoadIndex(&buf)
	if err != nil {
		panic(err)
	}

	fmt.Println(loaded.K() == k)
	// Output:
	// true
}
