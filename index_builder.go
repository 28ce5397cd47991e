package kebab

import "fmt"

// IndexBuilder defers Bloom filter allocation until the planned k-mer
// count is known, resolving the "n = 0 signals estimate" construction
// rule: Observe every build sequence first (accumulating a HyperLogLog
// estimate when expectedKmers is 0), then Build to get a ready-to-use
// Index whose filter is correctly sized before a single k-mer is
// inserted into it.
type IndexBuilder struct {
	k        uint64
	p        float64
	kUser    uint32
	mode     KmerMode
	sizeMode FilterSizeMode

	explicitN uint64
	hll       *hyperLogLog
}

// NewIndexBuilder starts a build. When expectedKmers is 0, the k-mer
// count is estimated from the sequences passed to Observe via a
// HyperLogLog estimator (§4.3); otherwise expectedKmers is used as-is
// and Observe becomes a no-op.
func NewIndexBuilder(k, expectedKmers uint64, p float64, kUser uint32, mode KmerMode, sizeMode FilterSizeMode) (*IndexBuilder, error) {
	if k == 0 {
		return nil, fmt.Errorf("%w: k must be >= 1", ErrInvalidParameter)
	}
	if !mode.valid() {
		return nil, fmt.Errorf("%w: invalid kmer mode %d", ErrInvalidParameter, mode)
	}
	if !sizeMode.valid() {
		return nil, fmt.Errorf("%w: invalid filter size mode %d", ErrInvalidParameter, sizeMode)
	}

	b := &IndexBuilder{k: k, p: p, kUser: kUser, mode: mode, sizeMode: sizeMode, explicitN: expectedKmers}
	if expectedKmers == 0 {
		b.hll = newHyperLogLog()
	}
	return b, nil
}

// Observe feeds a build sequence into the cardinality estimator. A no-op
// when the builder was given an explicit expectedKmers count.
func (b *IndexBuilder) Observe(seq []byte) {
	if b.hll == nil {
		return
	}
	if uint64(len(seq)) < b.k {
		return
	}

	h := newNtHash(b.k, b.mode.buildUsesRC())
	h.setSequence(seq)
	numWindows := uint64(len(seq)) - b.k + 1

	for i := uint64(0); i < numWindows; i++ {
		switch b.mode {
		case KmerModeForward:
			b.hll.add(murmurMix64(h.hashFwd()))
		case KmerModeBoth:
			// addSequence inserts both strands' hashes as distinct filter
			// elements for this mode (index.go), so the estimator must
			// observe both too, or EstimatedCount undercounts by ~half.
			b.hll.add(murmurMix64(h.hashFwd()))
			b.hll.add(murmurMix64(h.hashRC()))
		case KmerModeCanonical:
			b.hll.add(murmurMix64(h.canonical()))
		}
		if i+1 < numWindows {
			h.unsafeRoll()
		}
	}
}

// EstimatedCount reports the current cardinality estimate. Only
// meaningful once every build sequence has been Observe'd; returns the
// explicit count unchanged when one was supplied.
func (b *IndexBuilder) EstimatedCount() uint64 {
	if b.hll == nil {
		return b.explicitN
	}
	return b.hll.reportCount()
}

// Build allocates the filter sized from the (explicit or estimated)
// k-mer count and returns an Index ready for AddSequence.
func (b *IndexBuilder) Build() (*Index, error) {
	n := b.EstimatedCount()
	return NewIndexFromParams(b.k, n, b.p, b.kUser, b.mode, b.sizeMode)
}
