package kebab

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// IndexFileExtension is the filename suffix the original tool used for a
// serialised index. Carried forward for callers that want to name files
// the way it did; Save/Load themselves are extension-agnostic.
const IndexFileExtension = ".kbb"

// KmerMode controls which strand(s) of a k-mer enter the filter at build
// time and which are probed at scan time. Ordinals are fixed by the §6
// on-disk format and must never be renumbered.
type KmerMode uint32

const (
	KmerModeBoth      KmerMode = 0
	KmerModeCanonical KmerMode = 1
	KmerModeForward   KmerMode = 2
)

func (m KmerMode) valid() bool {
	return m == KmerModeBoth || m == KmerModeCanonical || m == KmerModeForward
}

// buildUsesRC reports whether add_sequence must track the
// reverse-complement hash for this mode.
func (m KmerMode) buildUsesRC() bool {
	return m == KmerModeBoth || m == KmerModeCanonical
}

// scanUsesCanonical reports whether scan_read probes the canonical
// (min of forward/rc) hash instead of the plain forward hash.
func (m KmerMode) scanUsesCanonical() bool {
	return m == KmerModeCanonical
}

func (m FilterSizeMode) valid() bool {
	return m == FilterSizeExact || m == FilterSizeNextPowerOfTwo || m == FilterSizePreviousPowerOfTwo
}

// Index owns one Bloom filter plus the rolling-hash configuration
// (k-mer length and strand mode) used to populate and query it. Reads
// passed to AddSequence and ScanRead are borrowed for the call only.
type Index struct {
	k        uint64
	mode     KmerMode
	sizeMode FilterSizeMode
	filter   *Filter
}

// NewIndexFromParams constructs an index ready for AddSequence, sizing
// its filter directly from (n, p, kUser). n must be known up front; when
// the caller doesn't have an exact k-mer count, use IndexBuilder instead,
// which estimates n via HyperLogLog before allocating the filter.
func NewIndexFromParams(k, n uint64, p float64, kUser uint32, mode KmerMode, sizeMode FilterSizeMode) (*Index, error) {
	if k == 0 {
		return nil, fmt.Errorf("%w: k must be >= 1", ErrInvalidParameter)
	}
	if !mode.valid() {
		return nil, fmt.Errorf("%w: invalid kmer mode %d", ErrInvalidParameter, mode)
	}
	if !sizeMode.valid() {
		return nil, fmt.Errorf("%w: invalid filter size mode %d", ErrInvalidParameter, sizeMode)
	}

	filter, err := NewFilter(n, p, kUser, sizeMode)
	if err != nil {
		return nil, err
	}

	return &Index{k: k, mode: mode, sizeMode: sizeMode, filter: filter}, nil
}

// K returns the configured k-mer length.
func (idx *Index) K() uint64 { return idx.k }

// Mode returns the configured k-mer strand mode.
func (idx *Index) Mode() KmerMode { return idx.mode }

// Filter returns the index's underlying Bloom filter.
func (idx *Index) Filter() *Filter { return idx.filter }

// Stats returns a human-readable summary combining k and the filter's
// own Stats(), restoring the original tool's get_stats() report.
func (idx *Index) Stats() string {
	return fmt.Sprintf("\tk: %d\n%s", idx.k, idx.filter.Stats())
}

// AddSequence rolls the hash over seq and inserts each window's hash(es)
// into the filter per the configured KmerMode. len(seq) must be >= k.
// Safe to call concurrently with other AddSequence calls on the same
// index only if the caller used NewIndexFromParams/IndexBuilder with an
// externally-serialised writer discipline; for concurrent building use
// an Orchestrator, which calls the atomic insert path internally.
func (idx *Index) AddSequence(seq []byte) error {
	return idx.addSequence(seq, idx.filter.Add)
}

func (idx *Index) addSequenceConcurrent(seq []byte) error {
	return idx.addSequence(seq, idx.filter.AddConcurrent)
}

func (idx *Index) addSequence(seq []byte, insert func(uint64)) error {
	if uint64(len(seq)) < idx.k {
		return fmt.Errorf("%w: sequence length %d shorter than k=%d", ErrInvalidParameter, len(seq), idx.k)
	}

	h := newNtHash(idx.k, idx.mode.buildUsesRC())
	h.setSequence(seq)
	numWindows := uint64(len(seq)) - idx.k + 1

	for i := uint64(0); i < numWindows; i++ {
		switch idx.mode {
		case KmerModeForward:
			insert(h.hashFwd())
		case KmerModeBoth:
			insert(h.hashFwd())
			insert(h.hashRC())
		case KmerModeCanonical:
			insert(h.canonical())
		}
		if i+1 < numWindows {
			h.unsafeRoll()
		}
	}
	return nil
}

// prefetchDistance is the tuning constant bounding how many bit-probes
// the scan's prefetch ring keeps in flight; on the order of tens of
// cache lines' worth of lookahead.
const prefetchDistance = 256

func prefetchRingSize(k uint32) int {
	d := int(prefetchDistance / uint64(k))
	if d < 1 {
		d = 1
	}
	return d
}

// ScanRead converts a read into the maximal fragments whose every k-mer
// tested present in the filter. minMemLength must be >= k for the direct
// path or > k for the prefetch path; prefetch selects the split
// Prefetch/Check pipeline, which returns an identical fragment list to
// the direct path, just computed with memory-latency-hiding.
func (idx *Index) ScanRead(seq []byte, minMemLength uint64, removeOverlaps, prefetch bool) ([]Fragment, error) {
	if prefetch {
		if minMemLength <= idx.k {
			return nil, fmt.Errorf("%w: min_mem_length (%d) must be > k (%d) for the prefetch path", ErrInvalidParameter, minMemLength, idx.k)
		}
		return idx.scanReadPrefetch(seq, minMemLength, removeOverlaps)
	}
	if minMemLength < idx.k {
		return nil, fmt.Errorf("%w: min_mem_length (%d) must be >= k (%d)", ErrInvalidParameter, minMemLength, idx.k)
	}
	return idx.scanReadDirect(seq, minMemLength, removeOverlaps)
}

// fragmentAccumulator carries the OPEN/HIT/CLOSE bookkeeping shared by
// the direct and prefetch scan paths, so both reach identical results
// through the identical update rule.
type fragmentAccumulator struct {
	start          uint64
	lastFragEnd    uint64
	removeOverlaps bool
	fragments      []Fragment
}

// close ends the current open range at exclusive end fragEnd, pushing or
// merging a fragment iff it meets min_mem_length.
func (a *fragmentAccumulator) close(fragEnd, minMemLength uint64) {
	if fragEnd-a.start < minMemLength {
		return
	}
	if a.removeOverlaps && a.start < a.lastFragEnd {
		a.fragments[len(a.fragments)-1].Length += fragEnd - a.lastFragEnd
	} else {
		a.fragments = append(a.fragments, Fragment{Start: a.start, Length: fragEnd - a.start})
	}
	a.lastFragEnd = fragEnd
}

// miss reacts to a k-mer absent from the filter: close the current range
// at the k-mer's last-base position, then reopen just past the missing
// k-mer's first base.
func (a *fragmentAccumulator) miss(pos, k, minMemLength uint64) {
	a.close(pos, minMemLength)
	a.start = pos + 2 - k
}

func (idx *Index) scanReadDirect(seq []byte, minMemLength uint64, removeOverlaps bool) ([]Fragment, error) {
	k := idx.k
	useRC := idx.mode.scanUsesCanonical()
	acc := &fragmentAccumulator{removeOverlaps: removeOverlaps}

	n := uint64(len(seq))
	if n >= k {
		h := newNtHash(k, useRC)
		h.setSequence(seq)
		numWindows := n - k + 1

		for i := uint64(0); i < numWindows; i++ {
			pos := k - 1 + i
			hashVal := h.hashFwd()
			if useRC {
				hashVal = h.canonical()
			}
			if !idx.filter.Contains(hashVal) {
				acc.miss(pos, k, minMemLength)
			}
			if i+1 < numWindows {
				h.unsafeRoll()
			}
		}
	}
	acc.close(n, minMemLength)
	return acc.fragments, nil
}

func (idx *Index) scanReadPrefetch(seq []byte, minMemLength uint64, removeOverlaps bool) ([]Fragment, error) {
	k := idx.k
	useRC := idx.mode.scanUsesCanonical()
	acc := &fragmentAccumulator{removeOverlaps: removeOverlaps}

	n := uint64(len(seq))
	if n < k {
		acc.close(n, minMemLength)
		return acc.fragments, nil
	}

	h := newNtHash(k, useRC)
	h.setSequence(seq)
	numWindows := n - k + 1

	hashAt := func() uint64 {
		if useRC {
			return h.canonical()
		}
		return h.hashFwd()
	}

	d := prefetchRingSize(idx.filter.K())
	if uint64(d) > numWindows {
		d = int(numWindows)
	}

	type ticket struct {
		pos   uint64
		probe Probe
	}
	ring := make([]ticket, d)
	head, filled := 0, 0

	push := func(t ticket) {
		ring[(head+filled)%d] = t
		filled++
	}
	popOldest := func() ticket {
		t := ring[head]
		head = (head + 1) % d
		filled--
		return t
	}
	consume := func(t ticket) {
		if !idx.filter.Check(t.probe) {
			acc.miss(t.pos, k, minMemLength)
		}
	}

	for i := uint64(0); i < uint64(d); i++ {
		pos := k - 1 + i
		push(ticket{pos: pos, probe: idx.filter.Prefetch(hashAt())})
		if i+1 < numWindows {
			h.unsafeRoll()
		}
	}

	for i := uint64(d); i < numWindows; i++ {
		pos := k - 1 + i
		newTicket := ticket{pos: pos, probe: idx.filter.Prefetch(hashAt())}
		oldest := popOldest()
		push(newTicket)
		consume(oldest)
		if i+1 < numWindows {
			h.unsafeRoll()
		}
	}

	for filled > 0 {
		consume(popOldest())
	}

	acc.close(n, minMemLength)
	return acc.fragments, nil
}

// Save writes the index in the §6 on-disk layout: filter_size_mode, k,
// kmer_mode, then the filter body.
func (idx *Index) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(idx.sizeMode))
	if _, err := bw.Write(u32[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], idx.k)
	if _, err := bw.Write(u64[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	binary.LittleEndian.PutUint32(u32[:], uint32(idx.mode))
	if _, err := bw.Write(u32[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return idx.filter.Save(w)
}

// LoadIndex reads an index previously written by Save.
func LoadIndex(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)

	var u32 [4]byte
	if _, err := io.ReadFull(br, u32[:]); err != nil {
		return nil, fmt.Errorf("%w: reading filter_size_mode: %v", ErrInvalidIndexFile, err)
	}
	sizeMode := FilterSizeMode(binary.LittleEndian.Uint32(u32[:]))
	if !sizeMode.valid() {
		return nil, fmt.Errorf("%w: unknown filter_size_mode ordinal %d", ErrInvalidIndexFile, sizeMode)
	}

	var u64 [8]byte
	if _, err := io.ReadFull(br, u64[:]); err != nil {
		return nil, fmt.Errorf("%w: reading k: %v", ErrInvalidIndexFile, err)
	}
	k := binary.LittleEndian.Uint64(u64[:])
	if k == 0 {
		return nil, fmt.Errorf("%w: k must be nonzero", ErrInvalidIndexFile)
	}

	if _, err := io.ReadFull(br, u32[:]); err != nil {
		return nil, fmt.Errorf("%w: reading kmer_mode: %v", ErrInvalidIndexFile, err)
	}
	mode := KmerMode(binary.LittleEndian.Uint32(u32[:]))
	if !mode.valid() {
		return nil, fmt.Errorf("%w: unknown kmer_mode ordinal %d", ErrInvalidIndexFile, mode)
	}

	filter, err := loadFilter(br, sizeMode)
	if err != nil {
		return nil, err
	}

	return &Index{k: k, mode: mode, sizeMode: sizeMode, filter: filter}, nil
}
