package kebab

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"unsafe"
)

// reuseFirstHash fixes the "first-seed elision" open question: the first
// of the K probes reduces the raw input directly instead of mixing it
// through mix64Seeds[0] first. add and contains must agree on this choice
// or every lookup becomes a correctness bug, so it is a package constant,
// never a per-filter option.
const reuseFirstHash = true

// FilterSizeMode controls how the computed optimal bit count is rounded
// before the filter is allocated. Rounded modes enable the cheaper shift
// reducer; EXACT keeps the raw bit count and pays for a modulo reducer.
type FilterSizeMode uint32

const (
	FilterSizeExact FilterSizeMode = iota
	FilterSizeNextPowerOfTwo
	FilterSizePreviousPowerOfTwo
)

// Filter is a bit-array Bloom filter over 64-bit values. It is not safe
// for concurrent Add from multiple goroutines; use AddConcurrent during a
// parallel build phase instead. Contains (and the split Prefetch/Check
// pair) is always safe to call concurrently once no more inserts occur.
type Filter struct {
	bits       []uint64
	numBits    uint64
	numSetBits uint64
	k          uint32
	hash       hashKind
	reducer    reducerKind
	log2m      uint
	plannedN   uint64
	targetFP   float64
}

// NewFilter constructs a filter sized for n planned elements at false
// positive rate p. kUser, when nonzero, fixes the hash count instead of
// deriving the theoretical optimum; sizeMode controls bit-count rounding
// (and therefore the reducer). The resulting filter always uses the
// Multiply hash so that it round-trips through Save/Load, which does not
// persist hash-strategy identity.
func NewFilter(n uint64, p float64, kUser uint32, sizeMode FilterSizeMode) (*Filter, error) {
	return newFilter(n, p, kUser, sizeMode, hashMultiply)
}

// NewFilterWithHash is like NewFilter but lets the caller opt into an
// alternate hash strategy (Murmur or XXH3) for in-memory-only use. Filters
// built with a non-Multiply hash must not be persisted: Save rejects them,
// since the file format ties the hash choice to sizeMode alone.
func NewFilterWithHash(n uint64, p float64, kUser uint32, sizeMode FilterSizeMode, hash hashKind) (*Filter, error) {
	return newFilter(n, p, kUser, sizeMode, hash)
}

func newFilter(n uint64, p float64, kUser uint32, sizeMode FilterSizeMode, hash hashKind) (*Filter, error) {
	if p <= 0 || p >= 1 {
		return nil, fmt.Errorf("%w: false positive rate %v must be in (0,1)", ErrInvalidParameter, p)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: planned element count must be > 0", ErrInvalidParameter)
	}

	var k uint64
	var m uint64
	if kUser == 0 {
		m = optimalBitsFree(n, p)
	} else {
		k = uint64(kUser)
		m = optimalBitsWithK(n, p, k)
	}

	reducer := reducerShift
	switch sizeMode {
	case FilterSizeNextPowerOfTwo:
		m = nextPowerOfTwo(m)
	case FilterSizePreviousPowerOfTwo:
		m = previousPowerOfTwo(m)
	default:
		reducer = reducerMod
	}
	if m == 0 {
		m = 1
	}

	// optimal_hashes is computed against the filter's real, already-rounded
	// bit count, matching the original's call order: bits is fixed and
	// rounded first, only then is num_hashes derived from it.
	if kUser == 0 {
		k = optimalHashCount(n, p, m)
	}

	if k == 0 || k >= uint64(maxHashCount) {
		return nil, fmt.Errorf("%w: derived hash count %d must be in [1,%d)", ErrInvalidParameter, k, maxHashCount)
	}

	f := &Filter{
		bits:     make([]uint64, numWords(m)),
		numBits:  m,
		k:        uint32(k),
		hash:     hash,
		reducer:  reducer,
		plannedN: n,
		targetFP: p,
	}
	if reducer == reducerShift {
		if !isPowerOfTwo(m) {
			return nil, fmt.Errorf("%w: shift reducer requires power-of-two m, got %d", ErrInvalidParameter, m)
		}
		f.log2m = log2Floor(m)
	}
	return f, nil
}

func numWords(m uint64) uint64 {
	return (m + 63) / 64
}

// K returns the number of hash functions used per Add/Contains call.
func (f *Filter) K() uint32 { return f.k }

// NumBits returns the bit-array capacity m.
func (f *Filter) NumBits() uint64 { return f.numBits }

// NumSetBits returns the number of bits currently set.
func (f *Filter) NumSetBits() uint64 { return f.numSetBits }

// bitPosition returns the reduced bit index for the i-th of K probes.
func (f *Filter) bitPosition(v uint64, i uint32) uint64 {
	if reuseFirstHash && i == 0 {
		return reduce(f.reducer, v, f.numBits, f.log2m)
	}
	return reduce(f.reducer, mix64(f.hash, v, mix64Seeds[i]), f.numBits, f.log2m)
}

// Add inserts v into the filter, setting its K bit positions.
func (f *Filter) Add(v uint64) {
	for i := uint32(0); i < f.k; i++ {
		f.setBit(f.bitPosition(v, i))
	}
}

func (f *Filter) setBit(pos uint64) {
	word := pos >> 6
	mask := uint64(1) << (pos & 63)
	if f.bits[word]&mask == 0 {
		f.bits[word] |= mask
		f.numSetBits++
	}
}

// AddConcurrent is Add's thread-safe counterpart, for use while multiple
// worker goroutines populate the same filter during a build phase. Bit
// sets are lock-free atomic word-level ORs; num_set_bits is only
// incremented on the goroutine that observes the "bit was newly set"
// transition, so racing inserts of the same value never double-count.
func (f *Filter) AddConcurrent(v uint64) {
	for i := uint32(0); i < f.k; i++ {
		pos := f.bitPosition(v, i)
		word := pos >> 6
		mask := uint64(1) << (pos & 63)
		wordPtr := (*atomic.Uint64)(unsafe.Pointer(&f.bits[word]))
		old := wordPtr.Or(mask)
		if old&mask == 0 {
			atomic.AddUint64(&f.numSetBits, 1)
		}
	}
}

// Contains reports whether all K bit positions for v are set. False
// positives are possible; false negatives never are.
func (f *Filter) Contains(v uint64) bool {
	for i := uint32(0); i < f.k; i++ {
		pos := f.bitPosition(v, i)
		mask := uint64(1) << (pos & 63)
		if f.bits[pos>>6]&mask == 0 {
			return false
		}
	}
	return true
}

// Probe is the result of Prefetch: the K bit positions for a value,
// together with the words that held them at prefetch time. Go exposes no
// CPU prefetch intrinsic, so Prefetch's latency-hiding is best-effort: it
// reads the words early so Check, called later, does no memory access at
// all — just register-resident bit tests.
type Probe struct {
	positions [32]uint64
	words     [32]uint64
	k         uint32
}

// Prefetch computes v's K bit positions and eagerly reads their backing
// words. Pair with a bounded ring of outstanding probes and call Check on
// them in FIFO order to keep several loads in flight at once.
func (f *Filter) Prefetch(v uint64) Probe {
	var pr Probe
	pr.k = f.k
	for i := uint32(0); i < f.k; i++ {
		pos := f.bitPosition(v, i)
		pr.positions[i] = pos
		pr.words[i] = f.bits[pos>>6]
	}
	return pr
}

// Check completes a Prefetch, testing the previously read words against
// their bit masks.
func (f *Filter) Check(pr Probe) bool {
	for i := uint32(0); i < pr.k; i++ {
		mask := uint64(1) << (pr.positions[i] & 63)
		if pr.words[i]&mask == 0 {
			return false
		}
	}
	return true
}

// FalsePositiveRate reports the observed false-positive rate implied by
// the current load: (numSetBits/m)^K.
func (f *Filter) FalsePositiveRate() float64 {
	load := float64(f.numSetBits) / float64(f.numBits)
	return math.Pow(load, float64(f.k))
}

// Stats returns a human-readable summary of the filter's configuration
// and current load, restoring the field set the original tool's
// get_stats() reported.
func (f *Filter) Stats() string {
	load := float64(f.numSetBits) / float64(f.numBits)
	return fmt.Sprintf(
		"\tDesired FP Rate: %v\n"+
			"\tObserved FP Rate: %v\n"+
			"\t# Hashes: %d\n"+
			"\t# Set Bits: %d\n"+
			"\t# Bits: %d\n"+
			"\tLoad: %v",
		f.targetFP, f.FalsePositiveRate(), f.k, f.numSetBits, f.numBits, load)
}

// Save writes the filter in the little-endian layout from §4.2: m,
// num_set_bits, the bitmap words, then K. Filters built with a
// non-Multiply hash strategy cannot round-trip through this format (the
// hash choice isn't stored) and are rejected.
func (f *Filter) Save(w io.Writer) error {
	if f.hash != hashMultiply {
		return fmt.Errorf("%w: only Multiply-hash filters can be persisted", ErrInvalidParameter)
	}

	bw := bufio.NewWriter(w)
	var hdr [8]byte

	binary.LittleEndian.PutUint64(hdr[:], f.numBits)
	if _, err := bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	binary.LittleEndian.PutUint64(hdr[:], f.numSetBits)
	if _, err := bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	for _, word := range f.bits {
		binary.LittleEndian.PutUint64(hdr[:], word)
		if _, err := bw.Write(hdr[:]); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	binary.LittleEndian.PutUint64(hdr[:], uint64(f.k))
	if _, err := bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// loadFilter reads a filter body per §4.2's layout. sizeMode determines
// the reducer (and therefore whether m is required to be a power of two);
// it is supplied by the enclosing index header, since the filter body
// itself carries no reducer tag.
func loadFilter(r io.Reader, sizeMode FilterSizeMode) (*Filter, error) {
	br := bufio.NewReader(r)
	var hdr [8]byte

	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: reading m: %v", ErrInvalidIndexFile, err)
	}
	m := binary.LittleEndian.Uint64(hdr[:])
	if m == 0 {
		return nil, fmt.Errorf("%w: m must be nonzero", ErrInvalidIndexFile)
	}

	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: reading num_set_bits: %v", ErrInvalidIndexFile, err)
	}
	numSetBits := binary.LittleEndian.Uint64(hdr[:])

	words := make([]uint64, numWords(m))
	for i := range words {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			return nil, fmt.Errorf("%w: reading word %d: %v", ErrInvalidIndexFile, i, err)
		}
		words[i] = binary.LittleEndian.Uint64(hdr[:])
	}

	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: reading K: %v", ErrInvalidIndexFile, err)
	}
	k := binary.LittleEndian.Uint64(hdr[:])
	if k == 0 || k >= uint64(maxHashCount) {
		return nil, fmt.Errorf("%w: hash count %d out of range", ErrInvalidIndexFile, k)
	}

	reducer := reducerShift
	if sizeMode == FilterSizeExact {
		reducer = reducerMod
	}
	if reducer == reducerShift && !isPowerOfTwo(m) {
		return nil, fmt.Errorf("%w: filter_size_mode implies shift reducer but m=%d is not a power of two", ErrInvalidIndexFile, m)
	}

	f := &Filter{
		bits:       words,
		numBits:    m,
		numSetBits: numSetBits,
		k:          uint32(k),
		hash:       hashMultiply,
		reducer:    reducer,
	}
	if reducer == reducerShift {
		f.log2m = log2Floor(m)
	}
	return f, nil
}
