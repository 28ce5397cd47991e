package kebab

import (
	"math/bits"
	"sync"
)

// Base ntHash seeds, one per nucleotide. Values match the reference ntHash
// constants so that hashes computed here are interoperable with other
// ntHash-family implementations operating on the same k.
const (
	seedA uint64 = 0x668C9689C1A9287C
	seedC uint64 = 0x3260979910886E71
	seedG uint64 = 0x5BCAA0C13EE6F2BD
	seedT uint64 = 0x93619763BF5F2651
)

// baseSeeds maps a byte to its ntHash seed. Bytes other than
// A/C/G/T/a/c/g/t map to zero and are tolerated silently; a caller that
// needs to reject ambiguity codes must validate the sequence upstream.
var baseSeeds = buildBaseSeeds()

// rcBaseSeeds maps a byte to the seed of its complement, used to compute
// the reverse-complement rolling hash without materializing revcomp(seq).
var rcBaseSeeds = buildRCBaseSeeds()

func buildBaseSeeds() [256]uint64 {
	var t [256]uint64
	t['A'], t['a'] = seedA, seedA
	t['C'], t['c'] = seedC, seedC
	t['G'], t['g'] = seedG, seedG
	t['T'], t['t'] = seedT, seedT
	return t
}

func buildRCBaseSeeds() [256]uint64 {
	var t [256]uint64
	t['A'], t['a'] = seedT, seedT
	t['T'], t['t'] = seedA, seedA
	t['C'], t['c'] = seedG, seedG
	t['G'], t['g'] = seedC, seedC
	return t
}

// rolledTableCache holds, per k, the two 256-entry tables that deliver
// ROL(seed(base), k) / ROL(seed_rc(base), k) in one indirection, used to
// evict the outgoing base in O(1) during a roll. Populated under a
// one-time guard and immutable afterwards; shared by every ntHash
// instance constructed with the same k, across goroutines.
var rolledTableCache = struct {
	mu  sync.Mutex
	fwd map[uint64]*[256]uint64
	rc  map[uint64]*[256]uint64
}{
	fwd: make(map[uint64]*[256]uint64),
	rc:  make(map[uint64]*[256]uint64),
}

func rolledTablesFor(k uint64) (fwd, rc *[256]uint64) {
	rolledTableCache.mu.Lock()
	defer rolledTableCache.mu.Unlock()

	if f, ok := rolledTableCache.fwd[k]; ok {
		return f, rolledTableCache.rc[k]
	}

	var f, r [256]uint64
	for _, b := range []byte{'A', 'C', 'G', 'T'} {
		f[b] = bits.RotateLeft64(baseSeeds[b], int(k))
		r[b] = bits.RotateLeft64(rcBaseSeeds[b], int(k))
	}
	f['a'], f['c'], f['g'], f['t'] = f['A'], f['C'], f['G'], f['T']
	r['a'], r['c'], r['g'], r['t'] = r['A'], r['C'], r['G'], r['T']

	rolledTableCache.fwd[k] = &f
	rolledTableCache.rc[k] = &r
	return &f, &r
}

// ntHash is an O(1)-rolling ntHash-family hasher over a fixed k. Each
// instance is cheap to construct (it only looks up the shared per-k
// rolled-table cache) and is meant to be owned by a single caller for the
// duration of one add/scan pass; it is never shared across goroutines.
type ntHash struct {
	k      uint64
	useRC  bool
	seq    []byte
	pos    uint64
	hFwd   uint64
	hRC    uint64
	rolFwd *[256]uint64
	rolRC  *[256]uint64
}

// newNtHash constructs a hasher for the given k. useRC controls whether the
// reverse-complement hash is tracked; skip it when only the forward hash
// is ever consumed, to save the extra XOR/ROR per roll.
func newNtHash(k uint64, useRC bool) *ntHash {
	fwd, rc := rolledTablesFor(k)
	return &ntHash{k: k, useRC: useRC, rolFwd: fwd, rolRC: rc}
}

// setSequence binds the hasher to seq and computes the initial hash over
// the first k-mer from scratch. If len(seq) < k, the hash is left
// undefined and pos is set to len(seq) so that no roll is ever valid.
func (h *ntHash) setSequence(seq []byte) {
	h.seq = seq
	h.pos = 0
	h.hFwd = 0
	h.hRC = 0

	k := h.k
	n := uint64(len(seq))
	if n < k {
		h.pos = n
		return
	}

	for i := uint64(0); i < k-1; i++ {
		h.hFwd ^= bits.RotateLeft64(baseSeeds[seq[i]], int(k-1-i))
	}
	h.hFwd ^= baseSeeds[seq[k-1]]

	if h.useRC {
		h.hRC ^= rcBaseSeeds[seq[0]]
		for i := uint64(1); i < k; i++ {
			h.hRC ^= bits.RotateLeft64(rcBaseSeeds[seq[i]], int(i))
		}
	}
}

// unsafeRoll advances the window by one position without bounds checking.
// The caller must guarantee pos+k < len(seq) (i.e. another full k-mer
// exists after the roll); call it once per window except the last.
func (h *ntHash) unsafeRoll() {
	out := h.seq[h.pos]
	in := h.seq[h.pos+h.k]

	h.hFwd = bits.RotateLeft64(h.hFwd, 1)
	h.hFwd ^= h.rolFwd[out]
	h.hFwd ^= baseSeeds[in]

	if h.useRC {
		h.hRC ^= rcBaseSeeds[out]
		h.hRC ^= h.rolRC[in]
		h.hRC = bits.RotateLeft64(h.hRC, -1)
	}

	h.pos++
}

// hashFwd returns the forward hash of the current window.
func (h *ntHash) hashFwd() uint64 { return h.hFwd }

// hashRC returns the reverse-complement hash of the current window.
// Only meaningful when the hasher was constructed with useRC = true.
func (h *ntHash) hashRC() uint64 { return h.hRC }

// canonical returns min(hashFwd, hashRC).
func (h *ntHash) canonical() uint64 {
	if h.hRC < h.hFwd {
		return h.hRC
	}
	return h.hFwd
}

// murmurMix64 is the MurmurHash2 64-bit finalizer, used to rehash a
// canonical k-mer hash before registering it with the cardinality
// estimator. Taking min(fwd, rc) biases the distribution of leading zeros
// that HyperLogLog relies on; re-mixing through an independent avalanche
// removes that bias.
func murmurMix64(x uint64) uint64 {
	x ^= x >> 47
	x *= 0xc6a4a7935bd1e995
	x ^= x >> 47
	return x
}
