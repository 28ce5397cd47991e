package kebab

import (
	"encoding/binary"
	"math/bits"

	"github.com/zeebo/xxh3"
)

// hashKind selects the mixing function applied to a 64-bit value before a
// reducer folds the result into [0, m). Multiply is the only hash the
// on-disk format can express (its reducer tied to filterSizeMode); Murmur
// and XXH3 are in-memory-only strategies, and Filter.Save rejects filters
// built with them.
type hashKind uint8

const (
	hashMultiply hashKind = iota
	hashMurmur
	hashXXH3
)

// reducerKind selects how a mixed 64-bit value is folded into a bit index.
// Shift requires a power-of-two m; Mod works for any m but is slower.
type reducerKind uint8

const (
	reducerShift reducerKind = iota
	reducerMod
)

// mix64 seeds is a fixed table of pseudo-random 64-bit seeds. A hash count
// K must be below the size of this table (32), so at most 31 hash
// functions are accepted.
var mix64Seeds = [32]uint64{
	0x153C67147CEBD9C1, 0xE9E9221977E2486E,
	0xBD2A5DE364F86CEC, 0xF53E63242C7C96CA,
	0xEA71F713607B8025, 0xDA1DC2E81860AC93,
	0x700FC578B9B89EFC, 0x7ED09A9433D0F542,
	0xED43BDEDBCF69432, 0x1D322B028A861DAA,
	0x6E8CDB8F04EE5FFD, 0xEC53221EFD3A5C53,
	0x01EE14F09892D967, 0xD6382ACCCBCF0420,
	0xD448F78598D09FBE, 0x922AA2623D2BF77A,
	0x4AF98D70BD02F4D9, 0xBE9A532696D539D9,
	0x57CB1CF8FA6F105D, 0x4347990C105CF57C,
	0xD5E6B9B31C51D5D6, 0x2196C4CF3D467371,
	0x78BD99C62BA864CD, 0x0B747BD60B9F2FB4,
	0xE636A63B15DC2C60, 0xE3D4C1379D7C2FF0,
	0x2B5C7FAF45C1B370, 0xFE0247B305095328,
	0xE4F3205AADABEA31, 0xD631A450CF4BA7BA,
	0x7E0034EEC6C9E610, 0xCAF71C56BB5D4B4D,
}

const maxHashCount = uint32(len(mix64Seeds))

// mix64 applies the hash function named by kind to v with the given seed,
// returning an avalanched 64-bit value ready for a reducer. It never
// itself folds into a domain; reduce does that separately so add and
// contains stay symmetric regardless of m.
func mix64(kind hashKind, v, seed uint64) uint64 {
	switch kind {
	case hashMurmur:
		return murmurMix2(v, seed)
	case hashXXH3:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], v)
		return xxh3.HashSeed(buf[:], seed)
	default:
		return v * seed
	}
}

// murmurMix2 is a 64-bit-optimised MurmurHash2 mix of a single 8-byte
// value under seed, following the reference constants (m, r) for the
// 64-bit variant.
func murmurMix2(v, seed uint64) uint64 {
	const m = 0xc6a4a7935bd1e995
	const r = 47
	var length uint64 = 8

	h := seed ^ (length * m)

	k := v
	k *= m
	k ^= k >> r
	k *= m

	h ^= k
	h *= m

	h ^= h >> r
	h *= m
	h ^= h >> r

	return h
}

// reduce folds a mixed 64-bit value into [0, m) using the given reducer.
// log2m is only consulted by the shift reducer and must equal
// bits.Len64(m-1) (i.e. m must be a power of two) for that path.
func reduce(kind reducerKind, x, m uint64, log2m uint) uint64 {
	if kind == reducerShift {
		return x >> (64 - log2m)
	}
	return x % m
}

// isPowerOfTwo reports whether x is a nonzero power of two.
func isPowerOfTwo(x uint64) bool {
	return x != 0 && x&(x-1) == 0
}

// log2Floor returns floor(log2(x)) for x > 0.
func log2Floor(x uint64) uint {
	return uint(bits.Len64(x) - 1)
}
