// Package kebab builds and queries k-mer Bloom filter indexes over
// nucleotide sequences.
//
// An Index pairs a Bloom Filter with a rolling ntHash-family hasher: build
// time (AddSequence or IndexBuilder) inserts every k-mer window of a
// reference into the filter; scan time (ScanRead) rolls the same hash over
// a read and reports the maximal fragments whose every k-mer tested
// present, the read's approximate match against the reference.
//
// Filter sizing follows the classic optimal-m/optimal-k formulas (see
// optimalBitsFree, optimalHashCount) given a planned element count and a
// target false positive rate. When the element count isn't known up
// front, IndexBuilder estimates it with a HyperLogLog pass over the build
// sequences before allocating the filter.
//
// Index.ScanRead offers two equivalent scan paths: a direct Contains probe
// per k-mer, and a Prefetch/Check pipeline that reads a bounded window of
// bit-array words ahead of when they're tested, trading a small ring
// buffer for hidden memory latency on large filters. Orchestrator drives
// either the index's atomic-insert build path or ScanRead across a worker
// pool fed by the caller's own single-producer channel.
package kebab
