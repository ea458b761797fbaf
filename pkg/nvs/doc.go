// Package nvs provides the persistent storage partition the network stack
// keeps its driver state in.
//
// A partition must be initialized before the radio is brought up. Two
// conditions are recoverable by erasing the partition and initializing it
// again: ErrNoFreePages (the partition is full or unreadable) and
// ErrNewVersionFound (it was formatted by an incompatible version). Use
// NeedsErase to test for them.
package nvs
