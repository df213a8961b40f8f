// Package registry provides a generic reference-counted object pool.
//
// Entries are created on first Acquire and destroyed when the last holder
// calls Release. The registry is the ownership backbone of the query layer:
// all callers running the same operation share one entry, and the entry's
// teardown hook runs exactly once, when the reference count drops to zero.
//
// Misuse (releasing a key that is not held, releasing a value that is not
// the registered instance) indicates a caller bug and panics rather than
// being silently ignored.
package registry
