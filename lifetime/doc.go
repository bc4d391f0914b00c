// Package lifetime models how long a subscription may reach its target.
//
// Owned refs pin the target. Borrowed refs point into an Arena slot and go dead
// once the owner calls Arena.Release; nothing relies on the garbage collector.
package lifetime
