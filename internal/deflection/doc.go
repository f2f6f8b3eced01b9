// Package deflection defines the core types and small interfaces shared across
// the async deflection calculator: job and result records, the queue contract,
// and the loose-typed coercion helpers used when evaluating inbound items.
package deflection
