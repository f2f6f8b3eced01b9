// Command deflectiond runs the async deflection calculator: an HTTP admission
// endpoint backed by a fixed worker pool that evaluates beam batches and
// reports results to the companion service via authenticated callbacks.
package main
