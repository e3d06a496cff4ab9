//go:build !unix

package vmem

// Default returns the native provider for the platform.
func Default() Provider { return Heap{} }
