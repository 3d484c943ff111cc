package interfaces

// RateLimiter admits or refuses calls per provider without blocking.
type RateLimiter interface {
	// TryAcquire records a call and returns true when the provider has budget
	// left in its window; it returns false with no side effect otherwise.
	TryAcquire(providerID string) bool

	// TryAcquireN is TryAcquire for a fetch that makes n round trips. It
	// records all n or nothing.
	TryAcquireN(providerID string, n int) bool
}
