// Meridian is the resilience and accounting core of an inference gateway.
//
// It fronts heterogeneous model providers with:
//   - Multi-tier rate limiting (requests, tokens, burst, concurrency)
//   - Per-(provider, model) circuit breaking with emergency fallback
//   - Ordered failover routing across provider candidates
//   - Model catalog resolution and pricing
//   - Credit ledger with compare-and-swap debits
//
// Usage:
//
//	# Start the gateway core with default configuration
//	meridian run
//
//	# Start with a custom configuration file
//	meridian run --config /etc/meridian/config.yaml
//
//	# Validate configuration and catalog without starting
//	meridian validate
//
//	# Show version information
//	meridian version
package main

func main() {
	Execute()
}
