// Tollbooth is an admission-control proxy in front of OpenAI-compatible LLM
// providers. Every request reserves its worst-case cost against the caller's
// in-memory budget before it is forwarded, and settles to the actual cost
// reported by the provider.
//
// Usage:
//
//	# Start the proxy
//	tollbooth run --config /etc/tollbooth/config.yaml
//
//	# Show persisted balances
//	tollbooth balance
//	tollbooth balance alice --output json
//
//	# Check that the durable store is reachable
//	tollbooth flush
//
//	# Validate configuration and environment
//	tollbooth config validate
package main

func main() {
	Execute()
}
