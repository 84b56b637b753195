// Package dedupe drops repeated inbound deliveries.
//
// Channel providers retry webhooks on timeouts, so the same provider message
// id can reach POST /inbound more than once. The Cache remembers claimed keys
// (see Key) for a TTL and evicts the oldest when full.
package dedupe
