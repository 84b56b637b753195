// Package gateway wires the inbox components together and serves the HTTP API.
//
// # Overview
//
// A Gateway owns the store, the channel registry, the conversation service,
// the task ledger, the event broadcaster and the inbound dedupe cache. New
// builds all of them from config; NewWithDeps lets callers substitute the
// store, the drafting agent or the channel adapters.
//
// # HTTP API
//
//	GET   /dashboard   snapshot plus computed metrics
//	POST  /messages    reply on a thread (optionally agent-drafted)
//	GET   /tasks       list tasks, ?status=open|completed
//	POST  /tasks       create a task
//	PATCH /tasks       complete a task
//	GET   /threads     threads derived from the message log (?threadId= for one)
//	POST  /inbound     ingest a message received on a channel
//	GET   /events      SSE stream of persisted messages, ?threadId=
//	GET   /health      liveness
//
// Errors are JSON objects of the form {"error": "..."}. When auth.jwt_secret
// is set every route except /health requires a bearer token.
//
// # Lifecycle
//
// Run serves on a TCP address or, when tailscale.enabled is set, on a tsnet
// node (optionally through Funnel). With watch_config set the config file is
// watched and channel adapters are rebuilt on change. Run returns after the
// context is canceled and Shutdown has drained the server.
package gateway
