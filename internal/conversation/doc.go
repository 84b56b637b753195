// Package conversation runs the inbox's write paths.
//
// # Reply pipeline
//
//	svc := conversation.New(store, registry, drafter, conversation.Options{
//	    AgentTimeout:    20 * time.Second,
//	    DeliveryTimeout: 15 * time.Second,
//	    Broadcaster:     broadcaster,
//	}, logger)
//	result, err := svc.Reply(ctx, &conversation.ReplyRequest{...})
//
// A reply moves through Start, Drafted, Dispatched, Persisted and Done.
// Drafting only happens when UseAgent is set or the body is blank. A blank
// body after drafting is rejected before any adapter is called. Delivery
// precedes persistence, so a failed send leaves the log untouched.
//
// # Ingestion
//
// Ingest appends inbound messages from channel webhooks. Repeated provider
// ids are dropped through the dedupe cache, timestamps must be RFC 3339, and
// missing sentiment is filled in by the lexicon classifier.
//
// # Concurrency
//
// Both paths hold a per-thread lock from history load through persistence.
// Different threads proceed in parallel. Waiting for the lock honours
// context cancellation.
//
// # Errors
//
//   - *ValidationError (errors.Is ErrValidation): bad or incomplete request
//   - channel.ErrUnknownChannel: no adapter for the channel
//   - *channel.DeliveryError: adapter failure, provider reason attached
//   - *AgentError: drafting failed; Timeout() reports a deadline
//   - *StoreError: persistence failure
//
// # Broadcaster
//
// EventBroadcaster fans persisted messages out to subscribers of one thread
// or of AllThreads. Slow subscribers lose messages rather than block writers.
package conversation
