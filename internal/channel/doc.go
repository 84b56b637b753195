// Package channel routes outbound replies to per-channel delivery adapters.
//
// A Registry maps channel names (website, instagram, facebook, messenger,
// matrix, ...) to Deliverer implementations. Resolve fails closed with
// ErrUnknownChannel; there is no fallback adapter.
//
// Adapters:
//
//   - GraphAdapter: Meta Graph Send API for Instagram, Facebook and Messenger
//   - WebhookAdapter: website chat widget, body rendered to HTML with goldmark
//   - MatrixAdapter: Matrix rooms through mautrix
//   - LogAdapter: logs and succeeds
//
// Adapter failures are returned as *DeliveryError with the provider's error
// text in Reason. Retries, where any, happen inside the adapter.
package channel
