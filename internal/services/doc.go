// Package services defines shared utilities consumed by the store client,
// the access guard, and the tabulation components.
//
// Key responsibilities:
//   - Context helpers that stamp the acting user, the electoral round, and
//     correlation identifiers for logging and request tracing.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified with errors.Is (authentication, permission, rate limiting,
//     remote failures, manual decisions).
//   - Retryable, which encodes which markers the store client may retry.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the system.
package services
