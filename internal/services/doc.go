// Package services defines shared utilities consumed by the pipelines and the
// external service clients.
//
// Key responsibilities:
//   - Context helpers that stamp channel, video, stage, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     per-item (recorded on the owning entity), benign (lost guard race), or
//     fatal (abort the run).
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform across the system.
package services
