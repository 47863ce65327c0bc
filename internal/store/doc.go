// Package store persists channels, videos, tweet generations, and tweets in
// SQLite and owns every state transition the pipelines rely on.
//
// Exclusivity is enforced with conditional writes only: claims are UPDATEs
// guarded by the current status, and the live-generation slot is claimed by
// an INSERT racing on a partial unique index. A write that affects zero rows
// means another worker won; callers treat that as a benign skip. Heartbeat
// columns let the recovery sweep return stalled in-flight items to a
// retryable state without double counting attempts.
package store
