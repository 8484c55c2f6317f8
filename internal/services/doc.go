// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the probe/normalize/compose/auth/session/transfer/input taxonomy
//     reported by the orchestrator.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
