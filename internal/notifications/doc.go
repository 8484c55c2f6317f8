// Package notifications pushes pipeline milestones to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, and
// each event family can be switched off independently in config.toml. Callers
// depend only on the Service interface and treat delivery failures as
// non-fatal.
package notifications
