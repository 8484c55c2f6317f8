// Package config loads, normalizes, and validates reelsmith configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY, PEXELS_API_KEY, and GOOGLE_REFRESH_TOKEN. The Config type
// centralizes every knob the pipeline and CLI need and is validated once at
// process start; components receive the sub-structs they use at construction.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
