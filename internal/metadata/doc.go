// Package metadata parses and normalizes the title, description and tags a
// deliverable is published with.
package metadata
