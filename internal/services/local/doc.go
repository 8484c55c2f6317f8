// Package local supplies pipeline inputs from files already on disk: a script
// file, a narration audio file, a directory of clips, and optional metadata
// JSON. The compose command and pipeline tests use it in place of the
// generation services.
package local
