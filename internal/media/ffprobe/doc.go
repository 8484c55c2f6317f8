// Package ffprobe provides a typed wrapper around ffprobe JSON output and the
// Prober that turns it into measured media assets.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Asset: path, duration, geometry, codec, and frame rate of one file
//   - Prober: runs ffprobe with a per-file deadline and classifies failures
//
// Durations are always measured: the container duration is preferred, the
// longest stream duration is the fallback, and 0 means unknown.
package ffprobe
