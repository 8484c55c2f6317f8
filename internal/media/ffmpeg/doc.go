// Package ffmpeg holds the command runner shared by the normalizer and the
// composer, plus the argument and filtergraph escaping helpers both use.
package ffmpeg
