// Package normalize transcodes arbitrary source clips into fixed-geometry,
// fixed-encoding intermediates.
//
// Every clip is scaled to fit the configured canvas without cropping, padded
// with a solid color around the centered frame, forced to the configured frame
// rate, and encoded with libx264 at a constant rate factor. Outputs are
// written to a hidden partial file, verified with ffprobe, and only then
// renamed into place. NormalizeAll runs independent clips concurrently up to
// the configured worker bound.
package normalize
