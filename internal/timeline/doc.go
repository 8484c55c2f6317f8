// Package timeline decides how many times the normalized clip sequence must
// repeat to cover a narration track and renders the resulting playback list.
//
// The repetition cap is part of the Bound a Timeline is built with, so a
// clip set of near-zero total duration can never produce an unbounded list.
package timeline
