// Package compose muxes normalized clips and a narration track into the
// deliverable video.
//
// The composer probes the narration and every clip, builds a bounded
// timeline, writes an ffconcat list plus one text file per overlay, and runs
// a single ffmpeg encode that concatenates the clips, burns in the overlays,
// and stops at the shorter of video and audio. The encode lands in a hidden
// partial file next to the destination and is promoted only after it probes
// clean; an existing deliverable is never replaced.
package compose
