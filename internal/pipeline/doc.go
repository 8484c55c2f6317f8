// Package pipeline sequences one run: script, narration, footage,
// normalization, composition, metadata, and publishing.
//
// Every stage writes its artifact into the run directory
// (<runs_dir>/<date>-<id>) before the next stage starts, and the run record
// in the store tracks the current stage. A failing stage halts the run,
// records the stage and error kind in run.json and the store, and leaves
// every artifact in place. Resume re-enters a composed run, or one that
// failed while publishing, and continues any persisted upload session.
package pipeline
