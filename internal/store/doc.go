// Package store persists pipeline runs and resumable upload sessions in
// SQLite.
//
// Runs record where a pipeline run is and how it ended; artifacts stay on
// disk in the run directory. Upload sessions record the remote session
// location and the last acknowledged byte offset so an interrupted transfer
// resumes instead of restarting.
//
// Schema changes bump schemaVersion in schema.go; users delete the database
// to adopt the new schema.
package store
