// Package main hosts the reelsmith CLI.
//
// Commands run the full pipeline (run), compose from local files (compose),
// resume publishing of an existing run (publish), and inspect the run store
// (runs, sessions, status). Configuration is resolved once per invocation
// and the SQLite store is opened lazily by the commands that need it.
package main
