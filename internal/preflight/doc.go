// Package preflight provides readiness checks for the binaries, directories,
// and remote services a run depends on.
//
// These checks run in two contexts:
//   - The pipeline calls RunAll before a run starts so a missing ffmpeg or an
//     unwritable runs directory fails fast instead of after paid API calls.
//   - The CLI "reelsmith status" command renders the same results, plus
//     CredentialStatus, as a table.
//
// Network checks are opt-in.
package preflight
