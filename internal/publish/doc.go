// Package publish uploads a finished deliverable to the hosting platform
// through a resumable session.
//
// A publish attempt exchanges the configured refresh token for an access
// token, opens (or resumes) an upload session, and streams the file in
// chunks. Each acknowledged offset is persisted through a SessionStore so a
// later attempt continues from the platform's reported offset rather than
// the first byte. The platform's video id is the only value callers keep.
package publish
