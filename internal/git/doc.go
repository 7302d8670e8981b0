// Package git publishes the generated documents by committing and pushing
// the local working copy with go-git. No git binary is required.
package git
