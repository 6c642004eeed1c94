// Package github is a small GitHub REST v3 client: pull request metadata,
// changed files with their patches, and issue comment CRUD.
//
// Requests are paced by a token-bucket limiter. Non-2xx responses become
// *APIError, so callers can tell authentication failures from the rest.
// Comments exposes the issue comment endpoints of one repository as a
// publish.CommentStore.
package github
