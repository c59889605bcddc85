// Package services holds the application logic between the webhook transport
// and the command dispatcher. Errors here are mapped to HTTP statuses by the
// handlers package.
package services

import "errors"

// ErrDuplicateUpdate means the update id was already processed and the
// delivery is a platform retry.
var ErrDuplicateUpdate = errors.New("update already processed")
