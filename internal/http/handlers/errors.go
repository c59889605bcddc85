// Package handlers implements the HTTP endpoints of the bot: the Telegram
// webhook and its error envelope.
//
// Error responses carry a stable, machine-readable code next to the HTTP
// status:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "bad_request",
//	  "message": "invalid update payload"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeTooLarge         = "payload_too_large"
	ErrCodeInternal         = "internal_error"

	// ErrCodeUpdateFailed means the update could not be processed and the
	// platform should retry it.
	ErrCodeUpdateFailed = "update_failed"
)
