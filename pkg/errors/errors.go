package chat_errors

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Common errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
)

// Messaging domain errors
var (
	ErrConversationArchived   = errors.New("conversation archived")
	ErrNotParticipant         = errors.New("sender is not a participant")
	ErrSelfConversation       = errors.New("direct conversation requires two distinct users")
	ErrTitleRequired          = errors.New("group conversation requires a title")
	ErrEmptyContent           = errors.New("content empty and no attachments")
	ErrTooManyAttachments     = errors.New("too many attachments")
	ErrEmptyAttachment        = errors.New("attachment has no size")
	ErrReplyWrongConversation = errors.New("reply references a message in another conversation")
	ErrMessageDeleted         = errors.New("message already deleted")
	ErrNotMember              = errors.New("user is not a channel member")
)

// Code maps an error to the wire-level error code carried in RPC
// error frames and HTTP responses.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrConversationArchived):
		return "CONVERSATION_ARCHIVED"
	case errors.Is(err, ErrMessageDeleted):
		return "MESSAGE_DELETED"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotParticipant), errors.Is(err, ErrNotMember):
		return "FORBIDDEN"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return "CONFLICT"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrServiceUnavailable), errors.Is(err, context.DeadlineExceeded):
		return "TRANSIENT"
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrSelfConversation),
		errors.Is(err, ErrTitleRequired),
		errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrTooManyAttachments),
		errors.Is(err, ErrEmptyAttachment),
		errors.Is(err, ErrReplyWrongConversation):
		return "VALIDATION"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus maps an error to the status used by the REST surface.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotParticipant), errors.Is(err, ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConversationArchived), errors.Is(err, ErrMessageDeleted):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case Code(err) == "VALIDATION":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
