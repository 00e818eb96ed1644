package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrNoActiveSession    = errors.New("no active session")
	ErrSubmissionInFlight = errors.New("a submission is already in progress for this session")
	ErrEmptySubmission    = errors.New("message text or image is required")
	ErrStoreClosed        = errors.New("session store closed")
	ErrPromptNotFound     = errors.New("saved prompt not found")
	ErrInvalidPrompt      = errors.New("prompt name and text are required")
	ErrInvalidTheme       = errors.New("theme must be light or dark")
)

// ErrorKind tags a BackendError with one of the user-visible failure categories.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindAuth
	KindRateLimit
	KindContentBlocked
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindContentBlocked:
		return "content_blocked"
	default:
		return "unknown"
	}
}

// BackendError is the only error type the Gateway returns for failed calls.
// Code carries the HTTP status reported by the backend, when there was one.
type BackendError struct {
	Kind    ErrorKind
	Code    int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s backend error: %v", e.Kind, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s backend error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s backend error: %s", e.Kind, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

const (
	authErrorText       = "Invalid API Key: Please check your API key in the settings."
	rateLimitErrorText  = "Rate Limit Exceeded: Please wait a moment and try again."
	tooManyRequestsText = "Too Many Requests: You're sending requests too quickly. Please wait a bit before trying again."
	imageErrorPrefix    = "Image Generation Error: "
	unexpectedErrorText = "An unexpected error occurred."
)

// DisplayText maps a failure to the text shown in the conversation.
func DisplayText(err error) string {
	if err == nil {
		return unexpectedErrorText
	}

	var be *BackendError
	if !errors.As(err, &be) {
		if msg := err.Error(); msg != "" {
			return msg
		}
		return unexpectedErrorText
	}

	switch be.Kind {
	case KindAuth:
		return authErrorText
	case KindRateLimit:
		if be.tooManyRequests() {
			return tooManyRequestsText
		}
		return rateLimitErrorText
	case KindContentBlocked:
		return imageErrorPrefix + be.reason()
	default:
		if r := be.reason(); r != "" {
			return r
		}
		return unexpectedErrorText
	}
}

// tooManyRequests reports a bare HTTP 429 that does not mention a rate limit.
func (e *BackendError) tooManyRequests() bool {
	reason := strings.ToLower(e.reason())
	if strings.Contains(reason, "rate limit") {
		return false
	}
	return e.Code == 429 || strings.Contains(reason, "429")
}

func (e *BackendError) reason() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}
