package domain

import "errors"

var (
	// ErrNoActiveSession is returned when no record exists for the user.
	ErrNoActiveSession = errors.New("no active session")

	// ErrInvalidInput is returned when a reply is empty, malformed, or not expected in the current state.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTranscriptionFailed is returned when speech recognition fails or yields nothing.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrFormattingFailed is returned by formatters; the engine falls back to the normalizer.
	ErrFormattingFailed = errors.New("formatting failed")

	// ErrRenderFailed is returned when the document renderer fails. The session is kept.
	ErrRenderFailed = errors.New("render failed")

	// ErrUnauthorized is returned when the user is not on the allow-list.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnknownState is returned when a persisted state name is not part of the workflow.
	ErrUnknownState = errors.New("unknown state")
)
