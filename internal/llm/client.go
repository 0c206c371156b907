// Package llm defines the assistant-provider capability contract.
package llm

import (
	"context"
	"errors"
	"io"
)

// MessageContent is one user turn. Image file ids take precedence over URLs;
// plain text is always allowed.
type MessageContent struct {
	Text         string
	ImageFileIDs []string
	ImageURLs    []string
}

// Client drives a remote assistants API. Every call is bounded by the
// caller's context plus the implementation's own timeout.
type Client interface {
	// Configured reports whether credentials are present. An unconfigured
	// client gates automated replies off instead of failing calls.
	Configured() bool

	CreateThread(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, threadID string, content MessageContent) (string, error)

	// RunAndGetResponse executes the assistant on the thread and returns the
	// final text response.
	RunAndGetResponse(ctx context.Context, threadID, assistantRemoteID string) (string, error)

	UploadFile(ctx context.Context, name string, r io.Reader, purpose string) (string, error)

	// CreateSpeech synthesizes the text and returns the stored audio path.
	CreateSpeech(ctx context.Context, text string) (string, error)
}

var (
	ErrNotConfigured = errors.New("llm_not_configured")
	ErrRunFailed     = errors.New("llm_run_failed")
)
