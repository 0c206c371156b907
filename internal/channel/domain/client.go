// Package domain defines the channel capability contracts shared by the
// instagram, telegram and widget adapters.
package domain

import (
	"context"
	"errors"

	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
)

// Profile is a best-effort remote profile snapshot. Empty fields mean the
// channel did not expose them.
type Profile struct {
	DisplayName string
	AvatarURL   string
}

// Client sends messages through one channel binding. Implementations carry
// short timeouts; a slow provider degrades, it never hangs the pipeline.
type Client interface {
	// SendText delivers a plain text message and returns the provider message
	// id, which may be empty when the channel does not issue one.
	SendText(ctx context.Context, recipientID, text string) (string, error)

	// SendMedia delivers a hosted media file by URL.
	SendMedia(ctx context.Context, recipientID, mediaURL string, mediaType chatdomain.MessageType, caption string) (string, error)

	// FetchProfile resolves the sender's display profile. Failures are
	// expected and must degrade to (nil, err) without side effects.
	FetchProfile(ctx context.Context, userID string) (*Profile, error)

	// FileURL resolves a channel file handle into a fetchable URL. Channels
	// whose payloads already carry direct URLs return the input unchanged.
	FileURL(ctx context.Context, fileID string) (string, error)
}

// ClientFactory builds a Client for a binding using its stored credentials.
type ClientFactory interface {
	For(binding *assistantdomain.AssistantChannel) (Client, error)
}

var ErrUnsupportedChannel = errors.New("unsupported_channel")
