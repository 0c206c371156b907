// Package domain defines the conversation driver contract between the
// channel pipeline and the reply engine.
package domain

import (
	"context"

	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	companydomain "github.com/chatlyhq/chatly/internal/company/domain"
)

// Inbound carries one fully resolved inbound turn: the tenant chain, the chat
// and the freshly persisted parts.
type Inbound struct {
	Company   *companydomain.Company
	Owner     *companydomain.User
	Assistant *assistantdomain.Assistant
	Binding   *assistantdomain.AssistantChannel
	Chat      *chatdomain.Chat

	Parts    []chatdomain.Part
	Messages []chatdomain.ChatMessage
}

// HasContentPart reports whether the turn carries at least one non-event part.
func (in Inbound) HasContentPart() bool {
	for _, part := range in.Parts {
		if part.HasContent() {
			return true
		}
	}
	return false
}

// HadVoice reports whether the inbound turn contained voice or audio.
func (in Inbound) HadVoice() bool {
	for _, part := range in.Parts {
		if part.MessageType == chatdomain.TypeVoice || part.MessageType == chatdomain.TypeAudio {
			return true
		}
	}
	return false
}

// Driver decides whether the turn earns an automated reply, generates it and
// hands it to delivery. It never returns webhook-visible failures for gate
// misses; only infrastructure errors surface.
type Driver interface {
	HandleInbound(ctx context.Context, in Inbound) error
}
