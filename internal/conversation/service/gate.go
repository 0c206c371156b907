package service

import (
	"context"

	conversationdomain "github.com/chatlyhq/chatly/internal/conversation/domain"
	subscriptiondomain "github.com/chatlyhq/chatly/internal/subscription/domain"
)

// gateResult is the eligibility decision for one inbound turn. A non-empty
// reason means the turn is stored but earns no automated reply.
type gateResult struct {
	reason string

	sub *subscriptiondomain.CompanySubscription
}

func (g gateResult) allowed() bool { return g.reason == "" }

// evaluateGate walks the eligibility conditions in order. The subscription
// check runs right after the period sync and usage increment, so the quota
// decision reflects current state rather than a stale read.
func (d *Driver) evaluateGate(ctx context.Context, in conversationdomain.Inbound) (gateResult, error) {
	if !in.Binding.AutoReplyEnabled {
		return gateResult{reason: "auto_reply_disabled"}, nil
	}
	if !in.HasContentPart() {
		return gateResult{reason: "no_content"}, nil
	}
	if in.Owner == nil || !in.Owner.IsActive {
		return gateResult{reason: "owner_inactive"}, nil
	}
	if !in.Binding.IsActive {
		return gateResult{reason: "binding_inactive"}, nil
	}
	if !in.Assistant.IsActive {
		return gateResult{reason: "assistant_inactive"}, nil
	}
	if !in.Chat.Replyable() {
		return gateResult{reason: "chat_not_replyable"}, nil
	}
	if in.Chat.AssistantMuted() {
		return gateResult{reason: "assistant_muted"}, nil
	}

	sub, err := d.subSvc.EnsureCurrent(ctx, in.Company.ID)
	if err != nil {
		return gateResult{}, err
	}
	sub, err = d.subSvc.SynchronizeBillingPeriods(ctx, sub)
	if err != nil {
		return gateResult{}, err
	}

	// The turn is metered whether or not a reply follows.
	used := sub.ChatCountCurrentPeriod
	if err := d.subSvc.IncrementChatUsage(ctx, in.Company.ID, 1); err != nil {
		return gateResult{}, err
	}

	if !sub.IsActiveAt(d.clock.Now()) {
		return gateResult{reason: "subscription_inactive", sub: sub}, nil
	}
	included, err := d.subSvc.IncludedChats(ctx, sub)
	if err != nil {
		return gateResult{}, err
	}
	if used >= included {
		return gateResult{reason: "quota_exhausted", sub: sub}, nil
	}

	if !d.llm.Configured() {
		return gateResult{reason: "llm_unconfigured", sub: sub}, nil
	}
	return gateResult{sub: sub}, nil
}
