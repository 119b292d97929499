package chat

import (
	"fmt"
	"strings"

	"github.com/magabrotheeeer/riya-bot/internal/models"
)

func (h *Handler) formatStatus(st models.UserState) string {
	now := h.gate.Now()
	left := h.gate.FreeLimit() - st.Entitlement.FreeMessagesUsed
	if left < 0 {
		left = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Free messages left: %d/%d", left, h.gate.FreeLimit())

	ent := st.Entitlement
	switch {
	case ent.Unlimited:
		fmt.Fprintf(&b, "\nPlan: %s (unlimited)", ent.Plan)
	case ent.Expiry != nil && ent.Expiry.After(now):
		fmt.Fprintf(&b, "\nPlan: %s until %s", ent.Plan, ent.Expiry.UTC().Format("02 Jan 15:04 MST"))
	case ent.Expiry != nil:
		fmt.Fprintf(&b, "\nPlan: %s expired", ent.Plan)
	}
	if ent.MessagesRemaining > 0 {
		fmt.Fprintf(&b, "\nPaid messages left: %d", ent.MessagesRemaining)
	}
	if st.Moderation.Muted(now) {
		fmt.Fprintf(&b, "\nMuted until %s", st.Moderation.MutedUntil.UTC().Format("02 Jan 15:04 MST"))
	} else if st.Moderation.StrikeCount > 0 {
		fmt.Fprintf(&b, "\nWarnings: %d", st.Moderation.StrikeCount)
	}
	return b.String()
}
