package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
	"github.com/magabrotheeeer/riya-bot/internal/services/payment"
)

type command struct {
	adminOnly bool
	run       func(ctx context.Context, log *slog.Logger, msg Message)
}

func (h *Handler) commandTable() map[string]command {
	return map[string]command{
		"start":  {run: h.cmdStart},
		"status": {run: h.cmdStatus},
		"plans":  {run: h.cmdPlans},
		"grant":  {adminOnly: true, run: h.cmdGrant},
		"unmute": {adminOnly: true, run: h.cmdUnmute},
	}
}

func (h *Handler) handleCommand(ctx context.Context, log *slog.Logger, msg Message) {
	cmd, ok := h.commands[strings.ToLower(msg.Command)]
	if !ok || (cmd.adminOnly && !h.isAdmin(msg.UserID)) {
		if ok {
			log.Warn("admin command from non-admin", slog.String("command", msg.Command))
		}
		h.send(ctx, log, msg.ChatID, textUnknownCommand)
		return
	}
	cmd.run(ctx, log.With(slog.String("command", msg.Command)), msg)
}

func (h *Handler) isAdmin(userID int64) bool {
	return h.adminID != 0 && userID == h.adminID
}

func (h *Handler) cmdStart(ctx context.Context, log *slog.Logger, msg Message) {
	h.send(ctx, log, msg.ChatID, textStart)
}

func (h *Handler) cmdStatus(ctx context.Context, log *slog.Logger, msg Message) {
	st, err := h.gate.Status(ctx, msg.UserID)
	if err != nil {
		log.Error("failed to load status", sl.Err(err))
		h.send(ctx, log, msg.ChatID, textFallback)
		return
	}
	h.send(ctx, log, msg.ChatID, h.formatStatus(st))
}

func (h *Handler) cmdPlans(ctx context.Context, log *slog.Logger, msg Message) {
	if len(h.payments.Plans()) == 0 {
		h.send(ctx, log, msg.ChatID, textNoPlans)
		return
	}
	h.sendPaywall(ctx, log, msg.ChatID, msg.UserID, textPlansHeader)
}

func (h *Handler) cmdGrant(ctx context.Context, log *slog.Logger, msg Message) {
	fields := strings.Fields(msg.Args)
	if len(fields) != 2 {
		h.send(ctx, log, msg.ChatID, textGrantUsage)
		return
	}
	target, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || target <= 0 {
		h.send(ctx, log, msg.ChatID, textGrantUsage)
		return
	}

	plan, err := h.payments.AdminGrant(ctx, target, fields[1])
	if err != nil {
		if errors.Is(err, payment.ErrUnknownPlan) {
			h.send(ctx, log, msg.ChatID, fmt.Sprintf(textUnknownPlan, fields[1], h.planKeys()))
			return
		}
		log.Error("admin grant failed", sl.Err(err))
		h.send(ctx, log, msg.ChatID, fmt.Sprintf(textAdminFailed, err))
		return
	}
	log.Info("admin granted entitlement", slog.Int64("target", target), slog.String("plan", plan.Key))
	h.send(ctx, log, msg.ChatID, fmt.Sprintf(textGranted, plan.Key, target))
}

func (h *Handler) cmdUnmute(ctx context.Context, log *slog.Logger, msg Message) {
	target, err := strconv.ParseInt(strings.TrimSpace(msg.Args), 10, 64)
	if err != nil || target <= 0 {
		h.send(ctx, log, msg.ChatID, textUnmuteUsage)
		return
	}
	if err := h.gate.ResetModeration(ctx, target); err != nil {
		log.Error("admin unmute failed", sl.Err(err))
		h.send(ctx, log, msg.ChatID, fmt.Sprintf(textAdminFailed, err))
		return
	}
	log.Info("admin unmuted user", slog.Int64("target", target))
	h.send(ctx, log, msg.ChatID, fmt.Sprintf(textUnmuted, target))
}

func (h *Handler) planKeys() string {
	plans := h.payments.Plans()
	keys := make([]string, 0, len(plans))
	for _, p := range plans {
		keys = append(keys, p.Key)
	}
	return strings.Join(keys, ", ")
}
