package bot

import (
	"errors"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"bundlebot/bundle"
	"bundlebot/core/logger"
	"bundlebot/core/telegram/callbacks"
	tghelpers "bundlebot/core/telegram/helpers"
)

// handleToggleStatus flips the availability gate and reports how many
// queued buyers were told the service is back.
func (b *Bot) handleToggleStatus(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "togglestatus")
	res, err := b.svc.ToggleStatus(ctx)
	if err != nil {
		logger.Error(ctx, "bot", "toggle.fail", slog.String("err", err.Error()))
		return tghelpers.SendText(c, tryAgainText)
	}
	return tghelpers.SendText(c, statusToggledText(res))
}

// handleSetOfflineMsg replaces the offline notice with the command payload.
func (b *Bot) handleSetOfflineMsg(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "setofflinemsg")
	text := strings.TrimSpace(c.Message().Payload)
	if text == "" {
		return tghelpers.SendText(c, setOfflineUsageText)
	}
	if err := b.svc.SetOfflineNotice(ctx, text); err != nil {
		if errors.Is(err, bundle.ErrEmptyNotice) {
			return tghelpers.SendText(c, setOfflineUsageText)
		}
		logger.Error(ctx, "bot", "set_notice.fail", slog.String("err", err.Error()))
		return tghelpers.SendText(c, tryAgainText)
	}
	return tghelpers.SendText(c, offlineNoticeUpdatedText(text))
}

// handlePendingOrders re-sends every pending order with fresh
// approve/reject buttons.
func (b *Bot) handlePendingOrders(c tele.Context) error {
	msgs := b.svc.PendingReviews()
	if len(msgs) == 0 {
		return tghelpers.SendText(c, noPendingText)
	}
	for _, msg := range msgs {
		if err := tghelpers.SendMarkup(c, msg.Text, renderButtons(msg.Buttons)); err != nil {
			return err
		}
	}
	return nil
}

// handleResolve applies an approve or reject button press. Stale
// presses on an already resolved order edit the message in place and
// change nothing.
func (b *Bot) handleResolve(approve bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		name := "reject"
		if approve {
			name = "approve"
		}
		ctx := tghelpers.WithHandler(c, name)

		sender := c.Sender()
		if sender == nil || !b.svc.IsAdmin(sender.ID) {
			return tghelpers.EditOrSendText(c, notAuthorizedText)
		}

		orderID := callbacks.PayloadString(c)
		res, err := b.svc.ResolveOrder(ctx, sender.ID, orderID, approve)
		switch {
		case errors.Is(err, bundle.ErrOrderNotPending):
			return tghelpers.EditOrSendText(c, orderGoneText)
		case err != nil:
			logger.Error(ctx, "bot", "resolve.fail",
				slog.String("order_id", orderID),
				slog.String("err", err.Error()),
			)
			return tghelpers.EditOrSendText(c, tryAgainText)
		}

		if approve {
			return tghelpers.EditOrSendText(c, approvedAdminText(orderID, res.NotifyErr))
		}
		return tghelpers.EditOrSendText(c, rejectedAdminText(orderID, res.NotifyErr))
	}
}
