package bot

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"bundlebot/bundle"
	"bundlebot/core/logger"
	"bundlebot/core/telegram/callbacks"
	tghelpers "bundlebot/core/telegram/helpers"
	"bundlebot/core/telegram/keyboard"
)

func buyerFrom(c tele.Context) bundle.Buyer {
	user := c.Sender()
	if user == nil {
		return bundle.Buyer{}
	}
	return bundle.Buyer{
		ID:       user.ID,
		Name:     user.FirstName,
		Username: user.Username,
	}
}

// handleStart opens the purchase conversation or shows the offline
// notice while the availability gate is closed.
func (b *Bot) handleStart(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "start")
	buyer := buyerFrom(c)
	if buyer.ID == 0 {
		return nil
	}

	res, err := b.svc.StartPurchase(ctx, buyer)
	if err != nil {
		logger.Error(ctx, "bot", "start.fail",
			slog.Int64("buyer_id", buyer.ID),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, tryAgainText)
	}
	if res.Offline {
		return tghelpers.SendText(c, res.Notice)
	}

	btns := make([]keyboard.InlineBtn, 0, len(res.Packages))
	for _, p := range res.Packages {
		btns = append(btns, keyboard.InlineBtn{
			Text:   p.Label + " - KSh " + strconv.Itoa(p.Price),
			Unique: actionPackage,
			Data:   p.ID,
		})
	}
	markup := keyboard.InlineButtonsNPerRow(btns, 2)
	return tghelpers.SendMarkup(c, welcomeText(buyer.Name, res.Packages), markup)
}

// handlePackageChoice reacts to a package button press.
func (b *Bot) handlePackageChoice(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "package_choice")
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	pkgID := callbacks.PayloadString(c)
	pkg, err := b.svc.ChoosePackage(ctx, sender.ID, pkgID)
	switch {
	case errors.Is(err, bundle.ErrNoSession):
		return tghelpers.EditOrSendText(c, noSessionText)
	case errors.Is(err, bundle.ErrUnknownPackage):
		return tghelpers.EditOrSendText(c, noSessionText)
	case err != nil:
		return tghelpers.EditOrSendText(c, tryAgainText)
	}
	return tghelpers.EditOrSendText(c, packageChosenText(pkg))
}

// handleConversation drives text input for an active purchase session.
func (b *Bot) handleConversation(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	switch b.svc.SessionStep(sender.ID) {
	case bundle.StepChoosingPackage:
		return tghelpers.SendText(c, pickPackageText)
	case bundle.StepSelectingQuantity:
		return b.handleQuantity(c)
	case bundle.StepSubmittingPayment:
		return b.handlePaymentRef(c)
	default:
		return nil
	}
}

func (b *Bot) handleQuantity(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "quantity")
	input := c.Text()

	res, err := b.svc.EnterQuantity(ctx, c.Sender().ID, input)
	switch {
	case errors.Is(err, bundle.ErrInvalidQuantity):
		// Match the prompt to what was wrong with the input.
		n, convErr := strconv.Atoi(strings.TrimSpace(input))
		switch {
		case convErr != nil:
			return tghelpers.SendText(c, invalidNumberText)
		case n <= 0:
			return tghelpers.SendText(c, positiveNumberText)
		default:
			return tghelpers.SendText(c, quantityTooLargeText)
		}
	case errors.Is(err, bundle.ErrNoSession):
		return tghelpers.SendText(c, noSessionText)
	case err != nil:
		return tghelpers.SendText(c, tryAgainText)
	}
	return tghelpers.SendText(c, paymentInstructionsText(res))
}

func (b *Bot) handlePaymentRef(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "payment")
	buyer := buyerFrom(c)

	order, err := b.svc.SubmitPayment(ctx, buyer, c.Text())
	switch {
	case errors.Is(err, bundle.ErrEmptyReference):
		return tghelpers.SendText(c, invalidReferenceText)
	case errors.Is(err, bundle.ErrNoSession):
		return tghelpers.SendText(c, noSessionText)
	case err != nil:
		logger.Error(ctx, "bot", "payment.fail",
			slog.Int64("buyer_id", buyer.ID),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, saveFailedText)
	}
	return tghelpers.SendText(c, orderSubmittedText(order))
}

// handleCancel discards any purchase in progress.
func (b *Bot) handleCancel(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "cancel")
	if sender := c.Sender(); sender != nil {
		b.svc.CancelPurchase(ctx, sender.ID)
	}
	return tghelpers.SendText(c, cancelledText)
}

// handleHelp answers with the command list matching the caller's role.
func (b *Bot) handleHelp(c tele.Context) error {
	sender := c.Sender()
	if sender != nil && b.svc.IsAdmin(sender.ID) {
		return tghelpers.SendText(c, adminHelpText)
	}
	return tghelpers.SendText(c, userHelpText)
}
