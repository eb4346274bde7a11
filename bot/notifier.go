package bot

import (
	"context"
	"fmt"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"bundlebot/bundle"
	"bundlebot/core/telegram/keyboard"
)

// TeleNotifier delivers service notifications through the Telegram bot
// API. The bot instance is bound late, after the transport is built, so
// the service can be constructed first. Delivery is time-bounded by the
// transport's HTTP client timeouts.
type TeleNotifier struct {
	bot atomic.Pointer[tele.Bot]
}

// NewTeleNotifier returns an unbound notifier.
func NewTeleNotifier() *TeleNotifier {
	return &TeleNotifier{}
}

// Bind attaches the live bot instance.
func (n *TeleNotifier) Bind(b *tele.Bot) {
	n.bot.Store(b)
}

// Notify sends the message to the recipient's private chat.
func (n *TeleNotifier) Notify(ctx context.Context, recipient int64, msg bundle.Message) error {
	b := n.bot.Load()
	if b == nil {
		return fmt.Errorf("notifier: transport not ready")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	markup := renderButtons(msg.Buttons)
	if markup != nil {
		_, err := b.Send(&tele.User{ID: recipient}, msg.Text, markup)
		return err
	}
	_, err := b.Send(&tele.User{ID: recipient}, msg.Text)
	return err
}

// renderButtons converts transport-neutral button rows into an inline
// keyboard. The button action becomes the callback unique and the data
// its payload.
func renderButtons(rows [][]bundle.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	btnRows := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		btns := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			btns = append(btns, keyboard.InlineBtn{Text: b.Text, Unique: b.Action, Data: b.Data})
		}
		btnRows = append(btnRows, btns)
	}
	return keyboard.InlineButtonsRows(btnRows...)
}
