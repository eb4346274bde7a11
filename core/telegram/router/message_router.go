package router

import (
	"time"

	tg "bundlebot/core/telegram"
	"bundlebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation defines the minimal interface for a multi-step dialog manager.
type Conversation interface {
	InProgress(userID int64) bool
	Handle(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoute builds the handler that routes plain text updates.
// Active conversations win over command lookup and fallbacks.
func TextRoute(conv Conversation, reg *tg.Registry, opts TextOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if conv != nil && c.Sender() != nil && conv.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "conversation", start, "", "", func() error {
				return conv.Handle(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	return tg.Route{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
