// Package bot wires the order service to the Telegram transport:
// commands, callbacks, and the purchase conversation.
package bot

import (
	tele "gopkg.in/telebot.v4"

	"bundlebot/bundle"
	coreconfig "bundlebot/core/config"
	tg "bundlebot/core/telegram"
	"bundlebot/core/telegram/commands"
	tghelpers "bundlebot/core/telegram/helpers"
	"bundlebot/core/telegram/router"
)

// Callback keys bound to inline buttons.
const actionPackage = "package"

// Bot binds handlers to the order service.
type Bot struct {
	svc *bundle.Service
}

// New returns a Bot serving the given order service.
func New(svc *bundle.Service) *Bot {
	return &Bot{svc: svc}
}

// Registry builds the command and callback registry.
func (b *Bot) Registry() *tg.Registry {
	reg := tg.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     b.handleStart,
		Description: "Start shopping for data bundles",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     b.handleCancel,
		Description: "Cancel the current purchase",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     b.handleHelp,
		Description: "Show available commands",
	})
	reg.RegisterCommand("/togglestatus", commands.Command{
		Handler:     b.handleToggleStatus,
		Description: "Toggle bot online/offline status",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/setofflinemsg", commands.Command{
		Handler:     b.handleSetOfflineMsg,
		Description: "Set custom offline message",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/pendingorders", commands.Command{
		Handler:     b.handlePendingOrders,
		Description: "View all pending orders",
		AdminOnly:   true,
	})

	_ = reg.RegisterCallback(actionPackage, b.handlePackageChoice)
	_ = reg.RegisterCallback(bundle.ActionApprove, b.handleResolve(true))
	_ = reg.RegisterCallback(bundle.ActionReject, b.handleResolve(false))

	// Plain text outside a purchase conversation gets a nudge to /start.
	reg.SetTextFallback(func(c tele.Context) error {
		return tghelpers.SendText(c, noSessionText)
	})

	return reg
}

// Routes assembles all transport routes: commands guarded by the admin
// allow-list, the purchase conversation over plain text, and the
// callback router.
func (b *Bot) Routes(cfg *coreconfig.Config, reg *tg.Registry) []tg.Route {
	onReject := func(c tele.Context) error {
		return tghelpers.SendText(c, notAuthorizedText)
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminIDs:      cfg.Telegram.Admins,
		OnAdminReject: onReject,
	})
	routes = append(routes, router.TextRoute(b.conversation(), reg, router.TextOptions{}))
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	return routes
}

type conversationAdapter struct {
	bot *Bot
}

func (a conversationAdapter) InProgress(userID int64) bool {
	return a.bot.svc.InPurchase(userID)
}

func (a conversationAdapter) Handle(c tele.Context) error {
	return a.bot.handleConversation(c)
}

func (b *Bot) conversation() router.Conversation {
	return conversationAdapter{bot: b}
}
