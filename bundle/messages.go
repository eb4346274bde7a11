package bundle

import (
	"fmt"
	"time"
)

// Callback actions carried by review buttons.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

const resolvedTimeLayout = "2006-01-02 15:04:05"

func reviewMessage(heading string, o Order, pkgLabel string) Message {
	username := o.BuyerUsername
	if username == "" {
		username = "N/A"
	}
	text := fmt.Sprintf(
		"🔔 %s: %s\n\n"+
			"User: %s (@%s)\n"+
			"Package: %s\n"+
			"Quantity: %d\n"+
			"Total: KSh %d\n"+
			"Transaction ID: %s\n"+
			"Time: %s",
		heading, o.ID, o.BuyerName, username, pkgLabel,
		o.Quantity, o.TotalPrice, o.PaymentRef,
		o.CreatedAt.Format(resolvedTimeLayout),
	)
	return Message{
		Text: text,
		Buttons: [][]Button{{
			{Text: "Approve", Action: ActionApprove, Data: o.ID},
			{Text: "Reject", Action: ActionReject, Data: o.ID},
		}},
	}
}

func approvedMessage(o Order, expiresAt time.Time, hours int) Message {
	return Message{Text: fmt.Sprintf(
		"🎉 Good news! Your order (ID: %s) has been approved.\n\n"+
			"Your data bundle is now active and will expire on %s.\n\n"+
			"Enjoy your %d hours of internet!",
		o.ID, expiresAt.Format(resolvedTimeLayout), hours,
	)}
}

func rejectedMessage(o Order) Message {
	return Message{Text: fmt.Sprintf(
		"❌ Unfortunately, your order (ID: %s) has been rejected.\n\n"+
			"This may be due to payment verification issues. Please contact support for assistance.",
		o.ID,
	)}
}

func backOnlineMessage() Message {
	return Message{Text: "🟢 We're back online! You can now purchase data bundles."}
}
