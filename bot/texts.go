package bot

import (
	"fmt"
	"strings"

	"bundlebot/bundle"
)

const (
	cancelledText        = "Operation cancelled. Type /start to begin again."
	invalidNumberText    = "Please enter a valid number."
	positiveNumberText   = "Please enter a positive number."
	invalidReferenceText = "Please provide a valid transaction ID."
	pickPackageText      = "Please select a package using the buttons above, or type /cancel to stop."
	noSessionText        = "Type /start to begin shopping for data bundles."
	notAuthorizedText    = "You are not authorized to use this command."
	noPendingText        = "No pending orders."
	orderGoneText        = "Order not found or already processed."
	tryAgainText         = "Something went wrong. Please try again."
	saveFailedText       = "Something went wrong while saving your order. Please resend your transaction ID."
	setOfflineUsageText  = "Please provide an offline message. Usage: /setofflinemsg Your custom message here"

	userHelpText = "Available commands:\n" +
		"/start - Start shopping for data bundles\n" +
		"/help - Show this help message"

	adminHelpText = "Admin Commands:\n" +
		"/togglestatus - Toggle bot online/offline status\n" +
		"/setofflinemsg [message] - Set custom offline message\n" +
		"/pendingorders - View all pending orders\n" +
		"/help - Show this help message"
)

var quantityTooLargeText = fmt.Sprintf("Please enter a quantity of %d or less.", bundle.MaxQuantity)

func welcomeText(firstName string, packages []bundle.Package) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s! Welcome to the Data Bundle Bot.\n\n", firstName)
	b.WriteString("You can buy the following packages:\n")
	for i, p := range packages {
		fmt.Fprintf(&b, "%d. %s - KSh %d\n", i+1, p.Label, p.Price)
	}
	b.WriteString("\nPlease select a package to continue.")
	return b.String()
}

func packageChosenText(pkg bundle.Package) string {
	return fmt.Sprintf(
		"You selected the %s package at KSh %d.\n\n"+
			"How many packages would you like to buy? (Send a number)",
		pkg.Label, pkg.Price,
	)
}

func paymentInstructionsText(res bundle.QuantityResult) string {
	return fmt.Sprintf(
		"You're purchasing %d x %s data bundle(s).\n"+
			"Total amount: KSh %d\n\n"+
			"Please pay via M-PESA:\n"+
			"1. Go to M-PESA menu\n"+
			"2. Select Pay Bill\n"+
			"3. Enter Business No: 123456\n"+
			"4. Enter Account No: DATA\n"+
			"5. Enter Amount: %d\n"+
			"6. Enter your M-PESA PIN and confirm\n\n"+
			"After payment, please send your transaction ID.",
		res.Quantity, res.Package.Label, res.Total, res.Total,
	)
}

func orderSubmittedText(order bundle.Order) string {
	return fmt.Sprintf(
		"Thank you! Your order (ID: %s) has been submitted for review.\n"+
			"We'll process it shortly and notify you once it's approved.",
		order.ID,
	)
}

func statusToggledText(res bundle.ToggleResult) string {
	if !res.Online {
		return "Bot is now OFFLINE."
	}
	if res.Notified == 0 {
		return "Bot is now ONLINE."
	}
	return fmt.Sprintf("Bot is now ONLINE. Notified %d users who tried when offline.", res.Notified)
}

func offlineNoticeUpdatedText(notice string) string {
	return fmt.Sprintf("Offline message updated successfully:\n\n%s", notice)
}

func approvedAdminText(orderID string, notifyErr error) string {
	if notifyErr != nil {
		return fmt.Sprintf("✅ Order approved but failed to notify user: %v", notifyErr)
	}
	return fmt.Sprintf("✅ Order %s has been approved and activated.\nUser has been notified.", orderID)
}

func rejectedAdminText(orderID string, notifyErr error) string {
	if notifyErr != nil {
		return fmt.Sprintf("❌ Order rejected but failed to notify user: %v", notifyErr)
	}
	return fmt.Sprintf("❌ Order %s has been rejected.\nUser has been notified.", orderID)
}
