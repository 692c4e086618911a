package services

import (
	"fmt"
	"log"

	"merch_shop/internal/fiscal"
	"merch_shop/internal/models"
	"merch_shop/pkg/telegram"
)

// telegramNotifier implements Notifier over the Bot API, fanning admin
// events out to each admin chat plus the shared group chat.
type telegramNotifier struct {
	client      *telegram.Client
	adminChats  []int64
	groupChatID int64
}

func NewTelegramNotifier(client *telegram.Client, adminChats []int64, groupChatID int64) Notifier {
	return &telegramNotifier{
		client:      client,
		adminChats:  adminChats,
		groupChatID: groupChatID,
	}
}

func (n *telegramNotifier) adminRecipients() []int64 {
	return append(append([]int64{}, n.adminChats...), n.groupChatID)
}

func (n *telegramNotifier) sendAdmins(text string, markup *telegram.InlineKeyboardMarkup) {
	for _, chatID := range n.adminRecipients() {
		if err := n.client.SendMessage(chatID, text, markup); err != nil {
			log.Printf("failed to notify chat %d: %v", chatID, err)
		}
	}
}

func (n *telegramNotifier) sendClient(chatID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	if err := n.client.SendMessage(chatID, text, markup); err != nil {
		log.Printf("failed to notify client %d: %v", chatID, err)
	}
}

func (n *telegramNotifier) OrderSubmitted(order *models.Order, client *models.Client) {
	text := fmt.Sprintf(
		"📣 <b>New order #%d</b>\n\n"+
			"👤 <b>Client:</b> %s (@%s, %s)\n"+
			"📦 <b>Product:</b> %s\n"+
			"🔢 <b>Quantity:</b> %d\n"+
			"📝 <b>Design:</b> %s\n"+
			"🗒 <b>Comment:</b> %s",
		order.ID, client.Name, client.Username, client.Contact,
		order.Product, order.Quantity, order.DesignText, order.DeliveryComment,
	)
	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "✅ Approve", CallbackData: fmt.Sprintf("approve_%d", order.ID)},
			{Text: "❌ Reject", CallbackData: fmt.Sprintf("reject_%d", order.ID)},
		}},
	}
	n.sendAdmins(text, markup)

	for _, chatID := range n.adminRecipients() {
		if order.LocationLat != nil && order.LocationLon != nil {
			if err := n.client.SendLocation(chatID, *order.LocationLat, *order.LocationLon); err != nil {
				log.Printf("failed to send order %d location to %d: %v", order.ID, chatID, err)
			}
		}
		if order.DesignAssetRef != "" {
			if err := n.client.SendDocument(chatID, order.DesignAssetRef); err != nil {
				log.Printf("failed to send order %d design to %d: %v", order.ID, chatID, err)
			}
		}
	}
}

func (n *telegramNotifier) OrderRejected(order *models.Order) {
	n.sendClient(order.ClientID, fmt.Sprintf("Your order #%d was rejected.", order.ID), nil)
}

func (n *telegramNotifier) PriceProposed(order *models.Order) {
	text := fmt.Sprintf(
		"Your order #%d was approved!\n"+
			"Unit price: %s sum\n"+
			"Total: %s sum\n"+
			"Do you confirm the order?",
		order.ID, order.UnitPrice.FormatSum(), order.TotalAmount.FormatSum(),
	)
	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "✅ Confirm", CallbackData: fmt.Sprintf("confirm_%d", order.ID)}},
			{{Text: "❌ Cancel order", CallbackData: fmt.Sprintf("cancel_%d", order.ID)}},
		},
	}
	n.sendClient(order.ClientID, text, markup)
}

func (n *telegramNotifier) PaymentLinkIssued(order *models.Order) {
	text := fmt.Sprintf(
		"Order #%d confirmed.\nTotal: %s sum.\nUse the button below to pay.",
		order.ID, order.TotalAmount.FormatSum(),
	)
	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "💳 Pay", URL: order.PaymentURL}},
		},
	}
	n.sendClient(order.ClientID, text, markup)
}

func (n *telegramNotifier) PaymentCompleted(order *models.Order, items []fiscal.LineItem) {
	text := fmt.Sprintf(
		"💰 <b>Payment received!</b>\n\n"+
			"✅ Order <b>#%d</b> is paid.\n"+
			"📦 Product: <b>%s</b>\n"+
			"🔢 Quantity: <b>%d</b>\n"+
			"🧾 Total: <b>%s</b> sum",
		order.ID, order.Product, order.Quantity, order.TotalAmount.FormatSum(),
	)
	n.sendAdmins(text, nil)
	n.sendClient(order.ClientID, fmt.Sprintf("Payment for order #%d received. We are on it! 🎉", order.ID), nil)
}

func (n *telegramNotifier) FiscalSubmissionFailed(order *models.Order, cause error) {
	text := fmt.Sprintf(
		"⚠️ Fiscal data for paid order <b>#%d</b> was not submitted: %v\n"+
			"The payment is captured; resubmit the fiscal record manually.",
		order.ID, cause,
	)
	n.sendAdmins(text, nil)
}
