package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"merch_shop/internal/models"
	"merch_shop/internal/money"
	"merch_shop/internal/redis"
	"merch_shop/pkg/telegram"
)

// SessionStore holds per-chat conversation state. *redis.Client satisfies it.
type SessionStore interface {
	SetSession(session *redis.IntakeSession, ttl time.Duration) error
	GetSession(chatID int64) (*redis.IntakeSession, error)
	DeleteSession(chatID int64) error
}

// IntakeService walks a chat through order intake and routes admin/client
// callbacks into the lifecycle service.
type IntakeService interface {
	HandleMessage(msg *telegram.Message) error
	HandleCallback(cb *telegram.CallbackQuery) error
}

type intakeService struct {
	sessions      SessionStore
	clientService ClientService
	orderService  OrderService
	tg            *telegram.Client
	adminIDs      map[int64]bool
	sessionTTL    time.Duration
}

func NewIntakeService(
	sessions SessionStore,
	clientService ClientService,
	orderService OrderService,
	tg *telegram.Client,
	adminIDs []int64,
	sessionTTL time.Duration,
) IntakeService {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &intakeService{
		sessions:      sessions,
		clientService: clientService,
		orderService:  orderService,
		tg:            tg,
		adminIDs:      admins,
		sessionTTL:    sessionTTL,
	}
}

func (s *intakeService) HandleMessage(msg *telegram.Message) error {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch text {
	case "/start":
		return s.start(chatID, msg.From)
	case "/cancel":
		s.dropSession(chatID)
		return s.tg.SendMessage(chatID, "Cancelled. Send /start to begin a new order.", nil)
	case "/orders":
		return s.listOrders(chatID)
	}

	session, err := s.sessions.GetSession(chatID)
	if err != nil {
		if errors.Is(err, redis.ErrSessionNotFound) {
			return s.tg.SendMessage(chatID, "Send /start to begin an order.", nil)
		}
		return err
	}

	switch session.Step {
	case redis.StepContact:
		if msg.Contact == nil {
			return s.tg.SendMessage(chatID, "Please share your contact to register.", nil)
		}
		session.Contact = msg.Contact.PhoneNumber
		return s.advance(session, redis.StepName, "Enter your name:")
	case redis.StepName:
		if text == "" {
			return s.tg.SendMessage(chatID, "The name cannot be empty.", nil)
		}
		username := ""
		if msg.From != nil {
			username = msg.From.Username
		}
		if _, err := s.clientService.Register(chatID, username, session.Contact, text); err != nil {
			return err
		}
		session.Name = text
		if err := s.advance(session, redis.StepProduct, fmt.Sprintf("Thanks for registering, %s!", text)); err != nil {
			return err
		}
		return s.promptProduct(chatID)
	case redis.StepQuantity:
		quantity, err := strconv.Atoi(text)
		if err != nil || quantity <= 0 {
			return s.tg.SendMessage(chatID, "Please enter a valid quantity.", nil)
		}
		session.Quantity = quantity
		return s.advance(session, redis.StepDesignText, "Enter the text for your design:")
	case redis.StepDesignText:
		session.DesignText = text
		return s.advance(session, redis.StepDesignPhoto, "Attach a design photo, or skip this step:",
			skipMarkup("skip_photo"))
	case redis.StepDesignPhoto:
		fileID := designFileID(msg)
		if fileID == "" {
			return s.tg.SendMessage(chatID, "Attach a photo or document, or press Skip.", nil)
		}
		session.DesignAssetRef = fileID
		return s.advance(session, redis.StepLocation, "Share the delivery location:")
	case redis.StepLocation:
		if msg.Location == nil {
			return s.tg.SendMessage(chatID, "Please share a location.", nil)
		}
		lat, lon := msg.Location.Latitude, msg.Location.Longitude
		session.LocationLat = &lat
		session.LocationLon = &lon
		return s.advance(session, redis.StepDeliveryComment, "Add a delivery comment, or skip:",
			skipMarkup("skip_comment"))
	case redis.StepDeliveryComment:
		session.DeliveryComment = text
		return s.finishIntake(session)
	case redis.StepAdminPrice:
		return s.handleAdminPrice(session, text)
	}
	return s.tg.SendMessage(chatID, "Send /start to begin an order.", nil)
}

func (s *intakeService) HandleCallback(cb *telegram.CallbackQuery) error {
	if cb.Message == nil || cb.From == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	ack := func(text string, alert bool) {
		if err := s.tg.AnswerCallback(cb.ID, text, alert); err != nil {
			log.Printf("failed to answer callback %s: %v", cb.ID, err)
		}
	}

	switch {
	case strings.HasPrefix(data, "product_"):
		return s.selectProduct(chatID, strings.TrimPrefix(data, "product_"), ack)
	case data == "skip_photo":
		ack("", false)
		session, err := s.sessions.GetSession(chatID)
		if err != nil {
			return err
		}
		return s.advance(session, redis.StepLocation, "Share the delivery location:")
	case data == "skip_comment":
		ack("", false)
		session, err := s.sessions.GetSession(chatID)
		if err != nil {
			return err
		}
		session.DeliveryComment = ""
		return s.finishIntake(session)
	case strings.HasPrefix(data, "approve_"):
		return s.adminApprove(cb, ack)
	case strings.HasPrefix(data, "reject_"):
		return s.adminReject(cb, ack)
	case strings.HasPrefix(data, "confirm_"):
		return s.clientConfirm(chatID, data, ack)
	case strings.HasPrefix(data, "cancel_"):
		return s.clientCancel(chatID, data, ack)
	}
	ack("", false)
	return nil
}

func (s *intakeService) start(chatID int64, from *telegram.User) error {
	if s.clientService.IsRegistered(chatID) {
		session := &redis.IntakeSession{ChatID: chatID, Step: redis.StepProduct, CreatedAt: time.Now()}
		if client, err := s.clientService.GetClient(chatID); err == nil {
			session.Contact = client.Contact
			session.Name = client.Name
		}
		if err := s.sessions.SetSession(session, s.sessionTTL); err != nil {
			return err
		}
		if err := s.tg.SendMessage(chatID, "👋 Welcome back! Let's make an order.", nil); err != nil {
			return err
		}
		return s.promptProduct(chatID)
	}

	session := &redis.IntakeSession{ChatID: chatID, Step: redis.StepContact, CreatedAt: time.Now()}
	if err := s.sessions.SetSession(session, s.sessionTTL); err != nil {
		return err
	}
	return s.tg.SendMessage(chatID, "👋 Welcome! Please share your contact to register.", nil)
}

func (s *intakeService) promptProduct(chatID int64) error {
	var rows [][]telegram.InlineKeyboardButton
	var row []telegram.InlineKeyboardButton
	for _, name := range models.ProductNames() {
		row = append(row, telegram.InlineKeyboardButton{Text: name, CallbackData: "product_" + name})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return s.tg.SendMessage(chatID, "Choose a product:", &telegram.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (s *intakeService) selectProduct(chatID int64, product string, ack func(string, bool)) error {
	session, err := s.sessions.GetSession(chatID)
	if err != nil {
		ack("Session expired, send /start.", true)
		return nil
	}
	if _, ok := models.Catalog[product]; !ok {
		ack("Unknown product.", true)
		return nil
	}
	ack("", false)
	session.Product = product
	return s.advance(session, redis.StepQuantity, fmt.Sprintf("You picked %s. How many?", product))
}

func (s *intakeService) finishIntake(session *redis.IntakeSession) error {
	draft := &OrderDraft{
		ClientID:        session.ChatID,
		Product:         session.Product,
		Quantity:        session.Quantity,
		DesignText:      session.DesignText,
		DesignAssetRef:  session.DesignAssetRef,
		LocationLat:     session.LocationLat,
		LocationLon:     session.LocationLon,
		DeliveryComment: session.DeliveryComment,
	}
	order, err := s.orderService.SubmitOrder(draft)
	if err != nil {
		return err
	}
	s.dropSession(session.ChatID)
	return s.tg.SendMessage(session.ChatID,
		fmt.Sprintf("Your order #%d was sent for review. You will hear from us shortly.", order.ID), nil)
}

func (s *intakeService) adminApprove(cb *telegram.CallbackQuery, ack func(string, bool)) error {
	orderID, ok := parseOrderID(cb.Data, "approve_")
	if !ok {
		ack("Bad order reference.", true)
		return nil
	}
	order, err := s.orderService.Approve(orderID, cb.From.ID)
	if err != nil {
		ack(userFacing(err), true)
		return nil
	}
	ack("Approved.", false)

	// Price entry continues in the admin's own chat.
	session := &redis.IntakeSession{
		ChatID:         cb.From.ID,
		Step:           redis.StepAdminPrice,
		PendingOrderID: order.ID,
		CreatedAt:      time.Now(),
	}
	if err := s.sessions.SetSession(session, s.sessionTTL); err != nil {
		return err
	}
	return s.tg.SendMessage(cb.From.ID,
		fmt.Sprintf("Enter the unit price for order #%d (in sum):", order.ID), nil)
}

func (s *intakeService) handleAdminPrice(session *redis.IntakeSession, text string) error {
	chatID := session.ChatID
	if !s.adminIDs[chatID] {
		s.dropSession(chatID)
		return s.tg.SendMessage(chatID, "You are not allowed to set prices.", nil)
	}
	unitPrice, err := money.ParseSum(text)
	if err != nil {
		return s.tg.SendMessage(chatID, "The price must be a positive whole number of sums.", nil)
	}
	order, err := s.orderService.SetPrice(session.PendingOrderID, unitPrice)
	if err != nil {
		return s.tg.SendMessage(chatID, userFacing(err), nil)
	}
	s.dropSession(chatID)
	return s.tg.SendMessage(chatID,
		fmt.Sprintf("Price for order #%d sent to the client for confirmation.", order.ID), nil)
}

func (s *intakeService) adminReject(cb *telegram.CallbackQuery, ack func(string, bool)) error {
	orderID, ok := parseOrderID(cb.Data, "reject_")
	if !ok {
		ack("Bad order reference.", true)
		return nil
	}
	if _, err := s.orderService.Reject(orderID, cb.From.ID); err != nil {
		ack(userFacing(err), true)
		return nil
	}
	ack("Order rejected.", true)
	return nil
}

func (s *intakeService) clientConfirm(chatID int64, data string, ack func(string, bool)) error {
	orderID, ok := parseOrderID(data, "confirm_")
	if !ok {
		ack("Bad order reference.", true)
		return nil
	}
	ack("", false)
	if _, err := s.orderService.ClientConfirm(orderID); err != nil {
		return s.tg.SendMessage(chatID, userFacing(err), nil)
	}
	// The payment link lands via the notifier.
	return nil
}

func (s *intakeService) clientCancel(chatID int64, data string, ack func(string, bool)) error {
	orderID, ok := parseOrderID(data, "cancel_")
	if !ok {
		ack("Bad order reference.", true)
		return nil
	}
	ack("", false)
	if _, err := s.orderService.ClientCancel(orderID); err != nil {
		return s.tg.SendMessage(chatID, userFacing(err), nil)
	}
	return s.tg.SendMessage(chatID, fmt.Sprintf("Order #%d cancelled.", orderID), nil)
}

func (s *intakeService) listOrders(chatID int64) error {
	orders, err := s.orderService.GetOrdersByClient(chatID)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return s.tg.SendMessage(chatID, "You have no orders yet. Send /start to make one.", nil)
	}
	var b strings.Builder
	b.WriteString("📦 Your orders:\n")
	for _, order := range orders {
		fmt.Fprintf(&b, "#%d %s ×%d — %s\n", order.ID, order.Product, order.Quantity, order.Status)
	}
	return s.tg.SendMessage(chatID, b.String(), nil)
}

func (s *intakeService) advance(session *redis.IntakeSession, step redis.IntakeStep, prompt string, markup ...*telegram.InlineKeyboardMarkup) error {
	session.Step = step
	if err := s.sessions.SetSession(session, s.sessionTTL); err != nil {
		return err
	}
	var kb *telegram.InlineKeyboardMarkup
	if len(markup) > 0 {
		kb = markup[0]
	}
	return s.tg.SendMessage(session.ChatID, prompt, kb)
}

func (s *intakeService) dropSession(chatID int64) {
	if err := s.sessions.DeleteSession(chatID); err != nil {
		log.Printf("failed to drop session for chat %d: %v", chatID, err)
	}
}

func designFileID(msg *telegram.Message) string {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID
	}
	if msg.Document != nil {
		return msg.Document.FileID
	}
	return ""
}

func skipMarkup(callbackData string) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "Skip", CallbackData: callbackData}},
		},
	}
}

func parseOrderID(data, prefix string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimPrefix(data, prefix), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// userFacing maps lifecycle errors to short chat replies.
func userFacing(err error) string {
	switch {
	case errors.Is(err, models.ErrForbidden):
		return "You do not have permission for that."
	case errors.Is(err, models.ErrOrderNotFound):
		return "Order not found."
	case errors.Is(err, models.ErrInvalidTransition):
		return "The order is not in a state that allows this action."
	case errors.Is(err, models.ErrAlreadyPaid):
		return "The order is already paid."
	case errors.Is(err, models.ErrGateway):
		return "Payment service is unavailable, please try again later."
	case errors.Is(err, models.ErrInvalidInput):
		return "Invalid input."
	}
	return "Something went wrong, please try again."
}
