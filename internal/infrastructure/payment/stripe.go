package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/waste3d/coursehub-api/internal/domain"
)

// Типы событий, которые обрабатывает вебхук. Все остальное — EventIgnored.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.session.completed"
	EventInvoiceFailed       EventType = "invoice.payment_failed"
	EventSubscriptionUpdated EventType = "customer.subscription.updated"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
	EventIgnored             EventType = "ignored"
)

type SessionMode string

const (
	ModePayment      SessionMode = "payment"
	ModeSubscription SessionMode = "subscription"
)

// Сводка метода оплаты для строки покупки.
type MethodSummary struct {
	ID       string
	Brand    string
	Last4    string
	ExpMonth int
	ExpYear  int
}

type CheckoutSession struct {
	ID             string
	Mode           SessionMode
	Paid           bool
	CustomerID     string
	CustomerEmail  string
	CourseID       string // из metadata
	StudentID      string // client_reference_id
	SubscriptionID string
	PriceID        string // пустой, если провайдер прислал подписку одним id
	Method         MethodSummary
}

type Invoice struct {
	ID            string
	CustomerEmail string
	HostedURL     string
}

type SubscriptionState struct {
	ID          string
	CustomerID  string
	PriceID     string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Event — провайдеро-нейтральная форма вебхук-события. Заполнено ровно
// одно из полей, соответствующее Type.
type Event struct {
	Type         EventType
	Session      *CheckoutSession
	Invoice      *Invoice
	Subscription *SubscriptionState
}

type Config struct {
	APIKey         string
	WebhookSecret  string // выбирается по окружению: live или test
	MonthlyPriceID string
	YearlyPriceID  string
	SuccessURL     string
	CancelURL      string
}

// Gateway — явно сконструированный клиент Stripe, без пакетного синглтона.
type Gateway struct {
	api *client.API
	cfg Config
}

func NewGateway(cfg Config) *Gateway {
	api := &client.API{}
	api.Init(cfg.APIKey, nil)
	return &Gateway{api: api, cfg: cfg}
}

// CreateCourseSession — разовая оплата курса. Идентификаторы курса и студента
// едут в metadata/client_reference_id и возвращаются к нам в вебхуке.
func (g *Gateway) CreateCourseSession(ctx context.Context, course *domain.Course, studentID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String("usd"),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(course.Title),
					Description: stripe.String(course.Description),
					Images:      stripe.StringSlice([]string{course.Image}),
				},
				UnitAmount: stripe.Int64(int64(course.Price) * 100),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(fmt.Sprintf("%s/verify?session_id={CHECKOUT_SESSION_ID}&course_id=%s", g.cfg.SuccessURL, course.ID)),
		CancelURL:         stripe.String(g.cfg.CancelURL + "/cancel"),
		ClientReferenceID: stripe.String(studentID),
	}
	params.Context = ctx
	params.AddMetadata("course_id", course.ID.String())
	params.AddMetadata("student_id", studentID)

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", domain.ErrExternalProvider)
	}
	return sess.URL, nil
}

// CreateSubscriptionSession — оформление подписки на тариф premium.
func (g *Gateway) CreateSubscriptionSession(ctx context.Context, student *domain.Student, period domain.SubscriptionPeriod) (string, error) {
	priceID := g.cfg.MonthlyPriceID
	if period == domain.PeriodYearly {
		priceID = g.cfg.YearlyPriceID
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(priceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(g.cfg.SuccessURL + "/subscribed"),
		CancelURL:         stripe.String(g.cfg.CancelURL + "/cancel"),
		ClientReferenceID: stripe.String(student.ID.String()),
	}
	params.Context = ctx
	if student.CustomerID != nil {
		params.Customer = stripe.String(*student.CustomerID)
	} else {
		params.CustomerEmail = stripe.String(student.Email)
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create subscription session: %w", domain.ErrExternalProvider)
	}
	return sess.URL, nil
}

// RetrieveSession перечитывает сессию у провайдера. Синхронная верификация
// оплаты никогда не верит идентификаторам с клиента.
func (g *Gateway) RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent.payment_method")

	sess, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve session %s: %w", sessionID, domain.ErrExternalProvider)
	}
	return mapSession(sess), nil
}

// EnsureCustomer находит клиента провайдера по email либо создает нового.
func (g *Gateway) EnsureCustomer(ctx context.Context, email string) (string, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	it := g.api.Customers.List(listParams)
	for it.Next() {
		return it.Customer().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("list customers: %w", domain.ErrExternalProvider)
	}

	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	cust, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", domain.ErrExternalProvider)
	}
	return cust.ID, nil
}

func (g *Gateway) PortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(g.cfg.SuccessURL),
	}
	params.Context = ctx
	sess, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", domain.ErrExternalProvider)
	}
	return sess.URL, nil
}

// RetrieveSubscription перечитывает подписку у провайдера. Нужен после
// checkout.session.completed: там подписка приходит одним id, без позиций.
func (g *Gateway) RetrieveSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := g.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription %s: %w", subscriptionID, domain.ErrExternalProvider)
	}
	state := &SubscriptionState{
		ID:          sub.ID,
		PeriodStart: time.Unix(sub.CurrentPeriodStart, 0),
		PeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0),
	}
	if sub.Customer != nil {
		state.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		state.PriceID = sub.Items.Data[0].Price.ID
	}
	return state, nil
}

// PeriodFromPrice — тариф по id цены провайдера.
func (g *Gateway) PeriodFromPrice(priceID string) domain.SubscriptionPeriod {
	if priceID == g.cfg.YearlyPriceID {
		return domain.PeriodYearly
	}
	return domain.PeriodMonthly
}

// ParseEvent проверяет подпись и приводит событие к нейтральной форме.
func (g *Gateway) ParseEvent(payload []byte, sigHeader string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, g.cfg.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", domain.ErrExternalProvider)
	}

	switch EventType(event.Type) {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", domain.ErrExternalProvider)
		}
		return &Event{Type: EventCheckoutCompleted, Session: mapSession(&sess)}, nil

	case EventInvoiceFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", domain.ErrExternalProvider)
		}
		return &Event{Type: EventInvoiceFailed, Invoice: &Invoice{
			ID:            inv.ID,
			CustomerEmail: inv.CustomerEmail,
			HostedURL:     inv.HostedInvoiceURL,
		}}, nil

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", domain.ErrExternalProvider)
		}
		state := &SubscriptionState{
			ID:          sub.ID,
			PeriodStart: time.Unix(sub.CurrentPeriodStart, 0),
			PeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0),
		}
		if sub.Customer != nil {
			state.CustomerID = sub.Customer.ID
		}
		if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			state.PriceID = sub.Items.Data[0].Price.ID
		}
		return &Event{Type: EventType(event.Type), Subscription: state}, nil
	}

	return &Event{Type: EventIgnored}, nil
}

func mapSession(sess *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            sess.ID,
		Mode:          SessionMode(sess.Mode),
		Paid:          sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		CustomerEmail: sess.CustomerEmail,
		StudentID:     sess.ClientReferenceID,
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		out.CustomerEmail = sess.CustomerDetails.Email
	}
	if sess.Metadata != nil {
		out.CourseID = sess.Metadata["course_id"]
		if out.StudentID == "" {
			out.StudentID = sess.Metadata["student_id"]
		}
	}
	// В вебхук-событии subscription приходит голым id: Items там нет,
	// цену потом перечитывает RetrieveSubscription.
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
		if sess.Subscription.Items != nil && len(sess.Subscription.Items.Data) > 0 &&
			sess.Subscription.Items.Data[0].Price != nil {
			out.PriceID = sess.Subscription.Items.Data[0].Price.ID
		}
	}
	if pi := sess.PaymentIntent; pi != nil && pi.PaymentMethod != nil {
		out.Method.ID = pi.PaymentMethod.ID
		if card := pi.PaymentMethod.Card; card != nil {
			out.Method.Brand = string(card.Brand)
			out.Method.Last4 = card.Last4
			out.Method.ExpMonth = int(card.ExpMonth)
			out.Method.ExpYear = int(card.ExpYear)
		}
	}
	return out
}
