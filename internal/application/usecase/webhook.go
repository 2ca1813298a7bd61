package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/waste3d/coursehub-api/internal/domain"
	"github.com/waste3d/coursehub-api/internal/infrastructure/cache"
	"github.com/waste3d/coursehub-api/internal/infrastructure/payment"
)

// PaymentWebhookProcessor — конечный автомат над жизненным циклом покупок
// и подписок. Провайдер доставляет события минимум один раз и в любом
// порядке, поэтому каждый обработчик идемпотентен по содержимому события,
// а не по его id: повтор даёт тот же конечный стейт без дублей строк.
type PaymentWebhookProcessor struct {
	cache    Cache
	scanner  Scanner
	students StudentStore
	purch    PurchaseStore
	subs     SubscriptionStore
	gateway  Gateway
	mailer   Mailer
	notifier Notifier
	portal   string // ссылка на портал оплаты для письма о неудачном списании
}

func NewPaymentWebhookProcessor(
	c Cache, scanner Scanner, students StudentStore, purch PurchaseStore,
	subs SubscriptionStore, gateway Gateway, mailer Mailer, notifier Notifier,
	portalURL string,
) *PaymentWebhookProcessor {
	return &PaymentWebhookProcessor{
		cache: c, scanner: scanner, students: students, purch: purch,
		subs: subs, gateway: gateway, mailer: mailer, notifier: notifier,
		portal: portalURL,
	}
}

func (p *PaymentWebhookProcessor) Process(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := p.gateway.ParseEvent(payload, sigHeader)
	if err != nil {
		return err
	}

	switch event.Type {
	case payment.EventCheckoutCompleted:
		if event.Session.Mode == payment.ModeSubscription {
			return p.handleSubscriptionCheckout(ctx, event.Session)
		}
		return p.handleCourseCheckout(ctx, event.Session)
	case payment.EventInvoiceFailed:
		return p.handleInvoiceFailed(ctx, event.Invoice)
	case payment.EventSubscriptionUpdated:
		return p.handleSubscriptionUpdated(ctx, event.Subscription)
	case payment.EventSubscriptionDeleted:
		return p.handleSubscriptionDeleted(ctx, event.Subscription)
	default:
		return nil
	}
}

// handleCourseCheckout — разовая покупка курса. Повторная доставка того же
// события натыкается на уже существующую строку и выходит без изменений.
func (p *PaymentWebhookProcessor) handleCourseCheckout(ctx context.Context, s *payment.CheckoutSession) error {
	if !s.Paid {
		return nil
	}
	courseID, err := uuid.Parse(s.CourseID)
	if err != nil {
		return fmt.Errorf("webhook: session %s course id: %w", s.ID, domain.ErrReconciliation)
	}
	studentID, err := uuid.Parse(s.StudentID)
	if err != nil {
		return fmt.Errorf("webhook: session %s student id: %w", s.ID, domain.ErrReconciliation)
	}

	if _, err := p.purch.Find(ctx, courseID, studentID); err == nil {
		return nil // уже обработано предыдущей доставкой
	} else if !isNotFound(err) {
		return fmt.Errorf("webhook: lookup purchase: %w", err)
	}

	purchase := &domain.Purchase{
		ID:        uuid.New(),
		CourseID:  courseID,
		StudentID: studentID,
		Brand:     s.Method.Brand,
		Card:      s.Method.Last4,
		ExpMonth:  s.Method.ExpMonth,
		ExpYear:   s.Method.ExpYear,
		PaymentID: s.Method.ID,
	}
	if err := p.purch.Insert(ctx, purchase); err != nil {
		return fmt.Errorf("webhook: insert purchase: %w", err)
	}

	if err := p.cache.AddSetMember(ctx, cache.PurchasersKey(s.CourseID), s.StudentID); err != nil {
		log.Printf("webhook: cache patch purchasers course=%s: %v", s.CourseID, err)
	}
	if err := p.cache.AddSetMember(ctx, cache.StudentPurchasesKey(s.StudentID), s.CourseID); err != nil {
		log.Printf("webhook: cache patch purchases student=%s: %v", s.StudentID, err)
	}
	if err := p.notifier.PublishJSON(ctx, "payment.course.completed", purchase); err != nil {
		log.Printf("webhook: notify purchase %s: %v", purchase.ID, err)
	}
	return nil
}

// handleSubscriptionCheckout — оформление подписки. Upsert по student_id
// перекрывает гонку почти одновременных дублей от провайдера.
func (p *PaymentWebhookProcessor) handleSubscriptionCheckout(ctx context.Context, s *payment.CheckoutSession) error {
	student, err := p.resolveStudentByEmail(ctx, s.CustomerEmail)
	if err != nil {
		return err
	}

	if student.CustomerID == nil && s.CustomerID != "" {
		if err := p.students.AttachCustomer(ctx, student.ID, s.CustomerID); err != nil {
			return fmt.Errorf("webhook: attach customer: %w", err)
		}
	}

	// Сессия вебхука несёт подписку одним id, без цены. Тариф берём
	// у провайдера, иначе годовой подписчик получил бы месячный период.
	priceID := s.PriceID
	if priceID == "" && s.SubscriptionID != "" {
		state, err := p.gateway.RetrieveSubscription(ctx, s.SubscriptionID)
		if err != nil {
			return fmt.Errorf("webhook: subscription %s: %w", s.SubscriptionID, err)
		}
		priceID = state.PriceID
	}

	period := p.gateway.PeriodFromPrice(priceID)
	sub := domain.NewSubscription(student.ID, period)
	if err := p.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("webhook: upsert subscription: %w", err)
	}
	if err := p.students.UpdatePlan(ctx, student.ID, domain.PlanPremium); err != nil {
		return fmt.Errorf("webhook: update plan: %w", err)
	}

	p.patchSubscriptionCache(ctx, student.ID, sub)
	if err := p.notifier.PublishJSON(ctx, "payment.subscription.started", sub); err != nil {
		log.Printf("webhook: notify subscription %s: %v", sub.ID, err)
	}
	return nil
}

// handleInvoiceFailed ничего не мутирует: шлём письмо со ссылкой на оплату
// и возвращаем ошибку, чтобы событие легло в лог неуспехом.
func (p *PaymentWebhookProcessor) handleInvoiceFailed(ctx context.Context, inv *payment.Invoice) error {
	student, err := p.resolveStudentByEmail(ctx, inv.CustomerEmail)
	if err != nil {
		return err
	}

	link := inv.HostedURL
	if link == "" {
		link = p.portal
	}
	if err := p.mailer.SendPaymentFailed(student.Email, inv.ID, link); err != nil {
		log.Printf("webhook: payment-failed mail to %s: %v", student.Email, err)
	}
	if err := p.notifier.PublishJSON(ctx, "payment.invoice.failed", inv); err != nil {
		log.Printf("webhook: notify invoice %s: %v", inv.ID, err)
	}
	return fmt.Errorf("webhook: invoice %s payment failed: %w", inv.ID, domain.ErrReconciliation)
}

// handleSubscriptionUpdated — продление: переписываем период и даты из
// события. Отсутствие студента или подписки — жёсткая ошибка, не no-op.
func (p *PaymentWebhookProcessor) handleSubscriptionUpdated(ctx context.Context, st *payment.SubscriptionState) error {
	student, err := p.students.GetByCustomerID(ctx, st.CustomerID)
	if err != nil {
		return fmt.Errorf("webhook: customer %s: %w", st.CustomerID, domain.ErrReconciliation)
	}
	sub, err := p.subs.GetByStudent(ctx, student.ID)
	if err != nil {
		return fmt.Errorf("webhook: subscription for %s: %w", student.ID, domain.ErrReconciliation)
	}

	sub.Plan = domain.PlanPremium
	sub.Period = p.gateway.PeriodFromPrice(st.PriceID)
	sub.StartDate = st.PeriodStart
	sub.EndDate = st.PeriodEnd
	if err := p.subs.Update(ctx, sub); err != nil {
		return fmt.Errorf("webhook: update subscription: %w", err)
	}
	if err := p.students.UpdatePlan(ctx, student.ID, domain.PlanPremium); err != nil {
		return fmt.Errorf("webhook: update plan: %w", err)
	}

	p.patchSubscriptionCache(ctx, student.ID, sub)
	return nil
}

// handleSubscriptionDeleted — отмена: строка подписки и сброс плана уходят
// одной транзакцией store, кэш чистим следом best-effort.
func (p *PaymentWebhookProcessor) handleSubscriptionDeleted(ctx context.Context, st *payment.SubscriptionState) error {
	student, err := p.students.GetByCustomerID(ctx, st.CustomerID)
	if err != nil {
		return fmt.Errorf("webhook: customer %s: %w", st.CustomerID, domain.ErrReconciliation)
	}
	if err := p.subs.DeleteWithPlanReset(ctx, student.ID); err != nil {
		return fmt.Errorf("webhook: cancel subscription: %w", err)
	}

	if err := p.cache.Delete(ctx, cache.SubscriptionKey(student.ID.String())); err != nil {
		log.Printf("webhook: cache evict subscription student=%s: %v", student.ID, err)
	}
	if err := p.cache.PutField(ctx, cache.StudentKey(student.ID.String()), "plan", string(domain.PlanFree)); err != nil {
		log.Printf("webhook: cache patch plan student=%s: %v", student.ID, err)
	}
	if err := p.notifier.PublishJSON(ctx, "payment.subscription.cancelled", map[string]string{"studentId": student.ID.String()}); err != nil {
		log.Printf("webhook: notify cancellation student=%s: %v", student.ID, err)
	}
	return nil
}

// resolveStudentByEmail — двухъярусный поиск: скан student:* по email,
// затем store. События провайдера несут только его customer id и email.
func (p *PaymentWebhookProcessor) resolveStudentByEmail(ctx context.Context, email string) (*domain.Student, error) {
	if email == "" {
		return nil, fmt.Errorf("webhook: event without customer email: %w", domain.ErrReconciliation)
	}
	student, err := p.scanner.FindStudentByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("webhook: scan students: %w", err)
	}
	if student != nil {
		return student, nil
	}
	student, err = p.students.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("webhook: student %s: %w", email, domain.ErrReconciliation)
		}
		return nil, fmt.Errorf("webhook: lookup student: %w", err)
	}
	return student, nil
}

func (p *PaymentWebhookProcessor) patchSubscriptionCache(ctx context.Context, studentID uuid.UUID, sub *domain.Subscription) {
	if err := p.cache.Put(ctx, cache.SubscriptionKey(studentID.String()), cache.SubscriptionHash(sub)); err != nil {
		log.Printf("webhook: cache patch subscription student=%s: %v", studentID, err)
	}
	if err := p.cache.PutField(ctx, cache.StudentKey(studentID.String()), "plan", string(domain.PlanPremium)); err != nil {
		log.Printf("webhook: cache patch plan student=%s: %v", studentID, err)
	}
}
