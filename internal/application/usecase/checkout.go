package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/waste3d/coursehub-api/internal/domain"
	"github.com/waste3d/coursehub-api/internal/infrastructure/cache"
)

// CheckoutUseCase — синхронная сторона оплат: создание сессий, проверка
// оплаты после редиректа, портал управления подпиской.
type CheckoutUseCase struct {
	cache    Cache
	courses  CourseStore
	students StudentStore
	purch    PurchaseStore
	gateway  Gateway
	notifier Notifier
}

func NewCheckoutUseCase(c Cache, courses CourseStore, students StudentStore, purch PurchaseStore, gateway Gateway, notifier Notifier) *CheckoutUseCase {
	return &CheckoutUseCase{cache: c, courses: courses, students: students, purch: purch, gateway: gateway, notifier: notifier}
}

// Checkout — сессия разовой оплаты курса. Повторная покупка той же парой
// (курс, студент) — ошибка конфликта, а не тихий редирект.
func (u *CheckoutUseCase) Checkout(ctx context.Context, courseID, studentID uuid.UUID) (string, error) {
	course, err := u.courses.GetByID(ctx, courseID)
	if err != nil {
		return "", fmt.Errorf("checkout: load course: %w", err)
	}
	if course.TeacherID == studentID {
		return "", fmt.Errorf("checkout: own course: %w", domain.ErrForbidden)
	}

	if _, err := u.purch.Find(ctx, courseID, studentID); err == nil {
		return "", fmt.Errorf("checkout: course %s already purchased: %w", courseID, domain.ErrConflict)
	} else if !isNotFound(err) {
		return "", fmt.Errorf("checkout: lookup purchase: %w", err)
	}

	url, err := u.gateway.CreateCourseSession(ctx, course, studentID.String())
	if err != nil {
		return "", err
	}
	return url, nil
}

// VerifyPayment — синхронный опрос "прошла ли оплата" после редиректа.
// Сессию перечитываем у провайдера: покупка никогда не создаётся из
// идентификаторов, присланных клиентом.
func (u *CheckoutUseCase) VerifyPayment(ctx context.Context, sessionID string, studentID uuid.UUID) (*domain.Purchase, error) {
	session, err := u.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Paid {
		return nil, fmt.Errorf("verify: session %s not paid: %w", sessionID, domain.ErrConflict)
	}
	if session.StudentID != studentID.String() {
		return nil, fmt.Errorf("verify: session %s belongs to another student: %w", sessionID, domain.ErrForbidden)
	}
	courseID, err := uuid.Parse(session.CourseID)
	if err != nil {
		return nil, fmt.Errorf("verify: session %s course id: %w", sessionID, domain.ErrExternalProvider)
	}

	// Вебхук мог успеть первым — тогда строка уже есть.
	if existing, err := u.purch.Find(ctx, courseID, studentID); err == nil {
		return existing, nil
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("verify: lookup purchase: %w", err)
	}

	purchase := &domain.Purchase{
		ID:        uuid.New(),
		CourseID:  courseID,
		StudentID: studentID,
		Brand:     session.Method.Brand,
		Card:      session.Method.Last4,
		ExpMonth:  session.Method.ExpMonth,
		ExpYear:   session.Method.ExpYear,
		PaymentID: session.Method.ID,
	}
	if err := u.purch.Insert(ctx, purchase); err != nil {
		return nil, fmt.Errorf("verify: insert purchase: %w", err)
	}

	if err := u.cache.AddSetMember(ctx, cache.PurchasersKey(session.CourseID), studentID.String()); err != nil {
		log.Printf("verify: cache patch purchasers course=%s: %v", session.CourseID, err)
	}
	if err := u.cache.AddSetMember(ctx, cache.StudentPurchasesKey(studentID.String()), session.CourseID); err != nil {
		log.Printf("verify: cache patch purchases student=%s: %v", studentID, err)
	}
	if err := u.notifier.PublishJSON(ctx, "payment.course.completed", purchase); err != nil {
		log.Printf("verify: notify purchase %s: %v", purchase.ID, err)
	}
	return purchase, nil
}

// SubscriptionCheckout — сессия оформления подписки на выбранный период.
func (u *CheckoutUseCase) SubscriptionCheckout(ctx context.Context, studentID uuid.UUID, period domain.SubscriptionPeriod) (string, error) {
	student, err := u.students.GetByID(ctx, studentID)
	if err != nil {
		return "", fmt.Errorf("subscription checkout: load student: %w", err)
	}
	if student.HasPremium() {
		return "", fmt.Errorf("subscription checkout: already premium: %w", domain.ErrConflict)
	}
	return u.gateway.CreateSubscriptionSession(ctx, student, period)
}

// Portal — ссылка на портал провайдера для управления подпиской.
// Если у студента ещё нет customer id, заводим его и сохраняем.
func (u *CheckoutUseCase) Portal(ctx context.Context, studentID uuid.UUID) (string, error) {
	student, err := u.students.GetByID(ctx, studentID)
	if err != nil {
		return "", fmt.Errorf("portal: load student: %w", err)
	}

	customerID := ""
	if student.CustomerID != nil {
		customerID = *student.CustomerID
	} else {
		customerID, err = u.gateway.EnsureCustomer(ctx, student.Email)
		if err != nil {
			return "", err
		}
		if err := u.students.AttachCustomer(ctx, studentID, customerID); err != nil {
			return "", fmt.Errorf("portal: attach customer: %w", err)
		}
	}
	return u.gateway.PortalSession(ctx, customerID)
}
