package domain

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionPeriod string

const (
	PeriodMonthly SubscriptionPeriod = "monthly"
	PeriodYearly  SubscriptionPeriod = "yearly"
)

// Покупка курса. Создается ровно один раз на пару (курс, студент),
// повторная попытка — доменная ошибка, а не гонка.
type Purchase struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CourseID  uuid.UUID `gorm:"type:uuid;index" json:"courseId"`
	StudentID uuid.UUID `gorm:"type:uuid;index" json:"studentId"`

	// Сводка по способу оплаты из платежного провайдера
	Brand     string `json:"brand"`
	Card      string `json:"card"` // последние 4 цифры
	ExpMonth  int    `json:"expMonth"`
	ExpYear   int    `json:"expYear"`
	PaymentID string `json:"paymentId"`

	CreatedAt time.Time `json:"createdAt"`
}

// Строка аналитики преподавателя: курс и сколько раз его купили.
type CoursePurchaseCount struct {
	CourseID  uuid.UUID `json:"courseId"`
	Title     string    `json:"title"`
	Purchases int64     `json:"purchases"`
}

// Подписка. Не больше одной живой на студента: при продлении перезаписывается,
// при отмене удаляется вместе со сбросом плана на free.
type Subscription struct {
	ID        uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	StudentID uuid.UUID          `gorm:"type:uuid;uniqueIndex" json:"studentId"`
	Plan      Plan               `gorm:"type:varchar(16)" json:"plan"`
	Period    SubscriptionPeriod `gorm:"type:varchar(16)" json:"period"`
	StartDate time.Time          `json:"startDate"`
	EndDate   time.Time          `json:"endDate"`
}

// NewSubscription — премиум-подписка с периодом от сегодняшней даты.
func NewSubscription(studentID uuid.UUID, period SubscriptionPeriod) *Subscription {
	start := time.Now()
	end := start.AddDate(0, 1, 0)
	if period == PeriodYearly {
		end = start.AddDate(1, 0, 0)
	}
	return &Subscription{
		ID:        uuid.New(),
		StudentID: studentID,
		Plan:      PlanPremium,
		Period:    period,
		StartDate: start,
		EndDate:   end,
	}
}
