package domain

import (
	"time"

	"github.com/google/uuid"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

type Student struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name  string    `json:"name"`
	Email string    `gorm:"uniqueIndex" json:"email"`
	Plan  Plan      `gorm:"type:varchar(16);default:'free'" json:"plan"`
	Role  Role      `gorm:"type:varchar(16);default:'student';index" json:"role"`
	Image string    `json:"image"`

	// ID клиента в платежном провайдере. Появляется после первой подписки.
	CustomerID *string `gorm:"unique" json:"customerId,omitempty"`

	PasswordHash string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Student) IsTeacher() bool {
	return s.Role == RoleTeacher
}

func (s *Student) HasPremium() bool {
	return s.Plan == PlanPremium
}

// Отметка о просмотре видео. Одна строка на студента+курс+видео.
type VideoCompletion struct {
	StudentID uuid.UUID `gorm:"type:uuid;primaryKey" json:"studentId"`
	CourseID  uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"courseId"`
	VideoID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"videoId"`
	Completed bool      `json:"completed"`
	UpdatedAt time.Time `json:"updatedAt"`
}
