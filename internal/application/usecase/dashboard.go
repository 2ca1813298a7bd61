package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/waste3d/coursehub-api/internal/domain"
	"github.com/waste3d/coursehub-api/internal/infrastructure/cache"
)

// DashboardUseCase — личный кабинет: профиль, транзакции, прогресс по
// купленным курсам, аналитика преподавателя.
type DashboardUseCase struct {
	cache    Cache
	courses  CourseStore
	students StudentStore
	purch    PurchaseStore
	subs     SubscriptionStore
	access   *EntitlementResolver
}

func NewDashboardUseCase(c Cache, courses CourseStore, students StudentStore, purch PurchaseStore, subs SubscriptionStore, access *EntitlementResolver) *DashboardUseCase {
	return &DashboardUseCase{cache: c, courses: courses, students: students, purch: purch, subs: subs, access: access}
}

func (u *DashboardUseCase) UpdateName(ctx context.Context, studentID uuid.UUID, name string) (*domain.Student, error) {
	if err := u.students.UpdateName(ctx, studentID, name); err != nil {
		return nil, fmt.Errorf("update name: %w", err)
	}
	student, err := u.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("update name: reload: %w", err)
	}
	if err := u.cache.Put(ctx, cache.StudentKey(studentID.String()), cache.StudentHash(student)); err != nil {
		log.Printf("dashboard: cache rewrite student=%s: %v", studentID, err)
	}
	return student, nil
}

// Transaction — строка истории платежей: покупка плюс снапшот курса.
type Transaction struct {
	Purchase domain.Purchase `json:"purchase"`
	Course   *domain.Course  `json:"course,omitempty"`
}

type BillingOverview struct {
	Transactions []Transaction        `json:"transactions"`
	Subscription *domain.Subscription `json:"subscription,omitempty"`
}

// Transactions — покупки студента со снапшотами курсов (cache-aside) и
// живой подпиской, если она есть.
func (u *DashboardUseCase) Transactions(ctx context.Context, studentID uuid.UUID) (*BillingOverview, error) {
	purchases, err := u.purch.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}

	out := &BillingOverview{Transactions: make([]Transaction, 0, len(purchases))}
	for _, p := range purchases {
		course, err := u.courseSnapshot(ctx, p.CourseID)
		if err != nil {
			return nil, fmt.Errorf("transactions: course %s: %w", p.CourseID, err)
		}
		out.Transactions = append(out.Transactions, Transaction{Purchase: p, Course: course})
	}

	sub, err := u.subscription(ctx, studentID)
	if err != nil {
		return nil, err
	}
	out.Subscription = sub
	return out, nil
}

// CourseWithProgress — купленный курс и процент прохождения.
type CourseWithProgress struct {
	Course   domain.Course `json:"course"`
	Progress int           `json:"progress"`
}

// BrowseCourses — купленные курсы с прогрессом каждого.
func (u *DashboardUseCase) BrowseCourses(ctx context.Context, studentID uuid.UUID) ([]CourseWithProgress, error) {
	purchases, err := u.purch.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("browse courses: %w", err)
	}

	result := make([]CourseWithProgress, 0, len(purchases))
	for _, p := range purchases {
		progress, err := u.access.CourseStateDetail(ctx, p.CourseID, studentID)
		if err != nil {
			return nil, fmt.Errorf("browse courses: progress %s: %w", p.CourseID, err)
		}
		course, err := u.courseSnapshot(ctx, p.CourseID)
		if err != nil {
			return nil, fmt.Errorf("browse courses: course %s: %w", p.CourseID, err)
		}
		if course == nil {
			continue
		}
		result = append(result, CourseWithProgress{Course: *course, Progress: progress.Percent})
	}
	return result, nil
}

// Analytics — сколько раз купили каждый курс преподавателя.
func (u *DashboardUseCase) Analytics(ctx context.Context, teacherID uuid.UUID) ([]domain.CoursePurchaseCount, error) {
	student, err := u.students.GetByID(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	if !student.IsTeacher() {
		return nil, fmt.Errorf("analytics: %w", domain.ErrForbidden)
	}
	return u.purch.CountByTeacher(ctx, teacherID)
}

// TeacherCourses идёт прямо в store: выборка по teacher_id со своим
// индексом быстрее полного скана кэша.
func (u *DashboardUseCase) TeacherCourses(ctx context.Context, teacherID uuid.UUID) ([]domain.Course, error) {
	student, err := u.students.GetByID(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("teacher courses: %w", err)
	}
	if !student.IsTeacher() {
		return nil, fmt.Errorf("teacher courses: %w", domain.ErrForbidden)
	}
	return u.courses.FindByTeacher(ctx, teacherID)
}

func (u *DashboardUseCase) courseSnapshot(ctx context.Context, courseID uuid.UUID) (*domain.Course, error) {
	fields, ok, err := u.cache.GetAll(ctx, cache.CourseKey(courseID.String()))
	if err != nil {
		return nil, err
	}
	if ok {
		if course, err := cache.CourseFromHash(fields); err == nil {
			return course, nil
		}
	}
	course, err := u.courses.GetByID(ctx, courseID)
	if isNotFound(err) {
		return nil, nil // курс удалён, история платежей это переживёт
	}
	if err != nil {
		return nil, err
	}
	if err := u.cache.Put(ctx, cache.CourseKey(courseID.String()), cache.CourseHash(course)); err != nil {
		log.Printf("dashboard: cache fill course=%s: %v", courseID, err)
	}
	return course, nil
}

func (u *DashboardUseCase) subscription(ctx context.Context, studentID uuid.UUID) (*domain.Subscription, error) {
	fields, ok, err := u.cache.GetAll(ctx, cache.SubscriptionKey(studentID.String()))
	if err != nil {
		return nil, err
	}
	if ok {
		if sub, err := cache.SubscriptionFromHash(fields); err == nil {
			return sub, nil
		}
	}
	sub, err := u.subs.GetByStudent(ctx, studentID)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if err := u.cache.Put(ctx, cache.SubscriptionKey(studentID.String()), cache.SubscriptionHash(sub)); err != nil {
		log.Printf("dashboard: cache fill subscription student=%s: %v", studentID, err)
	}
	return sub, nil
}
