package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/waste3d/coursehub-api/internal/domain"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) Find(ctx context.Context, courseID, studentID uuid.UUID) (*domain.Purchase, error) {
	var purchase domain.Purchase
	err := r.db.WithContext(ctx).
		First(&purchase, "course_id = ? AND student_id = ?", courseID, studentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *PurchaseRepository) Insert(ctx context.Context, p *domain.Purchase) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PurchaseRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]domain.Purchase, error) {
	var purchases []domain.Purchase
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at desc").
		Find(&purchases).Error
	return purchases, err
}

// PurchaserIDs — id всех купивших курс, для прогрева purchaser-set кеша.
func (r *PurchaseRepository) PurchaserIDs(ctx context.Context, courseID uuid.UUID) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.Purchase{}).
		Where("course_id = ?", courseID).
		Pluck("student_id", &ids).Error
	return ids, err
}

// CountByTeacher — аналитика преподавателя: сколько покупок у каждого курса.
func (r *PurchaseRepository) CountByTeacher(ctx context.Context, teacherID uuid.UUID) ([]domain.CoursePurchaseCount, error) {
	var rows []domain.CoursePurchaseCount
	err := r.db.WithContext(ctx).Model(&domain.Purchase{}).
		Select("courses.id as course_id, courses.title as title, count(purchases.id) as purchases").
		Joins("JOIN courses ON courses.id = purchases.course_id").
		Where("courses.teacher_id = ?", teacherID).
		Group("courses.id, courses.title").
		Scan(&rows).Error
	return rows, err
}

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) GetByStudent(ctx context.Context, studentID uuid.UUID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.db.WithContext(ctx).First(&sub, "student_id = ?", studentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Upsert по student_id: провайдер может прислать дубликат события почти
// одновременно, insert-or-update вместо insert закрывает гонку на уровне БД.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"plan", "period", "start_date", "end_date"}),
	}).Create(sub).Error
}

func (r *SubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

// DeleteWithPlanReset — удаление подписки и сброс плана одним стором-уровневым
// транзактом: кеш такой атомарности дать не может.
func (r *SubscriptionRepository) DeleteWithPlanReset(ctx context.Context, studentID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.Subscription{}, "student_id = ?", studentID).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Student{}).
			Where("id = ?", studentID).
			Update("plan", domain.PlanFree).Error
	})
}
