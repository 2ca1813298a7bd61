package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/waste3d/coursehub-api/internal/domain"
)

type StudentRepository struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) Create(ctx context.Context, s *domain.Student) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *StudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Student, error) {
	var student domain.Student
	err := r.db.WithContext(ctx).First(&student, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *StudentRepository) GetByEmail(ctx context.Context, email string) (*domain.Student, error) {
	var student domain.Student
	err := r.db.WithContext(ctx).First(&student, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *StudentRepository) GetByCustomerID(ctx context.Context, customerID string) (*domain.Student, error) {
	var student domain.Student
	err := r.db.WithContext(ctx).First(&student, "customer_id = ?", customerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *StudentRepository) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	return r.db.WithContext(ctx).Model(&domain.Student{}).
		Where("id = ?", id).
		Update("name", name).Error
}

func (r *StudentRepository) UpdatePlan(ctx context.Context, id uuid.UUID, plan domain.Plan) error {
	return r.db.WithContext(ctx).Model(&domain.Student{}).
		Where("id = ?", id).
		Update("plan", plan).Error
}

func (r *StudentRepository) AttachCustomer(ctx context.Context, id uuid.UUID, customerID string) error {
	return r.db.WithContext(ctx).Model(&domain.Student{}).
		Where("id = ?", id).
		Update("customer_id", customerID).Error
}

// SetCompletion — upsert отметки просмотра: повторный клик переключает
// состояние, а не плодит строки.
func (r *StudentRepository) SetCompletion(ctx context.Context, state *domain.VideoCompletion) error {
	state.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "student_id"}, {Name: "course_id"}, {Name: "video_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"completed", "updated_at"}),
	}).Create(state).Error
}

func (r *StudentRepository) FindCourseState(ctx context.Context, studentID, courseID uuid.UUID) ([]domain.VideoCompletion, error) {
	var states []domain.VideoCompletion
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Find(&states).Error
	return states, err
}
