package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/waste3d/coursehub-api/internal/domain"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// InsertForCourse — комментарий и join-строка курса в одной транзакции.
func (r *CommentRepository) InsertForCourse(ctx context.Context, comment *domain.Comment, courseID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return tx.Create(&domain.CourseComment{
			CourseID:  courseID,
			CommentID: comment.ID,
		}).Error
	})
}

func (r *CommentRepository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]domain.Comment, error) {
	var comments []domain.Comment
	err := r.db.WithContext(ctx).
		Joins("JOIN course_comments ON course_comments.comment_id = comments.id").
		Where("course_comments.course_id = ?", courseID).
		Order("comments.created_at desc").
		Find(&comments).Error
	return comments, err
}

// InsertReply проверяет, что родительский комментарий существует:
// ответ на удалённый или чужой id — NotFound, а не сирота в таблице.
func (r *CommentRepository) InsertReply(ctx context.Context, reply *domain.CommentReply) error {
	var parent domain.Comment
	err := r.db.WithContext(ctx).First(&parent, "id = ?", reply.CommentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("comment %s: %w", reply.CommentID, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(reply).Error
}

func (r *CommentRepository) ListReplies(ctx context.Context, commentID uuid.UUID) ([]domain.CommentReply, error) {
	var replies []domain.CommentReply
	err := r.db.WithContext(ctx).
		Where("comment_id = ?", commentID).
		Order("created_at asc").
		Find(&replies).Error
	return replies, err
}

// Rate ставит оценку. Повторная оценка с тем же значением — конфликт,
// с другим — перезапись.
func (r *CommentRepository) Rate(ctx context.Context, rating *domain.Rating) error {
	var existing domain.Rating
	err := r.db.WithContext(ctx).
		First(&existing, "course_id = ? AND student_id = ?", rating.CourseID, rating.StudentID).Error
	if err == nil && existing.Rate == rating.Rate {
		return fmt.Errorf("rating already set to %d: %w", rating.Rate, domain.ErrConflict)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate"}),
	}).Create(rating).Error
}
