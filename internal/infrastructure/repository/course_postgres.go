package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waste3d/coursehub-api/internal/domain"
)

type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) Create(ctx context.Context, c *domain.Course) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// Update патчит только переданные поля и возвращает свежий снапшот
// для полной перезаписи кеша.
func (r *CourseRepository) Update(ctx context.Context, courseID uuid.UUID, fields map[string]any) (*domain.Course, error) {
	if len(fields) > 0 {
		err := r.db.WithContext(ctx).Model(&domain.Course{}).
			Where("id = ?", courseID).
			Updates(fields).Error
		if err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, courseID)
}

func (r *CourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Course, error) {
	var course domain.Course
	err := r.db.WithContext(ctx).First(&course, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) GetWithRelations(ctx context.Context, id uuid.UUID) (*domain.Course, error) {
	var course domain.Course
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Preload("Benefits").
		Preload("Chapters", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		Preload("Chapters.Videos").
		First(&course, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) FindMany(ctx context.Context, limit, offset int) ([]domain.Course, error) {
	var courses []domain.Course
	err := r.db.WithContext(ctx).
		Where("visibility = ?", domain.VisibilityPublish).
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) FindByTeacher(ctx context.Context, teacherID uuid.UUID) ([]domain.Course, error) {
	var courses []domain.Course
	err := r.db.WithContext(ctx).
		Select("id", "title", "price", "visibility").
		Where("teacher_id = ?", teacherID).
		Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) FindTags(ctx context.Context, courseID uuid.UUID) ([]domain.Tag, error) {
	var tags []domain.Tag
	err := r.db.WithContext(ctx).Where("course_id = ?", courseID).Find(&tags).Error
	return tags, err
}

func (r *CourseRepository) InsertTags(ctx context.Context, tags []domain.Tag) ([]domain.Tag, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).Create(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *CourseRepository) DeleteTags(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Delete(&domain.Tag{}, "id IN ?", ids).Error
}

func (r *CourseRepository) RenameTag(ctx context.Context, id uuid.UUID, text string) error {
	return r.db.WithContext(ctx).Model(&domain.Tag{}).
		Where("id = ?", id).
		Update("tag", text).Error
}

func (r *CourseRepository) InsertBenefits(ctx context.Context, benefits []domain.CourseBenefit) ([]domain.CourseBenefit, error) {
	if len(benefits) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).Create(&benefits).Error; err != nil {
		return nil, err
	}
	return benefits, nil
}

// CreateChapterWithVideos — глава и ее видео в одной транзакции,
// чтобы не оставить главу без контента при падении.
func (r *CourseRepository) CreateChapterWithVideos(ctx context.Context, chapter *domain.Chapter, videos []domain.Video) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chapter).Error; err != nil {
			return err
		}
		for i := range videos {
			videos[i].ChapterID = chapter.ID
		}
		if len(videos) == 0 {
			return nil
		}
		if err := tx.Create(&videos).Error; err != nil {
			return err
		}
		chapter.Videos = videos
		return nil
	})
}

func (r *CourseRepository) PatchChapter(ctx context.Context, chapterID uuid.UUID, fields map[string]any) (*domain.Chapter, error) {
	err := r.db.WithContext(ctx).Model(&domain.Chapter{}).
		Where("id = ?", chapterID).
		Updates(fields).Error
	if err != nil {
		return nil, err
	}
	var chapter domain.Chapter
	err = r.db.WithContext(ctx).First(&chapter, "id = ?", chapterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	return &chapter, err
}

func (r *CourseRepository) GetChapterWithVideos(ctx context.Context, chapterID uuid.UUID) (*domain.Chapter, error) {
	var chapter domain.Chapter
	err := r.db.WithContext(ctx).
		Preload("Videos").
		First(&chapter, "id = ?", chapterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chapter, nil
}

func (r *CourseRepository) GetVideo(ctx context.Context, videoID uuid.UUID) (*domain.Video, error) {
	var video domain.Video
	err := r.db.WithContext(ctx).First(&video, "id = ?", videoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *CourseRepository) UpdateVideo(ctx context.Context, videoID uuid.UUID, fields map[string]any) (*domain.Video, error) {
	err := r.db.WithContext(ctx).Model(&domain.Video{}).
		Where("id = ?", videoID).
		Updates(fields).Error
	if err != nil {
		return nil, err
	}
	return r.GetVideo(ctx, videoID)
}

func (r *CourseRepository) FindVideosByChapters(ctx context.Context, chapterIDs []uuid.UUID) ([]domain.Video, error) {
	if len(chapterIDs) == 0 {
		return nil, nil
	}
	var videos []domain.Video
	err := r.db.WithContext(ctx).Where("chapter_id IN ?", chapterIDs).Find(&videos).Error
	return videos, err
}
