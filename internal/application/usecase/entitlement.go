package usecase

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/google/uuid"

	"github.com/waste3d/coursehub-api/internal/domain"
	"github.com/waste3d/coursehub-api/internal/infrastructure/cache"
)

// EntitlementResolver отвечает на вопрос "можно ли этому студенту это
// видео". Покупки проверяются через redis-множество покупателей курса,
// при холодном кэше — через store с обратным заполнением множества.
type EntitlementResolver struct {
	cache     Cache
	purchases PurchaseStore
	students  StudentStore
	courses   CourseStore
}

func NewEntitlementResolver(c Cache, purchases PurchaseStore, students StudentStore, courses CourseStore) *EntitlementResolver {
	return &EntitlementResolver{cache: c, purchases: purchases, students: students, courses: courses}
}

// HasPurchased — трёхступенчатая проверка: член множества -> да;
// множество есть, но студента в нём нет -> авторитетное "нет";
// множества нет вообще (холодный кэш) -> store и обратное заполнение.
func (r *EntitlementResolver) HasPurchased(ctx context.Context, courseID, studentID uuid.UUID) (bool, error) {
	key := cache.PurchasersKey(courseID.String())

	member, err := r.cache.IsSetMember(ctx, key, studentID.String())
	if err != nil {
		return false, fmt.Errorf("check purchaser set: %w", err)
	}
	if member {
		return true, nil
	}

	exists, err := r.cache.SetExists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check purchaser set: %w", err)
	}
	if exists {
		return false, nil
	}

	ids, err := r.purchases.PurchaserIDs(ctx, courseID)
	if err != nil {
		return false, fmt.Errorf("load purchasers: %w", err)
	}
	if len(ids) > 0 {
		if err := r.cache.AddSetMember(ctx, key, ids...); err != nil {
			log.Printf("entitlement: cache fill course=%s: %v", courseID, err)
		}
	}
	for _, id := range ids {
		if id == studentID.String() {
			return true, nil
		}
	}
	return false, nil
}

func (r *EntitlementResolver) CanAccessVideo(ctx context.Context, video *domain.Video, courseID uuid.UUID, student *domain.Student) (bool, error) {
	if student.IsTeacher() {
		return true, nil
	}
	if video.State == domain.VideoFree {
		return true, nil
	}
	if student.HasPremium() {
		return true, nil
	}
	return r.HasPurchased(ctx, courseID, student.ID)
}

// CourseProgress — срез прохождения курса студентом.
type CourseProgress struct {
	Remaining []domain.Video `json:"remainingVideos"`
	Completed int            `json:"completedCount"`
	Total     int            `json:"totalCount"`
	Percent   int            `json:"progress"`
}

// CourseStateDetail считает непройденные видео и процент прохождения.
// Фича только для купивших или подписанных: иначе ErrEntitlementRequired.
func (r *EntitlementResolver) CourseStateDetail(ctx context.Context, courseID, studentID uuid.UUID) (*CourseProgress, error) {
	student, err := r.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("resolve student: %w", err)
	}

	if !student.HasPremium() && !student.IsTeacher() {
		purchased, err := r.HasPurchased(ctx, courseID, studentID)
		if err != nil {
			return nil, err
		}
		if !purchased {
			return nil, fmt.Errorf("course %s: %w", courseID, domain.ErrEntitlementRequired)
		}
	}

	course, err := r.courses.GetWithRelations(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}

	states, err := r.students.FindCourseState(ctx, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("load completion state: %w", err)
	}
	done := make(map[uuid.UUID]struct{}, len(states))
	for _, st := range states {
		if st.Completed {
			done[st.VideoID] = struct{}{}
		}
	}

	var (
		total     int
		remaining []domain.Video
	)
	for _, chapter := range course.Chapters {
		for _, video := range chapter.Videos {
			total++
			if _, ok := done[video.ID]; !ok {
				remaining = append(remaining, video)
			}
		}
	}

	completed := total - len(remaining)
	percent := 0
	if total > 0 {
		percent = int(math.Round(float64(completed) / float64(total) * 100))
	}
	return &CourseProgress{
		Remaining: remaining,
		Completed: completed,
		Total:     total,
		Percent:   percent,
	}, nil
}

// MarkCompleted переключает отметку просмотра и отдаёт свежий прогресс.
func (r *EntitlementResolver) MarkCompleted(ctx context.Context, studentID, courseID, videoID uuid.UUID, completed bool) (*CourseProgress, error) {
	state := &domain.VideoCompletion{
		StudentID: studentID,
		CourseID:  courseID,
		VideoID:   videoID,
		Completed: completed,
	}
	if err := r.students.SetCompletion(ctx, state); err != nil {
		return nil, fmt.Errorf("mark completion: %w", err)
	}
	if err := r.cache.PutField(ctx, cache.StateKey(studentID.String(), courseID.String()), videoID.String(), completed); err != nil {
		log.Printf("entitlement: cache patch state student=%s: %v", studentID, err)
	}
	return r.CourseStateDetail(ctx, courseID, studentID)
}
