package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/waste3d/coursehub-api/internal/domain"
	"github.com/waste3d/coursehub-api/internal/infrastructure/cache"
)

func newResolver() (*EntitlementResolver, *fakeCache, *fakeCourseStore, *fakeStudentStore, *fakePurchaseStore) {
	c := newFakeCache()
	courses := newFakeCourseStore()
	students := newFakeStudentStore()
	purchases := &fakePurchaseStore{}
	return NewEntitlementResolver(c, purchases, students, courses), c, courses, students, purchases
}

func seedStudent(students *fakeStudentStore, plan domain.Plan, role domain.Role) *domain.Student {
	s := &domain.Student{ID: uuid.New(), Name: "test", Email: uuid.NewString() + "@test.dev", Plan: plan, Role: role}
	students.students[s.ID] = s
	return s
}

func TestHasPurchased_ColdCacheFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	r, c, _, students, purchases := newResolver()

	student := seedStudent(students, domain.PlanFree, domain.RoleStudent)
	courseID := uuid.New()
	purchases.purchases = append(purchases.purchases, &domain.Purchase{
		ID: uuid.New(), CourseID: courseID, StudentID: student.ID,
	})

	ok, err := r.HasPurchased(ctx, courseID, student.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// Холодный промах заполнил множество покупателей.
	member, err := c.IsSetMember(ctx, cache.PurchasersKey(courseID.String()), student.ID.String())
	require.NoError(t, err)
	require.True(t, member)
}

func TestHasPurchased_PresentSetIsAuthoritative(t *testing.T) {
	ctx := context.Background()
	r, c, _, students, purchases := newResolver()

	student := seedStudent(students, domain.PlanFree, domain.RoleStudent)
	courseID := uuid.New()

	// Строка в store есть, но множество существует и студента в нём нет:
	// в store не ходим, ответ — нет.
	purchases.purchases = append(purchases.purchases, &domain.Purchase{
		ID: uuid.New(), CourseID: courseID, StudentID: student.ID,
	})
	require.NoError(t, c.AddSetMember(ctx, cache.PurchasersKey(courseID.String()), uuid.NewString()))

	ok, err := r.HasPurchased(ctx, courseID, student.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanAccessVideo_Monotonicity(t *testing.T) {
	ctx := context.Background()
	r, _, _, students, purchases := newResolver()

	courseID := uuid.New()
	video := &domain.Video{ID: uuid.New(), State: domain.VideoPremium}
	student := seedStudent(students, domain.PlanFree, domain.RoleStudent)

	ok, err := r.CanAccessVideo(ctx, video, courseID, student)
	require.NoError(t, err)
	require.False(t, ok, "без покупки, подписки и роли премиум-видео закрыто")

	purchases.purchases = append(purchases.purchases, &domain.Purchase{
		ID: uuid.New(), CourseID: courseID, StudentID: student.ID,
	})
	ok, err = r.CanAccessVideo(ctx, video, courseID, student)
	require.NoError(t, err)
	require.True(t, ok, "покупка открывает доступ")

	premium := seedStudent(students, domain.PlanPremium, domain.RoleStudent)
	ok, err = r.CanAccessVideo(ctx, video, courseID, premium)
	require.NoError(t, err)
	require.True(t, ok, "премиум-план открывает доступ")

	teacher := seedStudent(students, domain.PlanFree, domain.RoleTeacher)
	ok, err = r.CanAccessVideo(ctx, video, courseID, teacher)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCanAccessVideo_FreeVideoOpenToEveryone(t *testing.T) {
	ctx := context.Background()
	r, _, _, students, _ := newResolver()

	student := seedStudent(students, domain.PlanFree, domain.RoleStudent)
	video := &domain.Video{ID: uuid.New(), State: domain.VideoFree}

	ok, err := r.CanAccessVideo(ctx, video, uuid.New(), student)
	require.NoError(t, err)
	require.True(t, ok)
}

func seedCourseWithVideos(courses *fakeCourseStore, videoCount int) (*domain.Course, []domain.Video) {
	course := &domain.Course{ID: uuid.New(), TeacherID: uuid.New(), Title: "Go с нуля"}
	chapter := domain.Chapter{ID: uuid.New(), CourseID: course.ID, Title: "Основы", Order: 1}
	for i := 0; i < videoCount; i++ {
		chapter.Videos = append(chapter.Videos, domain.Video{
			ID: uuid.New(), ChapterID: chapter.ID, State: domain.VideoPremium,
		})
	}
	course.Chapters = []domain.Chapter{chapter}
	courses.courses[course.ID] = course
	return course, chapter.Videos
}

func TestCourseStateDetail_RequiresEntitlement(t *testing.T) {
	ctx := context.Background()
	r, _, courses, students, _ := newResolver()

	student := seedStudent(students, domain.PlanFree, domain.RoleStudent)
	course, _ := seedCourseWithVideos(courses, 2)

	_, err := r.CourseStateDetail(ctx, course.ID, student.ID)
	require.ErrorIs(t, err, domain.ErrEntitlementRequired)
}

func TestCourseStateDetail_ZeroVideosIsZeroProgress(t *testing.T) {
	ctx := context.Background()
	r, _, courses, students, _ := newResolver()

	student := seedStudent(students, domain.PlanPremium, domain.RoleStudent)
	course, _ := seedCourseWithVideos(courses, 0)

	progress, err := r.CourseStateDetail(ctx, course.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, 0, progress.Percent)
	require.Equal(t, 0, progress.Total)
	require.Empty(t, progress.Remaining)
}

func TestCourseStateDetail_AllCompletedIsHundred(t *testing.T) {
	ctx := context.Background()
	r, _, courses, students, _ := newResolver()

	student := seedStudent(students, domain.PlanPremium, domain.RoleStudent)
	course, videos := seedCourseWithVideos(courses, 3)

	for _, v := range videos {
		require.NoError(t, students.SetCompletion(ctx, &domain.VideoCompletion{
			StudentID: student.ID, CourseID: course.ID, VideoID: v.ID, Completed: true,
		}))
	}

	progress, err := r.CourseStateDetail(ctx, course.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, 100, progress.Percent)
	require.Empty(t, progress.Remaining)
}

func TestMarkCompleted_UpdatesProgress(t *testing.T) {
	ctx := context.Background()
	r, _, courses, students, _ := newResolver()

	student := seedStudent(students, domain.PlanPremium, domain.RoleStudent)
	course, videos := seedCourseWithVideos(courses, 2)

	progress, err := r.MarkCompleted(ctx, student.ID, course.ID, videos[0].ID, true)
	require.NoError(t, err)
	require.Equal(t, 50, progress.Percent)
	require.Len(t, progress.Remaining, 1)
	require.Equal(t, videos[1].ID, progress.Remaining[0].ID)

	// Повторный клик снимает отметку.
	progress, err = r.MarkCompleted(ctx, student.ID, course.ID, videos[0].ID, false)
	require.NoError(t, err)
	require.Equal(t, 0, progress.Percent)
	require.Len(t, progress.Remaining, 2)
}
