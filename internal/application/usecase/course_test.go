package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/waste3d/coursehub-api/internal/domain"
	"github.com/waste3d/coursehub-api/internal/infrastructure/cache"
)

type courseEnv struct {
	uc       *CourseUseCase
	cache    *fakeCache
	scanner  *fakeScanner
	courses  *fakeCourseStore
	comments *fakeCommentStore
	students *fakeStudentStore
	purch    *fakePurchaseStore
	uploader *fakeUploader
}

func newCourseEnv() *courseEnv {
	env := &courseEnv{
		cache:    newFakeCache(),
		scanner:  &fakeScanner{},
		courses:  newFakeCourseStore(),
		comments: newFakeCommentStore(),
		students: newFakeStudentStore(),
		purch:    &fakePurchaseStore{},
		uploader: &fakeUploader{},
	}
	tags := NewTagReconciler(env.cache, env.courses)
	access := NewEntitlementResolver(env.cache, env.purch, env.students, env.courses)
	env.uc = NewCourseUseCase(env.cache, env.scanner, env.courses, env.comments, env.uploader, tags, access)
	return env
}

func TestEditCourse_ForeignCourseForbidden(t *testing.T) {
	env := newCourseEnv()
	course := &domain.Course{ID: uuid.New(), TeacherID: uuid.New()}
	env.courses.courses[course.ID] = course

	title := "new"
	_, err := env.uc.EditCourse(context.Background(), uuid.New(), course.ID, CoursePatch{Title: &title})
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestEditCourse_OnlyChangedFieldsApplied(t *testing.T) {
	ctx := context.Background()
	env := newCourseEnv()
	teacherID := uuid.New()
	course := &domain.Course{ID: uuid.New(), TeacherID: teacherID, Title: "Go", Price: 20}
	env.courses.courses[course.ID] = course

	sameTitle := "Go"
	newPrice := 25
	updated, err := env.uc.EditCourse(ctx, teacherID, course.ID, CoursePatch{
		Title: &sameTitle,
		Price: &newPrice,
	})
	require.NoError(t, err)
	require.Equal(t, "Go", updated.Title)
	require.Equal(t, 25, updated.Price)
}

func TestEditCourse_ImageReplaceDestroysOld(t *testing.T) {
	ctx := context.Background()
	env := newCourseEnv()
	teacherID := uuid.New()
	course := &domain.Course{ID: uuid.New(), TeacherID: teacherID, Image: "https://cdn.test/old.png"}
	env.courses.courses[course.ID] = course

	updated, err := env.uc.EditCourse(ctx, teacherID, course.ID, CoursePatch{
		ImageName: "new.png",
		Image:     strings.NewReader("png"),
	})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.test/new.png", updated.Image)
	require.Equal(t, []string{"https://cdn.test/old.png"}, env.uploader.destroyed)
}

func TestCreateChapter_UploadsAllVideos(t *testing.T) {
	ctx := context.Background()
	env := newCourseEnv()
	teacherID := uuid.New()
	course := &domain.Course{ID: uuid.New(), TeacherID: teacherID}
	env.courses.courses[course.ID] = course

	uploads := []VideoUpload{
		{Title: "Введение", State: domain.VideoFree, FileName: "intro.mp4", File: strings.NewReader("a")},
		{Title: "Переменные", State: domain.VideoPremium, FileName: "vars.mp4", File: strings.NewReader("b")},
		{Title: "Функции", State: domain.VideoPremium, FileName: "funcs.mp4", File: strings.NewReader("c")},
		{Title: "Структуры", State: domain.VideoPremium, FileName: "structs.mp4", File: strings.NewReader("d")},
	}
	chapter, err := env.uc.CreateChapter(ctx, teacherID, course.ID, "Основы", 1, uploads)
	require.NoError(t, err)
	require.Len(t, chapter.Videos, 4)
	for i, v := range chapter.Videos {
		require.Equal(t, uploads[i].Title, v.Title, "порядок видео должен сохраниться")
		require.NotEmpty(t, v.URL)
	}

	stored, err := env.courses.GetChapterWithVideos(ctx, chapter.ID)
	require.NoError(t, err)
	require.Len(t, stored.Videos, 4)
}

func TestUpdateChapter_NoFieldsIsNoop(t *testing.T) {
	ctx := context.Background()
	env := newCourseEnv()
	teacherID := uuid.New()
	course := &domain.Course{ID: uuid.New(), TeacherID: teacherID}
	env.courses.courses[course.ID] = course

	chapter := &domain.Chapter{ID: uuid.New(), CourseID: course.ID, Title: "Основы", Order: 1}
	env.courses.chapters[chapter.ID] = chapter

	sameTitle := "Основы"
	got, err := env.uc.UpdateChapter(ctx, teacherID, course.ID, chapter.ID, ChapterPatch{Title: &sameTitle})
	require.NoError(t, err)
	require.Equal(t, chapter.Title, got.Title)
}

func TestChapterDetail_PremiumURLsHiddenWithoutEntitlement(t *testing.T) {
	ctx := context.Background()
	env := newCourseEnv()
	student := seedStudent(env.students, domain.PlanFree, domain.RoleStudent)

	course := &domain.Course{ID: uuid.New(), TeacherID: uuid.New()}
	env.courses.courses[course.ID] = course
	chapter := &domain.Chapter{
		ID: uuid.New(), CourseID: course.ID, Title: "Основы",
		Videos: []domain.Video{
			{ID: uuid.New(), Title: "Введение", URL: "https://cdn.test/intro.mp4", State: domain.VideoFree},
			{ID: uuid.New(), Title: "Переменные", URL: "https://cdn.test/vars.mp4", State: domain.VideoPremium},
		},
	}
	env.courses.chapters[chapter.ID] = chapter

	got, err := env.uc.ChapterDetail(ctx, course.ID, chapter.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.test/intro.mp4", got.Videos[0].URL, "бесплатное видео открыто")
	require.Empty(t, got.Videos[1].URL, "премиум-видео закрыто")
}

func TestVideoDetail_RequiresEntitlement(t *testing.T) {
	ctx := context.Background()
	env := newCourseEnv()
	student := seedStudent(env.students, domain.PlanFree, domain.RoleStudent)

	course := &domain.Course{ID: uuid.New(), TeacherID: uuid.New()}
	env.courses.courses[course.ID] = course
	video := domain.Video{ID: uuid.New(), Title: "Переменные", URL: "https://cdn.test/vars.mp4", State: domain.VideoPremium}
	chapter := &domain.Chapter{ID: uuid.New(), CourseID: course.ID, Videos: []domain.Video{video}}
	video.ChapterID = chapter.ID
	env.courses.chapters[chapter.ID] = chapter
	env.courses.videos[video.ID] = &video

	_, err := env.uc.VideoDetail(ctx, video.ID, student.ID)
	require.ErrorIs(t, err, domain.ErrEntitlementRequired)

	env.purch.purchases = append(env.purch.purchases, &domain.Purchase{
		ID: uuid.New(), CourseID: course.ID, StudentID: student.ID,
	})
	got, err := env.uc.VideoDetail(ctx, video.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, video.URL, got.URL)
}

func TestRate_SameValueIsConflict(t *testing.T) {
	ctx := context.Background()
	env := newCourseEnv()
	studentID, courseID := uuid.New(), uuid.New()

	require.NoError(t, env.uc.Rate(ctx, studentID, courseID, 5))
	require.ErrorIs(t, env.uc.Rate(ctx, studentID, courseID, 5), domain.ErrConflict)
	require.NoError(t, env.uc.Rate(ctx, studentID, courseID, 4))
}

// Тёплый и холодный кэш обязаны отдавать один и тот же курс по id главы,
// а холодный путь — пополнять кэш найденным курсом.
func TestCourseByChapter_WarmAndColdMatch(t *testing.T) {
	ctx := context.Background()
	env := newCourseEnv()

	course := &domain.Course{ID: uuid.New(), TeacherID: uuid.New(), Title: "Go с нуля"}
	chapter := &domain.Chapter{ID: uuid.New(), CourseID: course.ID, Title: "Основы"}
	env.courses.courses[course.ID] = course
	env.courses.chapters[chapter.ID] = chapter

	cold, err := env.uc.CourseByChapter(ctx, chapter.ID)
	require.NoError(t, err)
	require.Equal(t, course.ID, cold.ID)

	fields, ok, err := env.cache.GetAll(ctx, cache.CourseKey(course.ID.String()))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, course.Title, fields["title"])

	env.scanner.coursesByChapter = map[uuid.UUID]*domain.Course{chapter.ID: course}
	warm, err := env.uc.CourseByChapter(ctx, chapter.ID)
	require.NoError(t, err)
	require.Equal(t, cold.ID, warm.ID)
	require.Equal(t, cold.Title, warm.Title)
}

func TestCourseByChapter_UnknownChapterNotFound(t *testing.T) {
	env := newCourseEnv()
	_, err := env.uc.CourseByChapter(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReplies_AttachToExistingComment(t *testing.T) {
	ctx := context.Background()
	env := newCourseEnv()
	courseID, authorID := uuid.New(), uuid.New()

	comment, err := env.uc.AddComment(ctx, authorID, courseID, "Отличный курс")
	require.NoError(t, err)

	reply, err := env.uc.AddReply(ctx, uuid.New(), comment.ID, "Согласен")
	require.NoError(t, err)
	require.Equal(t, comment.ID, reply.CommentID)

	replies, err := env.uc.Replies(ctx, comment.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.Equal(t, "Согласен", replies[0].Text)
}

func TestReplies_MissingCommentNotFound(t *testing.T) {
	env := newCourseEnv()
	_, err := env.uc.AddReply(context.Background(), uuid.New(), uuid.New(), "эхо")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
