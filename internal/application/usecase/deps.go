package usecase

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/waste3d/coursehub-api/internal/domain"
	"github.com/waste3d/coursehub-api/internal/infrastructure/payment"
)

// Зависимости юзкейсов. Конкретные реализации живут в infrastructure,
// интерфейсы здесь — чтобы тесты подставляли фейки.

type Cache interface {
	GetAll(ctx context.Context, key string) (map[string]string, bool, error)
	GetField(ctx context.Context, key, field string) (string, bool, error)
	Put(ctx context.Context, key string, fields map[string]any) error
	PutField(ctx context.Context, key, field string, value any) error
	DeleteField(ctx context.Context, key string, fields ...string) error
	Delete(ctx context.Context, keys ...string) error
	AddSetMember(ctx context.Context, key string, members ...string) error
	IsSetMember(ctx context.Context, key, member string) (bool, error)
	SetExists(ctx context.Context, key string) (bool, error)
}

type Scanner interface {
	FindChapter(ctx context.Context, pattern, chapterID string) (*domain.Chapter, error)
	FindCourseByChapter(ctx context.Context, chapterID string) (*domain.Course, error)
	FilterCoursesByTags(ctx context.Context, tags []string) ([]*domain.Course, error)
	FindStudentByEmail(ctx context.Context, email string) (*domain.Student, error)
	CollectHashes(ctx context.Context, pattern string) ([]map[string]string, error)
	ReadHashes(ctx context.Context, keys []string) ([]map[string]string, error)
}

type CourseStore interface {
	Create(ctx context.Context, c *domain.Course) error
	Update(ctx context.Context, courseID uuid.UUID, fields map[string]any) (*domain.Course, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Course, error)
	GetWithRelations(ctx context.Context, id uuid.UUID) (*domain.Course, error)
	FindMany(ctx context.Context, limit, offset int) ([]domain.Course, error)
	FindByTeacher(ctx context.Context, teacherID uuid.UUID) ([]domain.Course, error)
	FindTags(ctx context.Context, courseID uuid.UUID) ([]domain.Tag, error)
	InsertTags(ctx context.Context, tags []domain.Tag) ([]domain.Tag, error)
	DeleteTags(ctx context.Context, ids []uuid.UUID) error
	RenameTag(ctx context.Context, id uuid.UUID, text string) error
	InsertBenefits(ctx context.Context, benefits []domain.CourseBenefit) ([]domain.CourseBenefit, error)
	CreateChapterWithVideos(ctx context.Context, chapter *domain.Chapter, videos []domain.Video) error
	PatchChapter(ctx context.Context, chapterID uuid.UUID, fields map[string]any) (*domain.Chapter, error)
	GetChapterWithVideos(ctx context.Context, chapterID uuid.UUID) (*domain.Chapter, error)
	GetVideo(ctx context.Context, videoID uuid.UUID) (*domain.Video, error)
	UpdateVideo(ctx context.Context, videoID uuid.UUID, fields map[string]any) (*domain.Video, error)
	FindVideosByChapters(ctx context.Context, chapterIDs []uuid.UUID) ([]domain.Video, error)
}

type StudentStore interface {
	Create(ctx context.Context, s *domain.Student) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Student, error)
	GetByEmail(ctx context.Context, email string) (*domain.Student, error)
	GetByCustomerID(ctx context.Context, customerID string) (*domain.Student, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	UpdatePlan(ctx context.Context, id uuid.UUID, plan domain.Plan) error
	AttachCustomer(ctx context.Context, id uuid.UUID, customerID string) error
	SetCompletion(ctx context.Context, state *domain.VideoCompletion) error
	FindCourseState(ctx context.Context, studentID, courseID uuid.UUID) ([]domain.VideoCompletion, error)
}

type PurchaseStore interface {
	Find(ctx context.Context, courseID, studentID uuid.UUID) (*domain.Purchase, error)
	Insert(ctx context.Context, p *domain.Purchase) error
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]domain.Purchase, error)
	PurchaserIDs(ctx context.Context, courseID uuid.UUID) ([]string, error)
	CountByTeacher(ctx context.Context, teacherID uuid.UUID) ([]domain.CoursePurchaseCount, error)
}

type SubscriptionStore interface {
	GetByStudent(ctx context.Context, studentID uuid.UUID) (*domain.Subscription, error)
	Upsert(ctx context.Context, sub *domain.Subscription) error
	Update(ctx context.Context, sub *domain.Subscription) error
	DeleteWithPlanReset(ctx context.Context, studentID uuid.UUID) error
}

type CommentStore interface {
	InsertForCourse(ctx context.Context, comment *domain.Comment, courseID uuid.UUID) error
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]domain.Comment, error)
	InsertReply(ctx context.Context, reply *domain.CommentReply) error
	ListReplies(ctx context.Context, commentID uuid.UUID) ([]domain.CommentReply, error)
	Rate(ctx context.Context, rating *domain.Rating) error
}

type Gateway interface {
	CreateCourseSession(ctx context.Context, course *domain.Course, studentID string) (string, error)
	CreateSubscriptionSession(ctx context.Context, student *domain.Student, period domain.SubscriptionPeriod) (string, error)
	RetrieveSession(ctx context.Context, sessionID string) (*payment.CheckoutSession, error)
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*payment.SubscriptionState, error)
	EnsureCustomer(ctx context.Context, email string) (string, error)
	PortalSession(ctx context.Context, customerID string) (string, error)
	PeriodFromPrice(priceID string) domain.SubscriptionPeriod
	ParseEvent(payload []byte, sigHeader string) (*payment.Event, error)
}

type Uploader interface {
	Upload(ctx context.Context, name string, data io.Reader) (string, error)
	Destroy(ctx context.Context, mediaURL string) error
}

// Notifier — сток уведомлений, fire-and-forget.
type Notifier interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Mailer interface {
	SendPaymentFailed(toEmail, invoiceID, paymentLink string) error
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
