package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/waste3d/coursehub-api/internal/domain"
	"github.com/waste3d/coursehub-api/internal/infrastructure/payment"
)

// Инмемори-фейки зависимостей юзкейсов.

type fakeCache struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
	failOn string // ключ, чтение/запись которого падает
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		hashes: map[string]map[string]string{},
		sets:   map[string]map[string]struct{}{},
	}
}

func (c *fakeCache) err(key string) error {
	if c.failOn != "" && strings.Contains(key, c.failOn) {
		return fmt.Errorf("cache unavailable: %s", key)
	}
	return nil
}

func (c *fakeCache) GetAll(_ context.Context, key string) (map[string]string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.err(key); err != nil {
		return nil, false, err
	}
	h, ok := c.hashes[key]
	if !ok || len(h) == 0 {
		return nil, false, nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, true, nil
}

func (c *fakeCache) GetField(_ context.Context, key, field string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.err(key); err != nil {
		return "", false, err
	}
	v, ok := c.hashes[key][field]
	return v, ok, nil
}

func (c *fakeCache) Put(_ context.Context, key string, fields map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.err(key); err != nil {
		return err
	}
	h := map[string]string{}
	for k, v := range fields {
		h[k] = stringify(v)
	}
	c.hashes[key] = h
	return nil
}

func (c *fakeCache) PutField(_ context.Context, key, field string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.err(key); err != nil {
		return err
	}
	if c.hashes[key] == nil {
		c.hashes[key] = map[string]string{}
	}
	c.hashes[key][field] = stringify(value)
	return nil
}

func (c *fakeCache) DeleteField(_ context.Context, key string, fields ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.err(key); err != nil {
		return err
	}
	for _, f := range fields {
		delete(c.hashes[key], f)
	}
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if err := c.err(k); err != nil {
			return err
		}
		delete(c.hashes, k)
		delete(c.sets, k)
	}
	return nil
}

func (c *fakeCache) AddSetMember(_ context.Context, key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.err(key); err != nil {
		return err
	}
	if c.sets[key] == nil {
		c.sets[key] = map[string]struct{}{}
	}
	for _, m := range members {
		c.sets[key][m] = struct{}{}
	}
	return nil
}

func (c *fakeCache) IsSetMember(_ context.Context, key, member string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.err(key); err != nil {
		return false, err
	}
	_, ok := c.sets[key][member]
	return ok, nil
}

func (c *fakeCache) SetExists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.err(key); err != nil {
		return false, err
	}
	return len(c.sets[key]) > 0, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

type fakeScanner struct {
	students         []*domain.Student
	chapters         map[uuid.UUID]*domain.Chapter
	coursesByChapter map[uuid.UUID]*domain.Course
}

func (s *fakeScanner) FindChapter(_ context.Context, _ string, chapterID string) (*domain.Chapter, error) {
	id, err := uuid.Parse(chapterID)
	if err != nil {
		return nil, err
	}
	return s.chapters[id], nil
}

func (s *fakeScanner) FindCourseByChapter(_ context.Context, chapterID string) (*domain.Course, error) {
	id, err := uuid.Parse(chapterID)
	if err != nil {
		return nil, err
	}
	return s.coursesByChapter[id], nil
}

func (s *fakeScanner) FilterCoursesByTags(context.Context, []string) ([]*domain.Course, error) {
	return nil, nil
}

func (s *fakeScanner) FindStudentByEmail(_ context.Context, email string) (*domain.Student, error) {
	for _, st := range s.students {
		if st.Email == email {
			return st, nil
		}
	}
	return nil, nil
}

func (s *fakeScanner) CollectHashes(context.Context, string) ([]map[string]string, error) {
	return nil, nil
}

func (s *fakeScanner) ReadHashes(context.Context, []string) ([]map[string]string, error) {
	return nil, nil
}

type fakeCourseStore struct {
	mu       sync.Mutex
	courses  map[uuid.UUID]*domain.Course
	tags     map[uuid.UUID][]domain.Tag // по id курса
	chapters map[uuid.UUID]*domain.Chapter
	videos   map[uuid.UUID]*domain.Video
}

func newFakeCourseStore() *fakeCourseStore {
	return &fakeCourseStore{
		courses:  map[uuid.UUID]*domain.Course{},
		tags:     map[uuid.UUID][]domain.Tag{},
		chapters: map[uuid.UUID]*domain.Chapter{},
		videos:   map[uuid.UUID]*domain.Video{},
	}
}

func (s *fakeCourseStore) Create(_ context.Context, c *domain.Course) error {
	s.courses[c.ID] = c
	return nil
}

func (s *fakeCourseStore) Update(_ context.Context, courseID uuid.UUID, fields map[string]any) (*domain.Course, error) {
	c, ok := s.courses[courseID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if v, ok := fields["title"]; ok {
		c.Title = v.(string)
	}
	if v, ok := fields["description"]; ok {
		c.Description = v.(string)
	}
	if v, ok := fields["price"]; ok {
		c.Price = v.(int)
	}
	if v, ok := fields["visibility"]; ok {
		c.Visibility = v.(domain.Visibility)
	}
	if v, ok := fields["image"]; ok {
		c.Image = v.(string)
	}
	return c, nil
}

func (s *fakeCourseStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Course, error) {
	c, ok := s.courses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (s *fakeCourseStore) GetWithRelations(ctx context.Context, id uuid.UUID) (*domain.Course, error) {
	return s.GetByID(ctx, id)
}

func (s *fakeCourseStore) FindMany(context.Context, int, int) ([]domain.Course, error) {
	var out []domain.Course
	for _, c := range s.courses {
		if c.Visibility == domain.VisibilityPublish {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeCourseStore) FindByTeacher(_ context.Context, teacherID uuid.UUID) ([]domain.Course, error) {
	var out []domain.Course
	for _, c := range s.courses {
		if c.TeacherID == teacherID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeCourseStore) FindTags(_ context.Context, courseID uuid.UUID) ([]domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags[courseID], nil
}

func (s *fakeCourseStore) InsertTags(_ context.Context, tags []domain.Tag) ([]domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range tags {
		if tags[i].ID == uuid.Nil {
			tags[i].ID = uuid.New()
		}
		s.tags[tags[i].CourseID] = append(s.tags[tags[i].CourseID], tags[i])
	}
	return tags, nil
}

func (s *fakeCourseStore) DeleteTags(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	for courseID, tags := range s.tags {
		kept := tags[:0]
		for _, t := range tags {
			if _, ok := drop[t.ID]; !ok {
				kept = append(kept, t)
			}
		}
		s.tags[courseID] = kept
	}
	return nil
}

func (s *fakeCourseStore) RenameTag(_ context.Context, id uuid.UUID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for courseID, tags := range s.tags {
		for i := range tags {
			if tags[i].ID == id {
				s.tags[courseID][i].Text = text
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (s *fakeCourseStore) InsertBenefits(_ context.Context, benefits []domain.CourseBenefit) ([]domain.CourseBenefit, error) {
	for i := range benefits {
		benefits[i].ID = uuid.New()
	}
	return benefits, nil
}

func (s *fakeCourseStore) CreateChapterWithVideos(_ context.Context, chapter *domain.Chapter, videos []domain.Video) error {
	ch := *chapter
	ch.Videos = videos
	s.chapters[chapter.ID] = &ch
	for i := range videos {
		v := videos[i]
		s.videos[v.ID] = &v
	}
	return nil
}

func (s *fakeCourseStore) PatchChapter(_ context.Context, chapterID uuid.UUID, fields map[string]any) (*domain.Chapter, error) {
	ch, ok := s.chapters[chapterID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if v, ok := fields["title"]; ok {
		ch.Title = v.(string)
	}
	if v, ok := fields["position"]; ok {
		ch.Order = v.(int)
	}
	if v, ok := fields["visibility"]; ok {
		ch.Visibility = v.(domain.ChapterVisibility)
	}
	return ch, nil
}

func (s *fakeCourseStore) GetChapterWithVideos(_ context.Context, chapterID uuid.UUID) (*domain.Chapter, error) {
	ch, ok := s.chapters[chapterID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ch, nil
}

func (s *fakeCourseStore) GetVideo(_ context.Context, videoID uuid.UUID) (*domain.Video, error) {
	v, ok := s.videos[videoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (s *fakeCourseStore) UpdateVideo(_ context.Context, videoID uuid.UUID, fields map[string]any) (*domain.Video, error) {
	v, ok := s.videos[videoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if t, ok := fields["title"]; ok {
		v.Title = t.(string)
	}
	if st, ok := fields["state"]; ok {
		v.State = st.(domain.VideoState)
	}
	if u, ok := fields["url"]; ok {
		v.URL = u.(string)
	}
	if th, ok := fields["thumbnail"]; ok {
		v.Thumbnail = th.(string)
	}
	return v, nil
}

func (s *fakeCourseStore) FindVideosByChapters(_ context.Context, chapterIDs []uuid.UUID) ([]domain.Video, error) {
	var out []domain.Video
	for _, id := range chapterIDs {
		if ch, ok := s.chapters[id]; ok {
			out = append(out, ch.Videos...)
		}
	}
	return out, nil
}

type fakeStudentStore struct {
	students    map[uuid.UUID]*domain.Student
	completions map[string]*domain.VideoCompletion
}

func newFakeStudentStore() *fakeStudentStore {
	return &fakeStudentStore{
		students:    map[uuid.UUID]*domain.Student{},
		completions: map[string]*domain.VideoCompletion{},
	}
}

func (s *fakeStudentStore) Create(_ context.Context, st *domain.Student) error {
	s.students[st.ID] = st
	return nil
}

func (s *fakeStudentStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Student, error) {
	st, ok := s.students[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st, nil
}

func (s *fakeStudentStore) GetByEmail(_ context.Context, email string) (*domain.Student, error) {
	for _, st := range s.students {
		if st.Email == email {
			return st, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStudentStore) GetByCustomerID(_ context.Context, customerID string) (*domain.Student, error) {
	for _, st := range s.students {
		if st.CustomerID != nil && *st.CustomerID == customerID {
			return st, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStudentStore) UpdateName(_ context.Context, id uuid.UUID, name string) error {
	st, ok := s.students[id]
	if !ok {
		return domain.ErrNotFound
	}
	st.Name = name
	return nil
}

func (s *fakeStudentStore) UpdatePlan(_ context.Context, id uuid.UUID, plan domain.Plan) error {
	st, ok := s.students[id]
	if !ok {
		return domain.ErrNotFound
	}
	st.Plan = plan
	return nil
}

func (s *fakeStudentStore) AttachCustomer(_ context.Context, id uuid.UUID, customerID string) error {
	st, ok := s.students[id]
	if !ok {
		return domain.ErrNotFound
	}
	st.CustomerID = &customerID
	return nil
}

func completionKey(st *domain.VideoCompletion) string {
	return st.StudentID.String() + "/" + st.CourseID.String() + "/" + st.VideoID.String()
}

func (s *fakeStudentStore) SetCompletion(_ context.Context, state *domain.VideoCompletion) error {
	s.completions[completionKey(state)] = state
	return nil
}

func (s *fakeStudentStore) FindCourseState(_ context.Context, studentID, courseID uuid.UUID) ([]domain.VideoCompletion, error) {
	var out []domain.VideoCompletion
	for _, st := range s.completions {
		if st.StudentID == studentID && st.CourseID == courseID {
			out = append(out, *st)
		}
	}
	return out, nil
}

type fakePurchaseStore struct {
	purchases []*domain.Purchase
}

func (s *fakePurchaseStore) Find(_ context.Context, courseID, studentID uuid.UUID) (*domain.Purchase, error) {
	for _, p := range s.purchases {
		if p.CourseID == courseID && p.StudentID == studentID {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakePurchaseStore) Insert(_ context.Context, p *domain.Purchase) error {
	s.purchases = append(s.purchases, p)
	return nil
}

func (s *fakePurchaseStore) ListByStudent(_ context.Context, studentID uuid.UUID) ([]domain.Purchase, error) {
	var out []domain.Purchase
	for _, p := range s.purchases {
		if p.StudentID == studentID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakePurchaseStore) PurchaserIDs(_ context.Context, courseID uuid.UUID) ([]string, error) {
	var out []string
	for _, p := range s.purchases {
		if p.CourseID == courseID {
			out = append(out, p.StudentID.String())
		}
	}
	return out, nil
}

func (s *fakePurchaseStore) CountByTeacher(context.Context, uuid.UUID) ([]domain.CoursePurchaseCount, error) {
	return nil, nil
}

type fakeSubscriptionStore struct {
	subs     map[uuid.UUID]*domain.Subscription // по id студента
	students *fakeStudentStore
}

func newFakeSubscriptionStore(students *fakeStudentStore) *fakeSubscriptionStore {
	return &fakeSubscriptionStore{subs: map[uuid.UUID]*domain.Subscription{}, students: students}
}

func (s *fakeSubscriptionStore) GetByStudent(_ context.Context, studentID uuid.UUID) (*domain.Subscription, error) {
	sub, ok := s.subs[studentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sub, nil
}

func (s *fakeSubscriptionStore) Upsert(_ context.Context, sub *domain.Subscription) error {
	if existing, ok := s.subs[sub.StudentID]; ok {
		existing.Plan = sub.Plan
		existing.Period = sub.Period
		existing.StartDate = sub.StartDate
		existing.EndDate = sub.EndDate
		*sub = *existing
		return nil
	}
	s.subs[sub.StudentID] = sub
	return nil
}

func (s *fakeSubscriptionStore) Update(_ context.Context, sub *domain.Subscription) error {
	s.subs[sub.StudentID] = sub
	return nil
}

func (s *fakeSubscriptionStore) DeleteWithPlanReset(ctx context.Context, studentID uuid.UUID) error {
	delete(s.subs, studentID)
	return s.students.UpdatePlan(ctx, studentID, domain.PlanFree)
}

type fakeCommentStore struct {
	comments map[uuid.UUID][]domain.Comment
	replies  map[uuid.UUID][]domain.CommentReply
	ratings  map[string]int
}

func newFakeCommentStore() *fakeCommentStore {
	return &fakeCommentStore{
		comments: map[uuid.UUID][]domain.Comment{},
		replies:  map[uuid.UUID][]domain.CommentReply{},
		ratings:  map[string]int{},
	}
}

func (s *fakeCommentStore) InsertForCourse(_ context.Context, c *domain.Comment, courseID uuid.UUID) error {
	s.comments[courseID] = append(s.comments[courseID], *c)
	return nil
}

func (s *fakeCommentStore) ListByCourse(_ context.Context, courseID uuid.UUID) ([]domain.Comment, error) {
	return s.comments[courseID], nil
}

func (s *fakeCommentStore) InsertReply(_ context.Context, r *domain.CommentReply) error {
	for _, list := range s.comments {
		for _, c := range list {
			if c.ID == r.CommentID {
				s.replies[r.CommentID] = append(s.replies[r.CommentID], *r)
				return nil
			}
		}
	}
	return fmt.Errorf("comment %s: %w", r.CommentID, domain.ErrNotFound)
}

func (s *fakeCommentStore) ListReplies(_ context.Context, commentID uuid.UUID) ([]domain.CommentReply, error) {
	return s.replies[commentID], nil
}

func (s *fakeCommentStore) Rate(_ context.Context, r *domain.Rating) error {
	key := r.CourseID.String() + "/" + r.StudentID.String()
	if prev, ok := s.ratings[key]; ok && prev == r.Rate {
		return fmt.Errorf("rating unchanged: %w", domain.ErrConflict)
	}
	s.ratings[key] = r.Rate
	return nil
}

type fakeGateway struct {
	event         *payment.Event
	session       *payment.CheckoutSession
	subscriptions map[string]*payment.SubscriptionState
	customerID    string
	sessionURL    string
}

func (g *fakeGateway) CreateCourseSession(context.Context, *domain.Course, string) (string, error) {
	return g.sessionURL, nil
}

func (g *fakeGateway) CreateSubscriptionSession(context.Context, *domain.Student, domain.SubscriptionPeriod) (string, error) {
	return g.sessionURL, nil
}

func (g *fakeGateway) RetrieveSession(context.Context, string) (*payment.CheckoutSession, error) {
	if g.session == nil {
		return nil, domain.ErrExternalProvider
	}
	return g.session, nil
}

func (g *fakeGateway) RetrieveSubscription(_ context.Context, id string) (*payment.SubscriptionState, error) {
	state, ok := g.subscriptions[id]
	if !ok {
		return nil, domain.ErrExternalProvider
	}
	return state, nil
}

func (g *fakeGateway) EnsureCustomer(context.Context, string) (string, error) {
	return g.customerID, nil
}

func (g *fakeGateway) PortalSession(context.Context, string) (string, error) {
	return g.sessionURL, nil
}

func (g *fakeGateway) PeriodFromPrice(priceID string) domain.SubscriptionPeriod {
	if strings.Contains(priceID, "year") {
		return domain.PeriodYearly
	}
	return domain.PeriodMonthly
}

func (g *fakeGateway) ParseEvent([]byte, string) (*payment.Event, error) {
	return g.event, nil
}

type fakeUploader struct {
	destroyed []string
}

func (u *fakeUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	return "https://cdn.test/" + name, nil
}

func (u *fakeUploader) Destroy(_ context.Context, mediaURL string) error {
	u.destroyed = append(u.destroyed, mediaURL)
	return nil
}

type fakeNotifier struct {
	published []string
}

func (n *fakeNotifier) PublishJSON(_ context.Context, key string, _ any) error {
	n.published = append(n.published, key)
	return nil
}

type fakeMailer struct {
	sent []string
}

func (m *fakeMailer) SendPaymentFailed(toEmail, _, _ string) error {
	m.sent = append(m.sent, toEmail)
	return nil
}
