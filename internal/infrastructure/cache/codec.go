package cache

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/waste3d/coursehub-api/internal/domain"
)

// Конвертация сущностей в плоские хеши и обратно. Все значения — строки,
// время в RFC3339. Записи списков (теги, видео, покупки) хранятся как
// JSON-значения полей и кодируются encoding/json на месте.

func CourseHash(c *domain.Course) map[string]any {
	return map[string]any{
		"id":          c.ID.String(),
		"teacherId":   c.TeacherID.String(),
		"title":       c.Title,
		"description": c.Description,
		"price":       strconv.Itoa(c.Price),
		"image":       c.Image,
		"visibility":  string(c.Visibility),
		"createdAt":   c.CreatedAt.Format(time.RFC3339),
		"updatedAt":   c.UpdatedAt.Format(time.RFC3339),
	}
}

func CourseFromHash(h map[string]string) (*domain.Course, error) {
	id, err := uuid.Parse(h["id"])
	if err != nil {
		return nil, err
	}
	teacherID, err := uuid.Parse(h["teacherId"])
	if err != nil {
		return nil, err
	}
	price, _ := strconv.Atoi(h["price"])
	createdAt, _ := time.Parse(time.RFC3339, h["createdAt"])
	updatedAt, _ := time.Parse(time.RFC3339, h["updatedAt"])
	return &domain.Course{
		ID:          id,
		TeacherID:   teacherID,
		Title:       h["title"],
		Description: h["description"],
		Price:       price,
		Image:       h["image"],
		Visibility:  domain.Visibility(h["visibility"]),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func ChapterHash(ch *domain.Chapter) map[string]any {
	return map[string]any{
		"id":         ch.ID.String(),
		"courseId":   ch.CourseID.String(),
		"title":      ch.Title,
		"position":   strconv.Itoa(ch.Order),
		"visibility": string(ch.Visibility),
	}
}

func ChapterFromHash(h map[string]string) (*domain.Chapter, error) {
	id, err := uuid.Parse(h["id"])
	if err != nil {
		return nil, err
	}
	courseID, err := uuid.Parse(h["courseId"])
	if err != nil {
		return nil, err
	}
	pos, _ := strconv.Atoi(h["position"])
	return &domain.Chapter{
		ID:         id,
		CourseID:   courseID,
		Title:      h["title"],
		Order:      pos,
		Visibility: domain.ChapterVisibility(h["visibility"]),
	}, nil
}

func StudentHash(s *domain.Student) map[string]any {
	h := map[string]any{
		"id":        s.ID.String(),
		"name":      s.Name,
		"email":     s.Email,
		"plan":      string(s.Plan),
		"role":      string(s.Role),
		"image":     s.Image,
		"createdAt": s.CreatedAt.Format(time.RFC3339),
	}
	if s.CustomerID != nil {
		h["customerId"] = *s.CustomerID
	}
	return h
}

func StudentFromHash(h map[string]string) (*domain.Student, error) {
	id, err := uuid.Parse(h["id"])
	if err != nil {
		return nil, err
	}
	createdAt, _ := time.Parse(time.RFC3339, h["createdAt"])
	s := &domain.Student{
		ID:        id,
		Name:      h["name"],
		Email:     h["email"],
		Plan:      domain.Plan(h["plan"]),
		Role:      domain.Role(h["role"]),
		Image:     h["image"],
		CreatedAt: createdAt,
	}
	if cid, ok := h["customerId"]; ok && cid != "" {
		s.CustomerID = &cid
	}
	return s, nil
}

func SubscriptionHash(sub *domain.Subscription) map[string]any {
	return map[string]any{
		"id":        sub.ID.String(),
		"studentId": sub.StudentID.String(),
		"plan":      string(sub.Plan),
		"period":    string(sub.Period),
		"startDate": sub.StartDate.Format(time.RFC3339),
		"endDate":   sub.EndDate.Format(time.RFC3339),
	}
}

func SubscriptionFromHash(h map[string]string) (*domain.Subscription, error) {
	id, err := uuid.Parse(h["id"])
	if err != nil {
		return nil, err
	}
	studentID, err := uuid.Parse(h["studentId"])
	if err != nil {
		return nil, err
	}
	start, _ := time.Parse(time.RFC3339, h["startDate"])
	end, _ := time.Parse(time.RFC3339, h["endDate"])
	return &domain.Subscription{
		ID:        id,
		StudentID: studentID,
		Plan:      domain.Plan(h["plan"]),
		Period:    domain.SubscriptionPeriod(h["period"]),
		StartDate: start,
		EndDate:   end,
	}, nil
}
