package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/waste3d/coursehub-api/internal/domain"
	"github.com/waste3d/coursehub-api/internal/infrastructure/cache"
	"github.com/waste3d/coursehub-api/internal/infrastructure/security"
)

type AuthUseCase struct {
	cache        Cache
	students     StudentStore
	hasher       *security.PasswordHasher
	tokenManager *security.TokenManager
}

func NewAuthUseCase(c Cache, students StudentStore, h *security.PasswordHasher, tm *security.TokenManager) *AuthUseCase {
	return &AuthUseCase{cache: c, students: students, hasher: h, tokenManager: tm}
}

func (uc *AuthUseCase) Register(ctx context.Context, name, email, password string) (string, error) {
	if _, err := uc.students.GetByEmail(ctx, email); err == nil {
		return "", fmt.Errorf("register: email taken: %w", domain.ErrConflict)
	} else if !isNotFound(err) {
		return "", fmt.Errorf("register: %w", err)
	}

	hash, err := uc.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}

	student := &domain.Student{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		Plan:         domain.PlanFree,
		Role:         domain.RoleStudent,
		PasswordHash: hash,
	}
	if err := uc.students.Create(ctx, student); err != nil {
		return "", fmt.Errorf("register: %w", err)
	}

	if err := uc.cache.Put(ctx, cache.StudentKey(student.ID.String()), cache.StudentHash(student)); err != nil {
		log.Printf("auth: cache fill student=%s: %v", student.ID, err)
	}
	return uc.tokenManager.Generate(student.ID.String())
}

func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (string, error) {
	student, err := uc.students.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("login: %w", domain.ErrForbidden)
		}
		return "", fmt.Errorf("login: %w", err)
	}
	if err := uc.hasher.Compare(student.PasswordHash, password); err != nil {
		return "", fmt.Errorf("login: %w", domain.ErrForbidden)
	}
	return uc.tokenManager.Generate(student.ID.String())
}

// CurrentStudent — профиль по id из токена, cache-aside по student:<id>.
func (uc *AuthUseCase) CurrentStudent(ctx context.Context, studentID uuid.UUID) (*domain.Student, error) {
	fields, ok, err := uc.cache.GetAll(ctx, cache.StudentKey(studentID.String()))
	if err != nil {
		return nil, fmt.Errorf("current student: %w", err)
	}
	if ok {
		if student, err := cache.StudentFromHash(fields); err == nil {
			return student, nil
		}
	}

	student, err := uc.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("current student: %w", err)
	}
	if err := uc.cache.Put(ctx, cache.StudentKey(studentID.String()), cache.StudentHash(student)); err != nil {
		log.Printf("auth: cache fill student=%s: %v", studentID, err)
	}
	return student, nil
}
