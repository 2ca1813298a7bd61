package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/waste3d/coursehub-api/internal/domain"
	"github.com/waste3d/coursehub-api/internal/infrastructure/cache"
)

// TagRename — явное переименование по id. Текстовый diff переименование
// не отличит от пары "удалить + добавить", поэтому клиент присылает id.
type TagRename struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

// TagReconciler сводит набор тегов курса к желаемому: считает diff по
// тексту и применяет три группы изменений (вставки, удаления,
// переименования) параллельно. Операция не атомарна — при частичном
// отказе store остаётся источником истины, кэш долечится на чтении.
type TagReconciler struct {
	cache   Cache
	courses CourseStore
}

func NewTagReconciler(c Cache, courses CourseStore) *TagReconciler {
	return &TagReconciler{cache: c, courses: courses}
}

func (r *TagReconciler) Reconcile(ctx context.Context, courseID uuid.UUID, desired []string, renames []TagRename) error {
	current, err := r.currentTags(ctx, courseID)
	if err != nil {
		return fmt.Errorf("reconcile tags: %w", err)
	}

	renameByID := make(map[uuid.UUID]string, len(renames))
	for _, rn := range renames {
		renameByID[rn.ID] = rn.Text
	}

	desiredSet := make(map[string]struct{}, len(desired))
	for _, text := range desired {
		desiredSet[text] = struct{}{}
	}

	// Diff по тексту. Дубликаты терпим: первый тег с текстом остаётся,
	// лишние уходят в toRemove.
	seen := make(map[string]struct{}, len(current))
	var toRemove []domain.Tag
	for _, tag := range current {
		if newText, renamed := renameByID[tag.ID]; renamed {
			// Новый текст считается занятым, иначе diff продублирует его вставкой.
			seen[newText] = struct{}{}
			continue
		}
		if _, dup := seen[tag.Text]; dup {
			toRemove = append(toRemove, tag)
			continue
		}
		seen[tag.Text] = struct{}{}
		if _, want := desiredSet[tag.Text]; !want {
			toRemove = append(toRemove, tag)
		}
	}

	var toAdd []domain.Tag
	for _, text := range desired {
		if _, exists := seen[text]; exists {
			continue
		}
		seen[text] = struct{}{}
		toAdd = append(toAdd, domain.Tag{CourseID: courseID, Text: text})
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	if len(toAdd) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := r.courses.InsertTags(ctx, toAdd)
			if err != nil {
				fail(fmt.Errorf("insert tags: %w", err))
				return
			}
			for _, tag := range inserted {
				r.patchTag(ctx, courseID, tag)
			}
		}()
	}

	if len(toRemove) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]uuid.UUID, 0, len(toRemove))
			fields := make([]string, 0, len(toRemove))
			for _, tag := range toRemove {
				ids = append(ids, tag.ID)
				fields = append(fields, tag.ID.String())
			}
			if err := r.courses.DeleteTags(ctx, ids); err != nil {
				fail(fmt.Errorf("delete tags: %w", err))
				return
			}
			if err := r.cache.DeleteField(ctx, cache.TagsKey(courseID.String()), fields...); err != nil {
				log.Printf("tags: cache evict course=%s: %v", courseID, err)
			}
		}()
	}

	if len(renames) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, rn := range renames {
				if err := r.courses.RenameTag(ctx, rn.ID, rn.Text); err != nil {
					fail(fmt.Errorf("rename tag %s: %w", rn.ID, err))
					return
				}
				r.patchTag(ctx, courseID, domain.Tag{ID: rn.ID, CourseID: courseID, Text: rn.Text})
			}
		}()
	}

	wg.Wait()
	return firstErr
}

// currentTags — cache-aside: хеш course_tags:<id>, значения — JSON тегов.
// Мимо кэша идём в store и заполняем хеш целиком.
func (r *TagReconciler) currentTags(ctx context.Context, courseID uuid.UUID) ([]domain.Tag, error) {
	key := cache.TagsKey(courseID.String())
	fields, ok, err := r.cache.GetAll(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		tags := make([]domain.Tag, 0, len(fields))
		for _, raw := range fields {
			var tag domain.Tag
			if err := json.Unmarshal([]byte(raw), &tag); err != nil {
				return nil, fmt.Errorf("decode cached tag: %w", err)
			}
			tags = append(tags, tag)
		}
		return tags, nil
	}

	tags, err := r.courses.FindTags(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		payload := make(map[string]any, len(tags))
		for _, tag := range tags {
			raw, err := json.Marshal(tag)
			if err != nil {
				return nil, err
			}
			payload[tag.ID.String()] = raw
		}
		if err := r.cache.Put(ctx, key, payload); err != nil {
			log.Printf("tags: cache fill course=%s: %v", courseID, err)
		}
	}
	return tags, nil
}

func (r *TagReconciler) patchTag(ctx context.Context, courseID uuid.UUID, tag domain.Tag) {
	raw, err := json.Marshal(tag)
	if err != nil {
		log.Printf("tags: encode tag %s: %v", tag.ID, err)
		return
	}
	if err := r.cache.PutField(ctx, cache.TagsKey(courseID.String()), tag.ID.String(), raw); err != nil {
		log.Printf("tags: cache patch course=%s: %v", courseID, err)
	}
}
