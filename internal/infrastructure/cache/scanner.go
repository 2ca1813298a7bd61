package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/waste3d/coursehub-api/internal/domain"
)

// Размер страницы SCAN, как COUNT 100 в исходных скан-запросах.
const scanCount = 100

// KeyspaceScanner отвечает на запросы, под которые у кеша нет индекса:
// курсорная итерация по маске ключей со страничным (pipelined) чтением хешей.
// Снапшот-изоляции нет: ключи, созданные или удаленные во время скана,
// могут как попасть в результат, так и нет.
type KeyspaceScanner struct {
	rdb *redis.Client
}

func NewKeyspaceScanner(rdb *redis.Client) *KeyspaceScanner {
	return &KeyspaceScanner{rdb: rdb}
}

// ReadHashes читает хеши набора ключей одним pipelined round trip.
// Ошибка чтения страницы валит весь скан: частичный результат
// для поиска хуже ошибки.
func (s *KeyspaceScanner) ReadHashes(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan page read: %w", err)
	}
	hashes := make([]map[string]string, 0, len(cmds))
	for _, cmd := range cmds {
		hashes = append(hashes, cmd.Val())
	}
	return hashes, nil
}

// FindChapter ищет главу с данным id среди ключей по маске. Возвращает
// первую найденную не дожидаясь конца курсора; прогресс скана не кешируется.
// (nil, nil) — не нашли, что означает "неизвестно", а не "не существует".
func (s *KeyspaceScanner) FindChapter(ctx context.Context, pattern, chapterID string) (*domain.Chapter, error) {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", pattern, err)
		}
		hashes, err := s.ReadHashes(ctx, keys)
		if err != nil {
			return nil, err
		}
		for _, h := range hashes {
			if h["id"] == chapterID {
				return ChapterFromHash(h)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil, nil
		}
	}
}

// FindCourseByChapter — обратный поиск "глава -> курс" по вложенному ключу
// course:*:chapters:<id>. Пустой хеш курса по найденному ключу — это
// placeholder несуществующей цели join, surfaced как NotFound.
func (s *KeyspaceScanner) FindCourseByChapter(ctx context.Context, chapterID string) (*domain.Course, error) {
	pattern := fmt.Sprintf("course:*:chapters:%s", chapterID)
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", pattern, err)
		}
		chapters, err := s.ReadHashes(ctx, keys)
		if err != nil {
			return nil, err
		}
		courseKeys := make([]string, 0, len(chapters))
		for _, ch := range chapters {
			if ch["courseId"] != "" {
				courseKeys = append(courseKeys, CourseKey(ch["courseId"]))
			}
		}
		courses, err := s.ReadHashes(ctx, courseKeys)
		if err != nil {
			return nil, err
		}
		for _, h := range courses {
			if len(h) == 0 {
				return nil, domain.ErrNotFound
			}
			return CourseFromHash(h)
		}
		cursor = next
		if cursor == 0 {
			return nil, nil
		}
	}
}

// FilterCoursesByTags сканирует все тег-индексы, оставляет теги из запрошенного
// набора, дедуплицирует по id тега и id курса. Порядок результата не определен.
func (s *KeyspaceScanner) FilterCoursesByTags(ctx context.Context, tags []string) ([]*domain.Course, error) {
	wanted := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		wanted[t] = struct{}{}
	}

	courses := make(map[string]*domain.Course)
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, "course_tags:*", scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan course_tags: %w", err)
		}
		pages, err := s.ReadHashes(ctx, keys)
		if err != nil {
			return nil, err
		}

		// id тега уникален, last-write-wins внутри страницы допустим
		matched := make(map[string]domain.Tag)
		for _, page := range pages {
			for _, raw := range page {
				var tag domain.Tag
				if err := json.Unmarshal([]byte(raw), &tag); err != nil {
					continue
				}
				if _, ok := wanted[tag.Text]; ok {
					matched[tag.ID.String()] = tag
				}
			}
		}

		courseKeys := make([]string, 0, len(matched))
		for _, tag := range matched {
			courseKeys = append(courseKeys, CourseKey(tag.CourseID.String()))
		}
		hashes, err := s.ReadHashes(ctx, courseKeys)
		if err != nil {
			return nil, err
		}
		for _, h := range hashes {
			if len(h) == 0 {
				continue
			}
			course, err := CourseFromHash(h)
			if err != nil {
				continue
			}
			courses[course.ID.String()] = course
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	result := make([]*domain.Course, 0, len(courses))
	for _, c := range courses {
		result = append(result, c)
	}
	return result, nil
}

// FindStudentByEmail — линейный скан student:* для событий провайдера,
// которые несут только email. Холодный промах закрывает store-fallback.
func (s *KeyspaceScanner) FindStudentByEmail(ctx context.Context, email string) (*domain.Student, error) {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, "student:*", scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		hashes, err := s.ReadHashes(ctx, keys)
		if err != nil {
			return nil, err
		}
		for _, h := range hashes {
			if h["email"] == email {
				return StudentFromHash(h)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil, nil
		}
	}
}

// CollectHashes собирает все хеши по маске (список курсов, главы курса).
func (s *KeyspaceScanner) CollectHashes(ctx context.Context, pattern string) ([]map[string]string, error) {
	var all []map[string]string
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", pattern, err)
		}
		hashes, err := s.ReadHashes(ctx, keys)
		if err != nil {
			return nil, err
		}
		for _, h := range hashes {
			if len(h) > 0 {
				all = append(all, h)
			}
		}
		cursor = next
		if cursor == 0 {
			return all, nil
		}
	}
}
