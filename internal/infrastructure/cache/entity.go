package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL сущностей. Каждое чтение продлевает, горячие ключи не протухают.
const EntityTTL = 7 * 24 * time.Hour

// EntityCache хранит сущности как redis-хеши по составным ключам
// (course:<id>, course:<id>:chapters:<chapterId> и т.д.).
// Отсутствие ключа НЕ доказывает отсутствие сущности — кеш мог остыть,
// поэтому GetAll возвращает явный ok вместо пустой map-заглушки.
type EntityCache struct {
	rdb *redis.Client
}

func NewEntityCache(rdb *redis.Client) *EntityCache {
	return &EntityCache{rdb: rdb}
}

func (c *EntityCache) GetAll(ctx context.Context, key string) (map[string]string, bool, error) {
	c.rdb.Expire(ctx, key, EntityTTL)
	fields, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false, err
	}
	return fields, len(fields) > 0, nil
}

func (c *EntityCache) GetField(ctx context.Context, key, field string) (string, bool, error) {
	c.rdb.Expire(ctx, key, EntityTTL)
	val, err := c.rdb.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Put — полная замена либо частичный патч: что передали, то и перезаписали.
// Вызывающий сам отвечает за полноту снапшота.
func (c *EntityCache) Put(ctx context.Context, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	if err := c.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return err
	}
	return c.rdb.Expire(ctx, key, EntityTTL).Err()
}

// PutField кладет одну запись в хеш-список (поле = id, значение = JSON).
func (c *EntityCache) PutField(ctx context.Context, key, field string, value any) error {
	if err := c.rdb.HSet(ctx, key, field, value).Err(); err != nil {
		return err
	}
	return c.rdb.Expire(ctx, key, EntityTTL).Err()
}

func (c *EntityCache) DeleteField(ctx context.Context, key string, fields ...string) error {
	return c.rdb.HDel(ctx, key, fields...).Err()
}

func (c *EntityCache) Delete(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *EntityCache) AddSetMember(ctx context.Context, key string, members ...string) error {
	return c.rdb.SAdd(ctx, key, members).Err()
}

func (c *EntityCache) IsSetMember(ctx context.Context, key, member string) (bool, error) {
	return c.rdb.SIsMember(ctx, key, member).Result()
}

// SetExists отличает холодный кеш от подтвержденно пустого множества.
func (c *EntityCache) SetExists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}
