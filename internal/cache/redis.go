package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/emrgen/wikistore/internal/compress"
	"github.com/emrgen/wikistore/internal/doc"
)

const documentTTL = time.Hour

func documentKey(wiki string, id int64) string {
	return "document:" + wiki + ":" + strconv.FormatInt(id, 10)
}

func existsHash(wiki string) string {
	return "document:exists:" + wiki
}

var _ DocumentCache = (*RedisDocumentCache)(nil)

// RedisDocumentCache shares cached documents between processes. Payloads are
// gzip-compressed JSON, following the wire shape of the flat-file backend.
type RedisDocumentCache struct {
	client  *redis.Client
	encoder compress.Compress
}

func NewRedisDocumentCache(addr, password string, db int) *RedisDocumentCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		Protocol: 2,
	})
	return &RedisDocumentCache{client: client, encoder: compress.NewGZip()}
}

func (r *RedisDocumentCache) GetDocument(ctx context.Context, key doc.Key) (*doc.Document, bool) {
	res := r.client.Get(ctx, documentKey(key.Wiki, key.ID()))
	if res.Err() != nil {
		if !errors.Is(res.Err(), redis.Nil) {
			logrus.Warnf("redis get document: %v", res.Err())
		}
		return nil, false
	}
	buf, err := res.Bytes()
	if err != nil {
		return nil, false
	}
	raw, err := r.encoder.Decode(buf)
	if err != nil {
		logrus.Warnf("redis decode document: %v", err)
		return nil, false
	}
	d := doc.New(key)
	if err := json.Unmarshal(raw, d); err != nil {
		logrus.Warnf("redis unmarshal document: %v", err)
		return nil, false
	}
	return d, true
}

func (r *RedisDocumentCache) SetDocument(ctx context.Context, d *doc.Document) error {
	marshal, err := json.Marshal(d)
	if err != nil {
		return err
	}
	encoded, err := r.encoder.Encode(marshal)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if err := p.Set(ctx, documentKey(d.Key.Wiki, d.Key.ID()), encoded, documentTTL).Err(); err != nil {
			return err
		}
		return p.HSet(ctx, existsHash(d.Key.Wiki), strconv.FormatInt(d.Key.ID(), 10), "1").Err()
	})
	return err
}

func (r *RedisDocumentCache) DeleteDocument(ctx context.Context, key doc.Key) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if err := p.Del(ctx, documentKey(key.Wiki, key.ID())).Err(); err != nil {
			return err
		}
		return p.HDel(ctx, existsHash(key.Wiki), strconv.FormatInt(key.ID(), 10)).Err()
	})
	return err
}

func (r *RedisDocumentCache) GetExists(ctx context.Context, key doc.Key) (bool, bool) {
	res := r.client.HGet(ctx, existsHash(key.Wiki), strconv.FormatInt(key.ID(), 10))
	if res.Err() != nil {
		if !errors.Is(res.Err(), redis.Nil) {
			logrus.Warnf("redis get exists: %v", res.Err())
		}
		return false, false
	}
	return res.Val() == "1", true
}

func (r *RedisDocumentCache) SetExists(ctx context.Context, key doc.Key, exists bool) error {
	value := "0"
	if exists {
		value = "1"
	}
	return r.client.HSet(ctx, existsHash(key.Wiki), strconv.FormatInt(key.ID(), 10), value).Err()
}

func (r *RedisDocumentCache) FlushWiki(ctx context.Context, wiki string) error {
	iter := r.client.Scan(ctx, 0, "document:"+wiki+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return r.client.Del(ctx, existsHash(wiki)).Err()
}

func (r *RedisDocumentCache) Flush(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, "document:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
