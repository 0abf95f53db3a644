package cache

import (
	"encoding/json"
	"errors"
	"time"
)

// Metadata 是 <key>-cache-metadata.json 的内容，字段名与类型固定。
type Metadata struct {
	TTLSecs         uint64 `json:"ttl_secs"`
	CreatedUnixtime uint64 `json:"created_unixtime"`
}

// rawMetadata 用指针区分“缺失”与“零值”，未知字段直接忽略。
type rawMetadata struct {
	TTLSecs         *uint64 `json:"ttl_secs"`
	CreatedUnixtime *uint64 `json:"created_unixtime"`
}

func newMetadata(ttlSecs uint64, now time.Time) Metadata {
	created := now.Unix()
	if created < 0 {
		created = 0
	}
	return Metadata{TTLSecs: ttlSecs, CreatedUnixtime: uint64(created)}
}

func parseMetadata(data []byte) (Metadata, error) {
	var raw rawMetadata
	if err := json.Unmarshal(data, &raw); err != nil {
		return Metadata{}, err
	}
	if raw.TTLSecs == nil {
		return Metadata{}, errors.New("missing ttl_secs")
	}
	if raw.CreatedUnixtime == nil {
		return Metadata{}, errors.New("missing created_unixtime")
	}
	return Metadata{TTLSecs: *raw.TTLSecs, CreatedUnixtime: *raw.CreatedUnixtime}, nil
}

// Expired 判断条目在 now 时是否过期；TTLSecs 为 0 表示永不过期。
// 时钟落后于创建时间时按已过 0 秒处理。
func (m Metadata) Expired(now time.Time) bool {
	if m.TTLSecs == 0 {
		return false
	}
	return m.elapsed(now) >= m.TTLSecs
}

// ExpiresAt 返回过期时刻；永不过期时返回零值。
func (m Metadata) ExpiresAt() time.Time {
	if m.TTLSecs == 0 {
		return time.Time{}
	}
	return time.Unix(int64(m.CreatedUnixtime+m.TTLSecs), 0).UTC()
}

// CreatedAt 返回写入时刻。
func (m Metadata) CreatedAt() time.Time {
	return time.Unix(int64(m.CreatedUnixtime), 0).UTC()
}

func (m Metadata) elapsed(now time.Time) uint64 {
	current := now.Unix()
	if current < 0 || uint64(current) <= m.CreatedUnixtime {
		return 0
	}
	return uint64(current) - m.CreatedUnixtime
}

// TTLSeconds 将 Duration 向上取整为秒；d <= 0 表示永不过期。
func TTLSeconds(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	secs := d / time.Second
	if d%time.Second != 0 {
		secs++
	}
	return uint64(secs)
}
