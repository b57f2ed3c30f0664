package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"daily-digest/internal/model"

	"github.com/redis/go-redis/v9"
)

// itemTTL bounds how long item bodies are kept for on-demand generation.
// Seen-url markers are kept forever.
const itemTTL = 30 * 24 * time.Hour

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func usersKey() string {
	return "digest:users"
}

func userKey(id string) string {
	return fmt.Sprintf("digest:user:%s", id)
}

func aliasKey(alias string) string {
	return fmt.Sprintf("digest:alias:%s", strings.ToLower(alias))
}

func userSourcesKey(uid string) string {
	return fmt.Sprintf("digest:user:%s:sources", uid)
}

func sourceKey(id string) string {
	return fmt.Sprintf("digest:source:%s", id)
}

func apiKeyKey(uid, provider string) string {
	return fmt.Sprintf("digest:apikey:%s:%s", uid, strings.ToLower(provider))
}

func seenKey(uid, url string) string {
	h := sha1.Sum([]byte(url))
	return fmt.Sprintf("digest:seen:%s:%s", uid, hex.EncodeToString(h[:]))
}

func itemKey(id string) string {
	return fmt.Sprintf("digest:item:%s", id)
}

func userItemsKey(uid string) string {
	return fmt.Sprintf("digest:user:%s:items", uid)
}

func digestKey(uid, date string) string {
	return fmt.Sprintf("digest:digest:%s:%s", uid, date)
}

func inboxKey(sourceID string) string {
	return fmt.Sprintf("digest:inbox:%s", sourceID)
}

func claimKey(sourceID, claimID string) string {
	return fmt.Sprintf("digest:inbox:%s:claim:%s", sourceID, claimID)
}

func (s *RedisStore) getJSON(ctx context.Context, key string, v any) error {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return model.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, ttl).Err()
}

// Users

func (s *RedisStore) ListUsers(ctx context.Context) ([]model.UserProfile, error) {
	ids, err := s.rdb.SMembers(ctx, usersKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	out := make([]model.UserProfile, 0, len(ids))
	for _, id := range ids {
		u, err := s.GetUser(ctx, id)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *RedisStore) GetUser(ctx context.Context, id string) (model.UserProfile, error) {
	var u model.UserProfile
	err := s.getJSON(ctx, userKey(id), &u)
	return u, err
}

func (s *RedisStore) PutUser(ctx context.Context, u model.UserProfile) error {
	if u.ID == "" {
		return fmt.Errorf("%w: user id required", model.ErrConfiguration)
	}
	if err := s.setJSON(ctx, userKey(u.ID), u, 0); err != nil {
		return err
	}
	if u.Alias != "" {
		if err := s.rdb.Set(ctx, aliasKey(u.Alias), u.ID, 0).Err(); err != nil {
			return err
		}
	}
	return s.rdb.SAdd(ctx, usersKey(), u.ID).Err()
}

func (s *RedisStore) UserIDByAlias(ctx context.Context, alias string) (string, error) {
	id, err := s.rdb.Get(ctx, aliasKey(alias)).Result()
	if err == redis.Nil {
		return "", model.ErrNotFound
	}
	return id, err
}

// Sources

func (s *RedisStore) Sources(ctx context.Context, userID string) ([]model.Source, error) {
	ids, err := s.rdb.SMembers(ctx, userSourcesKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	out := make([]model.Source, 0, len(ids))
	for _, id := range ids {
		src, err := s.GetSource(ctx, id)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func (s *RedisStore) ActiveSources(ctx context.Context, userID string) ([]model.Source, error) {
	all, err := s.Sources(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, src := range all {
		if src.IsActive {
			out = append(out, src)
		}
	}
	return out, nil
}

func (s *RedisStore) GetSource(ctx context.Context, id string) (model.Source, error) {
	var src model.Source
	err := s.getJSON(ctx, sourceKey(id), &src)
	return src, err
}

func (s *RedisStore) PutSource(ctx context.Context, src model.Source) error {
	if src.ID == "" || src.UserID == "" {
		return fmt.Errorf("%w: source id and user id required", model.ErrConfiguration)
	}
	if err := s.setJSON(ctx, sourceKey(src.ID), src, 0); err != nil {
		return err
	}
	return s.rdb.SAdd(ctx, userSourcesKey(src.UserID), src.ID).Err()
}

func (s *RedisStore) TouchSource(ctx context.Context, id string, at time.Time) error {
	src, err := s.GetSource(ctx, id)
	if err != nil {
		return err
	}
	at = at.UTC()
	src.LastFetchedAt = &at
	return s.setJSON(ctx, sourceKey(id), src, 0)
}

// API keys

func (s *RedisStore) GetAPIKey(ctx context.Context, userID, provider string) (model.APIKey, error) {
	var k model.APIKey
	if err := s.getJSON(ctx, apiKeyKey(userID, provider), &k); err != nil {
		return k, err
	}
	if !k.IsActive || strings.TrimSpace(k.Key) == "" {
		return model.APIKey{}, model.ErrNotFound
	}
	return k, nil
}

func (s *RedisStore) PutAPIKey(ctx context.Context, k model.APIKey) error {
	return s.setJSON(ctx, apiKeyKey(k.UserID, k.Provider), k, 0)
}

// Content items

func (s *RedisStore) ContentExists(ctx context.Context, userID, contentURL string) (bool, error) {
	if contentURL == "" {
		return false, nil
	}
	n, err := s.rdb.Exists(ctx, seenKey(userID, contentURL)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// insertItemScript writes the seen marker, the item body and the index entry
// together. The index write goes first so a failing write leaves nothing
// behind.
var insertItemScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[4])
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
redis.call('SET', KEYS[1], ARGV[4])
return 1
`)

func (s *RedisStore) InsertContentItem(ctx context.Context, it model.ContentItem) error {
	if it.ID == "" {
		return fmt.Errorf("%w: item id required", model.ErrConfiguration)
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(it)
	if err != nil {
		return err
	}
	score := float64(it.CreatedAt.Unix())
	if it.ContentURL == "" {
		_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.ZAdd(ctx, userItemsKey(it.UserID), redis.Z{Score: score, Member: it.ID})
			p.Set(ctx, itemKey(it.ID), b, itemTTL)
			return nil
		})
		return err
	}
	keys := []string{seenKey(it.UserID, it.ContentURL), itemKey(it.ID), userItemsKey(it.UserID)}
	n, err := insertItemScript.Run(ctx, s.rdb, keys, b, itemTTL.Milliseconds(), strconv.FormatInt(it.CreatedAt.Unix(), 10), it.ID).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: content %s", model.ErrDuplicate, it.ContentURL)
	}
	return nil
}

func (s *RedisStore) ContentItems(ctx context.Context, userID string, from, to time.Time) ([]model.ContentItem, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, userItemsKey(userID), &redis.ZRangeBy{
		Min: strconv.FormatInt(from.Unix(), 10),
		Max: "(" + strconv.FormatInt(to.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.ContentItem, 0, len(ids))
	for _, id := range ids {
		var it model.ContentItem
		err := s.getJSON(ctx, itemKey(id), &it)
		if errors.Is(err, model.ErrNotFound) {
			continue // expired
		}
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// Digests

func (s *RedisStore) DigestExists(ctx context.Context, userID, date string) (bool, error) {
	n, err := s.rdb.Exists(ctx, digestKey(userID, date)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) CreateDigest(ctx context.Context, d model.Digest) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, digestKey(d.UserID, d.Date), b, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: digest %s/%s", model.ErrDuplicate, d.UserID, d.Date)
	}
	return nil
}

func (s *RedisStore) GetDigest(ctx context.Context, userID, date string) (model.Digest, error) {
	var d model.Digest
	err := s.getJSON(ctx, digestKey(userID, date), &d)
	return d, err
}

func (s *RedisStore) MarkDelivered(ctx context.Context, userID, date string, at time.Time) error {
	d, err := s.GetDigest(ctx, userID, date)
	if err != nil {
		return err
	}
	at = at.UTC()
	d.DeliveredAt = &at
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.rdb.SetXX(ctx, digestKey(userID, date), b, 0).Err()
}

// Inbound email

func (s *RedisStore) PushInboundEmail(ctx context.Context, sourceID string, e model.InboundEmail) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, inboxKey(sourceID), b).Err()
}

// ClaimInboundEmails moves up to max of the oldest emails onto the claim's
// list.
// TODO: sweep claim lists left behind by a crashed process back into the inbox.
func (s *RedisStore) ClaimInboundEmails(ctx context.Context, sourceID, claimID string, max int) ([]model.InboundEmail, error) {
	if claimID == "" {
		return nil, fmt.Errorf("%w: claim id required", model.ErrConfiguration)
	}
	var out []model.InboundEmail
	for len(out) < max {
		b, err := s.rdb.LMove(ctx, inboxKey(sourceID), claimKey(sourceID, claimID), "LEFT", "RIGHT").Bytes()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return out, err
		}
		var e model.InboundEmail
		if err := json.Unmarshal(b, &e); err != nil {
			return out, fmt.Errorf("%w: inbound email: %v", model.ErrParse, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// AckInboundEmails drops the claimed emails for good.
func (s *RedisStore) AckInboundEmails(ctx context.Context, sourceID, claimID string) error {
	return s.rdb.Del(ctx, claimKey(sourceID, claimID)).Err()
}

// ReleaseInboundEmails puts claimed emails back at the head of the inbox.
func (s *RedisStore) ReleaseInboundEmails(ctx context.Context, sourceID, claimID string) error {
	for {
		err := s.rdb.LMove(ctx, claimKey(sourceID, claimID), inboxKey(sourceID), "RIGHT", "LEFT").Err()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
