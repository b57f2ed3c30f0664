package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"daily-digest/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var Schema string

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore keeps the same contract as RedisStore on top of postgres.
// Uniqueness comes from table constraints; conflicting inserts affect zero
// rows and are reported as model.ErrDuplicate.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%w: postgres dsn is empty", model.ErrConfiguration)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) exec(ctx context.Context, b sq.Sqlizer) (int64, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) queryRow(ctx context.Context, b sq.Sqlizer, dest ...any) error {
	q, args, err := b.ToSql()
	if err != nil {
		return err
	}
	err = s.pool.QueryRow(ctx, q, args...).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

func (s *PostgresStore) query(ctx context.Context, b sq.Sqlizer) (pgx.Rows, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return s.pool.Query(ctx, q, args...)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Query builders. Kept separate so they can be checked without a database.

func upsertUserQuery(u model.UserProfile, prefs []byte) sq.InsertBuilder {
	return psql.Insert("users").
		Columns("id", "email", "alias", "timezone", "digest_time", "digest_format", "preferences").
		Values(u.ID, u.Email, nullable(strings.ToLower(u.Alias)), u.Timezone, u.DigestTime, string(u.DigestFormat), prefs).
		Suffix(`ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, alias = EXCLUDED.alias,
			timezone = EXCLUDED.timezone, digest_time = EXCLUDED.digest_time,
			digest_format = EXCLUDED.digest_format, preferences = EXCLUDED.preferences`)
}

func selectUsersQuery() sq.SelectBuilder {
	return psql.Select("id", "email", "COALESCE(alias, '')", "timezone", "digest_time", "digest_format", "preferences").
		From("users")
}

func upsertSourceQuery(src model.Source, cfg, filters []byte) sq.InsertBuilder {
	created := src.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return psql.Insert("sources").
		Columns("id", "user_id", "type", "name", "config", "filters", "is_active", "last_fetched_at", "created_at").
		Values(src.ID, src.UserID, string(src.Type), src.Name, cfg, filters, src.IsActive, src.LastFetchedAt, created).
		Suffix(`ON CONFLICT (id) DO UPDATE SET type = EXCLUDED.type, name = EXCLUDED.name,
			config = EXCLUDED.config, filters = EXCLUDED.filters, is_active = EXCLUDED.is_active`)
}

func selectSourcesQuery() sq.SelectBuilder {
	return psql.Select("id", "user_id", "type", "name", "config", "filters", "is_active", "last_fetched_at", "created_at").
		From("sources")
}

func insertContentQuery(it model.ContentItem, body []byte) sq.InsertBuilder {
	return psql.Insert("content_items").
		Columns("id", "user_id", "source_id", "content_url", "body", "importance_score", "created_at").
		Values(it.ID, it.UserID, it.SourceID, nullable(it.ContentURL), body, it.ImportanceScore, it.CreatedAt).
		Suffix("ON CONFLICT DO NOTHING")
}

func insertDigestQuery(d model.Digest, body []byte) sq.InsertBuilder {
	return psql.Insert("digests").
		Columns("id", "user_id", "digest_date", "body", "created_at").
		Values(d.ID, d.UserID, d.Date, body, d.CreatedAt).
		Suffix("ON CONFLICT (user_id, digest_date) DO NOTHING")
}

// Users

func scanUser(row pgx.Row) (model.UserProfile, error) {
	var u model.UserProfile
	var format string
	var prefs []byte
	if err := row.Scan(&u.ID, &u.Email, &u.Alias, &u.Timezone, &u.DigestTime, &format, &prefs); err != nil {
		return u, err
	}
	u.DigestFormat = model.DigestFormat(format)
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return u, err
		}
	}
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.UserProfile, error) {
	rows, err := s.query(ctx, selectUsersQuery().OrderBy("id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.UserProfile
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (model.UserProfile, error) {
	q, args, err := selectUsersQuery().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return model.UserProfile{}, err
	}
	u, err := scanUser(s.pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return u, model.ErrNotFound
	}
	return u, err
}

func (s *PostgresStore) PutUser(ctx context.Context, u model.UserProfile) error {
	prefs, err := json.Marshal(u.Preferences)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, upsertUserQuery(u, prefs))
	return err
}

func (s *PostgresStore) UserIDByAlias(ctx context.Context, alias string) (string, error) {
	var id string
	err := s.queryRow(ctx, psql.Select("id").From("users").Where(sq.Eq{"alias": strings.ToLower(alias)}), &id)
	return id, err
}

// Sources

func scanSource(row pgx.Row) (model.Source, error) {
	var src model.Source
	var typ string
	var cfg, filters []byte
	if err := row.Scan(&src.ID, &src.UserID, &typ, &src.Name, &cfg, &filters, &src.IsActive, &src.LastFetchedAt, &src.CreatedAt); err != nil {
		return src, err
	}
	src.Type = model.SourceType(typ)
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &src.Config); err != nil {
			return src, err
		}
	}
	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &src.Filters); err != nil {
			return src, err
		}
	}
	return src, nil
}

func (s *PostgresStore) listSources(ctx context.Context, where sq.Sqlizer) ([]model.Source, error) {
	rows, err := s.query(ctx, selectSourcesQuery().Where(where).OrderBy("id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Sources(ctx context.Context, userID string) ([]model.Source, error) {
	return s.listSources(ctx, sq.Eq{"user_id": userID})
}

func (s *PostgresStore) ActiveSources(ctx context.Context, userID string) ([]model.Source, error) {
	return s.listSources(ctx, sq.Eq{"user_id": userID, "is_active": true})
}

func (s *PostgresStore) GetSource(ctx context.Context, id string) (model.Source, error) {
	q, args, err := selectSourcesQuery().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return model.Source{}, err
	}
	src, err := scanSource(s.pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return src, model.ErrNotFound
	}
	return src, err
}

func (s *PostgresStore) PutSource(ctx context.Context, src model.Source) error {
	cfg, err := json.Marshal(src.Config)
	if err != nil {
		return err
	}
	filters, err := json.Marshal(src.Filters)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, upsertSourceQuery(src, cfg, filters))
	return err
}

func (s *PostgresStore) TouchSource(ctx context.Context, id string, at time.Time) error {
	n, err := s.exec(ctx, psql.Update("sources").Set("last_fetched_at", at.UTC()).Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// API keys

func (s *PostgresStore) GetAPIKey(ctx context.Context, userID, provider string) (model.APIKey, error) {
	k := model.APIKey{UserID: userID, Provider: strings.ToLower(provider), IsActive: true}
	err := s.queryRow(ctx, psql.Select("api_key").From("api_keys").
		Where(sq.Eq{"user_id": userID, "provider": k.Provider, "is_active": true}), &k.Key)
	if err != nil {
		return model.APIKey{}, err
	}
	if strings.TrimSpace(k.Key) == "" {
		return model.APIKey{}, model.ErrNotFound
	}
	return k, nil
}

func (s *PostgresStore) PutAPIKey(ctx context.Context, k model.APIKey) error {
	_, err := s.exec(ctx, psql.Insert("api_keys").
		Columns("user_id", "provider", "api_key", "is_active").
		Values(k.UserID, strings.ToLower(k.Provider), k.Key, k.IsActive).
		Suffix("ON CONFLICT (user_id, provider) DO UPDATE SET api_key = EXCLUDED.api_key, is_active = EXCLUDED.is_active"))
	return err
}

// Content items

func (s *PostgresStore) ContentExists(ctx context.Context, userID, contentURL string) (bool, error) {
	if contentURL == "" {
		return false, nil
	}
	var exists bool
	err := s.queryRow(ctx, psql.Select("1").Prefix("SELECT EXISTS(").
		From("content_items").Where(sq.Eq{"user_id": userID, "content_url": contentURL}).Suffix(")"), &exists)
	return exists, err
}

func (s *PostgresStore) InsertContentItem(ctx context.Context, it model.ContentItem) error {
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(it)
	if err != nil {
		return err
	}
	n, err := s.exec(ctx, insertContentQuery(it, body))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: content %s", model.ErrDuplicate, it.ContentURL)
	}
	return nil
}

func (s *PostgresStore) ContentItems(ctx context.Context, userID string, from, to time.Time) ([]model.ContentItem, error) {
	rows, err := s.query(ctx, psql.Select("body").From("content_items").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.GtOrEq{"created_at": from}).
		Where(sq.Lt{"created_at": to}).
		OrderBy("created_at"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ContentItem
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var it model.ContentItem
		if err := json.Unmarshal(body, &it); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Digests

func (s *PostgresStore) DigestExists(ctx context.Context, userID, date string) (bool, error) {
	var exists bool
	err := s.queryRow(ctx, psql.Select("1").Prefix("SELECT EXISTS(").
		From("digests").Where(sq.Eq{"user_id": userID, "digest_date": date}).Suffix(")"), &exists)
	return exists, err
}

func (s *PostgresStore) CreateDigest(ctx context.Context, d model.Digest) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	n, err := s.exec(ctx, insertDigestQuery(d, body))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: digest %s/%s", model.ErrDuplicate, d.UserID, d.Date)
	}
	return nil
}

func (s *PostgresStore) GetDigest(ctx context.Context, userID, date string) (model.Digest, error) {
	var body []byte
	var delivered *time.Time
	var d model.Digest
	err := s.queryRow(ctx, psql.Select("body", "delivered_at").From("digests").
		Where(sq.Eq{"user_id": userID, "digest_date": date}), &body, &delivered)
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(body, &d); err != nil {
		return d, err
	}
	d.DeliveredAt = delivered
	return d, nil
}

func (s *PostgresStore) MarkDelivered(ctx context.Context, userID, date string, at time.Time) error {
	n, err := s.exec(ctx, psql.Update("digests").Set("delivered_at", at.UTC()).
		Where(sq.Eq{"user_id": userID, "digest_date": date}))
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Inbound email

func (s *PostgresStore) PushInboundEmail(ctx context.Context, sourceID string, e model.InboundEmail) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, psql.Insert("inbound_emails").Columns("source_id", "body").Values(sourceID, body))
	return err
}

func claimInboxQuery(sourceID, claimID string, max int) (sq.UpdateBuilder, error) {
	// Question placeholders here; the outer builder renumbers them.
	subSQL, subArgs, err := sq.Select("id").From("inbound_emails").
		Where(sq.Eq{"source_id": sourceID, "claim_id": nil}).
		OrderBy("id").Limit(uint64(max)).Suffix("FOR UPDATE SKIP LOCKED").ToSql()
	if err != nil {
		return sq.UpdateBuilder{}, err
	}
	return psql.Update("inbound_emails").
		Set("claim_id", claimID).
		Where("id IN ("+subSQL+")", subArgs...).
		Suffix("RETURNING id, body"), nil
}

// ClaimInboundEmails tags up to max of the oldest unclaimed emails with
// claimID and returns them oldest first.
func (s *PostgresStore) ClaimInboundEmails(ctx context.Context, sourceID, claimID string, max int) ([]model.InboundEmail, error) {
	if claimID == "" {
		return nil, fmt.Errorf("%w: claim id required", model.ErrConfiguration)
	}
	if max <= 0 {
		return nil, nil
	}
	q, err := claimInboxQuery(sourceID, claimID, max)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	type claimed struct {
		id int64
		e  model.InboundEmail
	}
	var got []claimed
	for rows.Next() {
		var (
			id   int64
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		var e model.InboundEmail
		if err := json.Unmarshal(body, &e); err != nil {
			return nil, fmt.Errorf("%w: inbound email: %v", model.ErrParse, err)
		}
		got = append(got, claimed{id: id, e: e})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(got, func(i, j int) bool { return got[i].id < got[j].id })
	out := make([]model.InboundEmail, len(got))
	for i, c := range got {
		out[i] = c.e
	}
	return out, nil
}

func (s *PostgresStore) AckInboundEmails(ctx context.Context, sourceID, claimID string) error {
	_, err := s.exec(ctx, psql.Delete("inbound_emails").Where(sq.Eq{"source_id": sourceID, "claim_id": claimID}))
	return err
}

// ReleaseInboundEmails clears the claim. Ids keep the original order.
func (s *PostgresStore) ReleaseInboundEmails(ctx context.Context, sourceID, claimID string) error {
	_, err := s.exec(ctx, psql.Update("inbound_emails").Set("claim_id", nil).
		Where(sq.Eq{"source_id": sourceID, "claim_id": claimID}))
	return err
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
