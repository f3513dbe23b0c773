package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"shortlink-core/internal/cache"
	apperrors "shortlink-core/internal/errors"
	"shortlink-core/internal/model"
	"shortlink-core/internal/repository"
	"shortlink-core/internal/shortcode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	svc    *LinkService
	links  *repository.LinkRepository
	visits *repository.VisitRepository
	cache  *cache.ResolutionCache
}

func setupService(t *testing.T, opts Options) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.ShortLink{}, &model.VisitEvent{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	log := zap.NewNop().Sugar()
	links := repository.NewLinkRepository(db)
	visits := repository.NewVisitRepository(db)
	resolution := cache.NewResolutionCache(links, cache.Options{Shards: 4, LocalTTL: time.Minute}, log)
	allocator, err := shortcode.NewAllocator(links, shortcode.Options{}, log)
	require.NoError(t, err)

	return &testEnv{
		svc:    NewLinkService(links, visits, resolution, allocator, opts, log),
		links:  links,
		visits: visits,
		cache:  resolution,
	}
}

var owner = Actor{UserID: 1, Role: "user"}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestLinkService_CreateResolveDeactivateExpire(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()

	link, err := env.svc.Create(ctx, owner, CreateInput{URL: "https://example.com/a"})
	require.NoError(t, err)
	assert.Len(t, link.ShortCode, shortcode.CodeLength)
	assert.False(t, link.CustomAlias)

	_, target, err := env.svc.Resolve(ctx, link.ShortCode, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", target)

	_, err = env.svc.Update(ctx, owner, link.ShortCode, UpdateInput{IsActive: boolPtr(false)})
	require.NoError(t, err)
	_, _, err = env.svc.Resolve(ctx, link.ShortCode, nil)
	assert.ErrorIs(t, err, apperrors.ErrDeactivated)

	past := time.Now().Add(-time.Second)
	_, err = env.svc.Update(ctx, owner, link.ShortCode, UpdateInput{IsActive: boolPtr(true), ExpiresAt: &past})
	require.NoError(t, err)
	_, _, err = env.svc.Resolve(ctx, link.ShortCode, nil)
	assert.ErrorIs(t, err, apperrors.ErrExpired)

	_, err = env.svc.Update(ctx, owner, link.ShortCode, UpdateInput{ClearExpiry: true})
	require.NoError(t, err)
	_, _, err = env.svc.Resolve(ctx, link.ShortCode, nil)
	assert.NoError(t, err)
}

func TestLinkService_PasswordProtected(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()

	link, err := env.svc.Create(ctx, owner, CreateInput{URL: "https://example.com/secret", Password: "p1"})
	require.NoError(t, err)
	assert.NotEqual(t, "p1", link.PasswordHash)

	_, _, err = env.svc.Resolve(ctx, link.ShortCode, nil)
	assert.ErrorIs(t, err, apperrors.ErrPasswordRequired)

	_, _, err = env.svc.Resolve(ctx, link.ShortCode, strPtr("p2"))
	assert.ErrorIs(t, err, apperrors.ErrPasswordIncorrect)

	_, target, err := env.svc.Resolve(ctx, link.ShortCode, strPtr("p1"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/secret", target)

	_, err = env.svc.Update(ctx, owner, link.ShortCode, UpdateInput{Password: strPtr("")})
	require.NoError(t, err)
	_, _, err = env.svc.Resolve(ctx, link.ShortCode, nil)
	assert.NoError(t, err, "取消密码后直接放行")
}

func TestLinkService_CustomAlias(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()

	link, err := env.svc.Create(ctx, owner, CreateInput{URL: "https://example.com", Alias: "my-link"})
	require.NoError(t, err)
	assert.Equal(t, "my-link", link.ShortCode)
	assert.True(t, link.CustomAlias)

	_, err = env.svc.Create(ctx, owner, CreateInput{URL: "https://other.example", Alias: "my-link"})
	assert.ErrorIs(t, err, apperrors.ErrAliasTaken)

	require.NoError(t, env.svc.Delete(ctx, owner, "my-link"))
	_, err = env.svc.Create(ctx, owner, CreateInput{URL: "https://other.example", Alias: "my-link"})
	assert.ErrorIs(t, err, apperrors.ErrAliasTaken, "删除后的别名不能再次使用")

	_, err = env.svc.Create(ctx, owner, CreateInput{URL: "https://example.com", Alias: "a b"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidAlias)
}

func TestLinkService_InvalidURL(t *testing.T) {
	env := setupService(t, Options{})
	for _, raw := range []string{"", "not a url", "ftp://example.com/file", "https://", "/relative/path"} {
		_, err := env.svc.Create(context.Background(), owner, CreateInput{URL: raw})
		assert.ErrorIs(t, err, apperrors.ErrInvalidURL, raw)
	}
}

func TestLinkService_DefaultExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	env := setupService(t, Options{DefaultExpiry: 30 * 24 * time.Hour, Now: func() time.Time { return now }})

	link, err := env.svc.Create(context.Background(), owner, CreateInput{URL: "https://example.com"})
	require.NoError(t, err)
	require.NotNil(t, link.ExpiresAt)
	assert.True(t, now.Add(30*24*time.Hour).Equal(*link.ExpiresAt))

	explicit := now.Add(time.Hour)
	link, err = env.svc.Create(context.Background(), owner, CreateInput{URL: "https://example.com", ExpiresAt: &explicit})
	require.NoError(t, err)
	assert.True(t, explicit.Equal(*link.ExpiresAt))
}

func TestLinkService_Ownership(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()

	link, err := env.svc.Create(ctx, owner, CreateInput{URL: "https://example.com"})
	require.NoError(t, err)

	stranger := Actor{UserID: 2, Role: "user"}
	_, err = env.svc.Update(ctx, stranger, link.ShortCode, UpdateInput{IsActive: boolPtr(false)})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.ErrorIs(t, env.svc.Delete(ctx, stranger, link.ShortCode), apperrors.ErrForbidden)
	_, err = env.svc.Summary(ctx, stranger, link.ShortCode)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	admin := Actor{UserID: 99, Role: RoleAdmin}
	_, err = env.svc.Update(ctx, admin, link.ShortCode, UpdateInput{IsActive: boolPtr(false)})
	assert.NoError(t, err)

	_, err = env.svc.Update(ctx, owner, "missing", UpdateInput{IsActive: boolPtr(false)})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLinkService_MutationsInvalidateCache(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()

	link, err := env.svc.Create(ctx, owner, CreateInput{URL: "https://old.example"})
	require.NoError(t, err)
	_, target, err := env.svc.Resolve(ctx, link.ShortCode, nil)
	require.NoError(t, err)
	require.Equal(t, "https://old.example", target)

	_, err = env.svc.Update(ctx, owner, link.ShortCode, UpdateInput{URL: strPtr("https://new.example")})
	require.NoError(t, err)
	_, target, err = env.svc.Resolve(ctx, link.ShortCode, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://new.example", target)

	_, err = env.svc.Update(ctx, owner, link.ShortCode, UpdateInput{ImageRef: strPtr("qr/abc.png")})
	require.NoError(t, err)
	cached, err := env.svc.Preview(ctx, link.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "qr/abc.png", cached.ImageRef)

	require.NoError(t, env.svc.Delete(ctx, owner, link.ShortCode))
	_, _, err = env.svc.Resolve(ctx, link.ShortCode, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestVisitSink_AppendsCountsAndInvalidates(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()

	link, err := env.svc.Create(ctx, owner, CreateInput{URL: "https://example.com"})
	require.NoError(t, err)
	cached, err := env.svc.Preview(ctx, link.ShortCode)
	require.NoError(t, err)
	require.Equal(t, int64(0), cached.ClickCount)

	sink := NewVisitSink(env.visits, env.links, env.cache, zap.NewNop().Sugar())
	for _, ip := range []string{"8.8.8.8", "8.8.8.8", "1.1.1.1"} {
		require.NoError(t, sink.Append(ctx, &model.VisitEvent{
			ShortLinkID: link.ID, ShortCode: link.ShortCode, OwnerID: link.OwnerID,
			IPAddress: ip, Country: "US", CountryCode: "US", Browser: "Chrome", DeviceType: "Desktop",
		}))
	}

	cached, err = env.svc.Preview(ctx, link.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cached.ClickCount)

	summary, err := env.svc.Summary(ctx, owner, link.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.ClickCount)
	assert.Equal(t, int64(3), summary.TotalVisits)
	assert.Equal(t, int64(2), summary.UniqueVisitors)

	err = sink.Append(ctx, &model.VisitEvent{ShortLinkID: 999, ShortCode: "ghost"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// brokenInvalidation 模拟 Redis 不可用时失效返回错误
type brokenInvalidation struct {
	Resolver
}

func (brokenInvalidation) Invalidate(context.Context, string) error {
	return fmt.Errorf("redis: connection refused")
}

func TestVisitSink_InvalidationFailureStillRecorded(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()

	link, err := env.svc.Create(ctx, owner, CreateInput{URL: "https://example.com"})
	require.NoError(t, err)

	sink := NewVisitSink(env.visits, env.links, brokenInvalidation{Resolver: env.cache}, zap.NewNop().Sugar())
	require.NoError(t, sink.Append(ctx, &model.VisitEvent{ShortLinkID: link.ID, ShortCode: link.ShortCode, IPAddress: "8.8.8.8"}))

	stored, err := env.links.FindByCode(ctx, link.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ClickCount)
	summary, err := env.svc.Summary(ctx, owner, link.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalVisits)
}

// countingStore 记录 Update 次数，fail 为真时 Update 返回错误
type countingStore struct {
	*repository.LinkRepository
	updates int
	fail    bool
}

func (s *countingStore) Update(ctx context.Context, link *model.ShortLink) error {
	s.updates++
	if s.fail {
		return fmt.Errorf("db down")
	}
	return s.LinkRepository.Update(ctx, link)
}

func TestLinkService_UpdateWritesOnce(t *testing.T) {
	env := setupService(t, Options{})
	store := &countingStore{LinkRepository: env.links}
	alloc, err := shortcode.NewAllocator(env.links, shortcode.Options{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	svc := NewLinkService(store, env.visits, env.cache, alloc, Options{}, zap.NewNop().Sugar())
	ctx := context.Background()

	link, err := svc.Create(ctx, owner, CreateInput{URL: "https://old.example"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, owner, link.ShortCode, UpdateInput{
		URL:      strPtr("https://new.example"),
		ImageRef: strPtr("qr/new.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.updates)
	assert.Equal(t, "https://new.example", updated.OriginalURL)
	assert.Equal(t, "qr/new.png", updated.ImageRef)

	// 写入失败时两个字段都不生效
	store.fail = true
	_, err = svc.Update(ctx, owner, link.ShortCode, UpdateInput{
		URL:      strPtr("https://other.example"),
		ImageRef: strPtr("qr/other.png"),
	})
	assert.Error(t, err)
	assert.Equal(t, 2, store.updates)

	stored, err := env.links.FindByCode(ctx, link.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://new.example", stored.OriginalURL)
	assert.Equal(t, "qr/new.png", stored.ImageRef)
}

// conflictingStore 模拟检查通过但插入时撞上唯一索引
type conflictingStore struct {
	*repository.LinkRepository
	conflicts map[string]bool
}

func (s *conflictingStore) Create(ctx context.Context, link *model.ShortLink) error {
	if s.conflicts[link.ShortCode] {
		return apperrors.ErrCodeConflict
	}
	return s.LinkRepository.Create(ctx, link)
}

type scriptedAllocator struct {
	codes []string
	calls int
}

func (a *scriptedAllocator) Allocate(_ context.Context, alias string) (string, error) {
	if alias != "" {
		return alias, nil
	}
	code := a.codes[a.calls%len(a.codes)]
	a.calls++
	return code, nil
}

func (a *scriptedAllocator) MaxAttempts() int { return 3 }

func TestLinkService_InsertConflictRetries(t *testing.T) {
	env := setupService(t, Options{})
	store := &conflictingStore{LinkRepository: env.links, conflicts: map[string]bool{"taken1": true, "taken2": true, "alias": true}}
	ctx := context.Background()

	alloc := &scriptedAllocator{codes: []string{"taken1", "taken2", "free123"}}
	svc := NewLinkService(store, env.visits, env.cache, alloc, Options{}, zap.NewNop().Sugar())
	link, err := svc.Create(ctx, owner, CreateInput{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "free123", link.ShortCode)
	assert.Equal(t, 3, alloc.calls)

	exhausted := &scriptedAllocator{codes: []string{"taken1"}}
	svc = NewLinkService(store, env.visits, env.cache, exhausted, Options{}, zap.NewNop().Sugar())
	_, err = svc.Create(ctx, owner, CreateInput{URL: "https://example.com"})
	assert.ErrorIs(t, err, apperrors.ErrCodeSpaceExhausted)
	assert.Equal(t, 3, exhausted.calls)

	_, err = svc.Create(ctx, owner, CreateInput{URL: "https://example.com", Alias: "alias"})
	assert.ErrorIs(t, err, apperrors.ErrAliasTaken)
}
