package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-widget/internal/quiz"
)

func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         "localhost:1",
		DialTimeout:  10 * time.Millisecond,
		ReadTimeout:  10 * time.Millisecond,
		WriteTimeout: 10 * time.Millisecond,
		MaxRetries:   -1,
	})
}

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Minute, zerolog.Nop()), mr
}

func TestRedisKeys(t *testing.T) {
	id := uuid.MustParse("4b7e5c0a-8a4f-4c2e-9c1d-0f2a6b3e9d11")
	assert.Equal(t, "quiz:session:4b7e5c0a-8a4f-4c2e-9c1d-0f2a6b3e9d11", sessionKey(id))
	assert.Equal(t, "quiz:session:lock:4b7e5c0a-8a4f-4c2e-9c1d-0f2a6b3e9d11", lockKey(id))
}

func TestRedisStoreSaveLoad(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()
	sel := 2
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := Record{
		ID:        uuid.New(),
		State:     quiz.State{CurrentIndex: 1, Score: 1, Selected: &sel},
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, store.Save(ctx, rec))
	assert.Equal(t, time.Minute, mr.TTL(sessionKey(rec.ID)))

	got, err := store.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.State, got.State)
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))

	mr.FastForward(2 * time.Minute)
	_, err = store.Load(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	id := uuid.New()

	assert.ErrorIs(t, store.Delete(ctx, id), ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, Record{ID: id}))
	require.NoError(t, store.Delete(ctx, id))
	_, err := store.Load(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreCorruptedRecord(t *testing.T) {
	store, mr := newTestRedisStore(t)
	id := uuid.New()
	require.NoError(t, mr.Set(sessionKey(id), "{not json"))

	_, err := store.Load(context.Background(), id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreLockIsExclusive(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()
	id := uuid.New()

	unlock, err := store.Lock(ctx, id)
	require.NoError(t, err)
	assert.True(t, mr.Exists(lockKey(id)))

	_, err = store.Lock(ctx, id)
	assert.ErrorIs(t, err, ErrSessionBusy)

	require.NoError(t, unlock())
	assert.False(t, mr.Exists(lockKey(id)))

	unlock, err = store.Lock(ctx, id)
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestRedisStoreLockHonoursCancel(t *testing.T) {
	store, _ := newTestRedisStore(t)
	id := uuid.New()

	unlock, err := store.Lock(context.Background(), id)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Lock(ctx, id)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisStoreUnlockKeepsForeignLock(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()
	id := uuid.New()

	unlock, err := store.Lock(ctx, id)
	require.NoError(t, err)

	// Our lock expired and another replica took it over.
	mr.FastForward(defaultLockTTL + time.Second)
	require.NoError(t, mr.Set(lockKey(id), "other-owner"))

	require.NoError(t, unlock())
	owner, err := mr.Get(lockKey(id))
	require.NoError(t, err)
	assert.Equal(t, "other-owner", owner)
}

func TestManagerOverRedisStore(t *testing.T) {
	store, _ := newTestRedisStore(t)
	m := NewManager(quiz.DefaultBank(), store, nil, zerolog.Nop())
	ctx := context.Background()

	id, _, err := m.Create(ctx)
	require.NoError(t, err)

	res, err := m.Apply(ctx, id, Intent{Kind: IntentSelect, OptionIndex: 0})
	require.NoError(t, err)
	assert.True(t, res.Applied)

	view, err := m.View(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Score)
	assert.Equal(t, 25, view.ProgressPercent)

	require.NoError(t, m.Delete(ctx, id))
	_, err = m.View(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreUnavailable(t *testing.T) {
	client := deadRedis()
	defer client.Close()
	store := NewRedisStore(client, time.Minute, zerolog.Nop())
	ctx := context.Background()
	id := uuid.New()

	assert.Error(t, store.Ping(ctx))
	assert.Error(t, store.Save(ctx, Record{ID: id}))

	_, err := store.Load(ctx, id)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)

	_, err = store.Lock(ctx, id)
	assert.Error(t, err)
}
