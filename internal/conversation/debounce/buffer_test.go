package debounce

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cashback_backend/internal/chat"
	"cashback_backend/internal/conversation/quiettimer"
	"cashback_backend/platform/apperr"
	"cashback_backend/platform/kv"
	"cashback_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testKey = chat.Key{Channel: "chat-1", Participant: "31612345678"}

type flushRecorder struct {
	mu      sync.Mutex
	calls   []FlushContext
	times   []time.Time
	notify  chan struct{}
	failErr error
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{notify: make(chan struct{}, 64)}
}

func (r *flushRecorder) fn(_ context.Context, fc FlushContext) error {
	r.mu.Lock()
	r.calls = append(r.calls, fc)
	r.times = append(r.times, time.Now())
	r.mu.Unlock()
	r.notify <- struct{}{}
	return r.failErr
}

func (r *flushRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *flushRecorder) waitForCall(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for flush")
	}
}

func newRedisBackedBuffer(t *testing.T, settings Settings) (*Buffer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	timer := quiettimer.New()
	t.Cleanup(timer.Stop)
	return New(kv.NewRedisStore(rdb, ""), timer, settings, logger.Nop()), mr
}

func defaultSettings(quiet time.Duration) Settings {
	return Settings{QuietPeriod: quiet, ImmediateThreshold: 200, AccumulationTTL: time.Minute}
}

func TestAddMergesBurstIntoSingleFlush(t *testing.T) {
	quiet := 150 * time.Millisecond
	buf, _ := newRedisBackedBuffer(t, defaultSettings(quiet))
	rec := newFlushRecorder()
	ctx := context.Background()

	start := time.Now()
	if err := buf.Add(ctx, testKey, chat.Unit{MessageID: "1", Text: "part one"}, rec.fn); err != nil {
		t.Fatalf("add: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if err := buf.Add(ctx, testKey, chat.Unit{MessageID: "2", Text: "part two"}, rec.fn); err != nil {
		t.Fatalf("add: %v", err)
	}

	// the first unit's timer would have fired at ~150ms; it must have been replaced
	time.Sleep(130 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatal("flush happened before the quiet period after the last unit elapsed")
	}

	rec.waitForCall(t, time.Second)
	time.Sleep(50 * time.Millisecond)

	if rec.count() != 1 {
		t.Fatalf("expected exactly one flush, got %d", rec.count())
	}
	fc := rec.calls[0]
	if got := chat.MergeText(fc.Units); got != "part one part two" {
		t.Fatalf("unexpected merged text %q", got)
	}
	if elapsed := rec.times[0].Sub(start); elapsed < 60*time.Millisecond+quiet {
		t.Fatalf("flush fired %s after start, expected at least %s", elapsed, 60*time.Millisecond+quiet)
	}
	if _, found, _ := buf.Pending(ctx, testKey); found {
		t.Fatal("expected batch to be deleted after flush")
	}
}

func TestNoiseOnlyBatchIsDroppedSilently(t *testing.T) {
	buf, _ := newRedisBackedBuffer(t, defaultSettings(40*time.Millisecond))
	rec := newFlushRecorder()
	ctx := context.Background()

	_ = buf.Add(ctx, testKey, chat.Unit{MessageID: "1", Text: "ok"}, rec.fn)
	_ = buf.Add(ctx, testKey, chat.Unit{MessageID: "2", Text: "👍"}, rec.fn)

	time.Sleep(150 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("expected noise batch to never reach the callback, got %d calls", rec.count())
	}
	if _, found, _ := buf.Pending(ctx, testKey); found {
		t.Fatal("expected noise batch to be removed from the store")
	}
}

func TestImmediateThresholdBypassesBuffer(t *testing.T) {
	buf, _ := newRedisBackedBuffer(t, Settings{QuietPeriod: time.Second, ImmediateThreshold: 20, AccumulationTTL: time.Minute})
	rec := newFlushRecorder()
	ctx := context.Background()

	if err := buf.Add(ctx, testKey, chat.Unit{MessageID: "1", Text: "short one"}, rec.fn); err != nil {
		t.Fatalf("add: %v", err)
	}
	long := strings.Repeat("x", 20)
	if err := buf.Add(ctx, testKey, chat.Unit{MessageID: "2", Text: long}, rec.fn); err != nil {
		t.Fatalf("add: %v", err)
	}

	if rec.count() != 1 {
		t.Fatalf("expected synchronous flush, got %d calls", rec.count())
	}
	fc := rec.calls[0]
	if !fc.Immediate || len(fc.Units) != 1 || fc.Units[0].MessageID != "2" {
		t.Fatalf("expected singleton immediate batch, got %+v", fc)
	}

	batch, found, err := buf.Pending(ctx, testKey)
	if err != nil || !found || len(batch.Units) != 1 || batch.Units[0].MessageID != "1" {
		t.Fatalf("expected pending batch to keep the short unit untouched, got %+v found=%v err=%v", batch, found, err)
	}
}

func TestAddPersistsBatchWithAccumulationTTL(t *testing.T) {
	buf, mr := newRedisBackedBuffer(t, Settings{QuietPeriod: time.Second, ImmediateThreshold: 200, AccumulationTTL: 3 * time.Minute})

	if err := buf.Add(context.Background(), testKey, chat.Unit{MessageID: "1", Text: "hello there"}, newFlushRecorder().fn); err != nil {
		t.Fatalf("add: %v", err)
	}
	if ttl := mr.TTL(storeKeyPrefix + testKey.String()); ttl != 3*time.Minute {
		t.Fatalf("expected batch ttl of 3m, got %s", ttl)
	}
}

func TestConcurrentFlushesDeliverOnce(t *testing.T) {
	buf, _ := newRedisBackedBuffer(t, defaultSettings(20*time.Millisecond))
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		var calls atomic.Int32
		onFlush := func(context.Context, FlushContext) error {
			calls.Add(1)
			return nil
		}

		if err := buf.Add(ctx, testKey, chat.Unit{MessageID: "m", Text: "photo of my order"}, onFlush); err != nil {
			t.Fatalf("add: %v", err)
		}

		time.Sleep(18 * time.Millisecond)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = buf.Flush(ctx, testKey, onFlush)
			}()
		}
		wg.Wait()
		time.Sleep(30 * time.Millisecond)

		if calls.Load() != 1 {
			t.Fatalf("round %d: expected exactly one delivery, got %d", round, calls.Load())
		}
	}
}

func TestFlushWithoutBatchReportsNothing(t *testing.T) {
	buf, _ := newRedisBackedBuffer(t, defaultSettings(time.Second))

	found, err := buf.Flush(context.Background(), testKey, newFlushRecorder().fn)
	if err != nil || found {
		t.Fatalf("expected (false, nil), got (%v, %v)", found, err)
	}
}

func TestFlushFailureIsNotRetried(t *testing.T) {
	buf, _ := newRedisBackedBuffer(t, defaultSettings(30*time.Millisecond))
	rec := newFlushRecorder()
	rec.failErr = errors.New("classifier down")
	ctx := context.Background()

	_ = buf.Add(ctx, testKey, chat.Unit{MessageID: "1", Text: "my review is live"}, rec.fn)
	rec.waitForCall(t, time.Second)
	time.Sleep(100 * time.Millisecond)

	if rec.count() != 1 {
		t.Fatalf("expected a single attempt, got %d", rec.count())
	}
	if _, found, _ := buf.Pending(ctx, testKey); found {
		t.Fatal("failed flush must not resurrect the batch")
	}
}

type flakyStore struct {
	kv.Store
	failGet bool
	failSet bool
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.failGet {
		return nil, errors.New("connection refused")
	}
	return s.Store.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.failSet {
		return errors.New("connection refused")
	}
	return s.Store.Set(ctx, key, value, ttl)
}

type countingTimer struct {
	armed atomic.Int32
}

func (c *countingTimer) Arm(string, time.Duration, func()) { c.armed.Add(1) }
func (c *countingTimer) Cancel(string) bool                { return false }

func TestAddReadFailureStartsFreshBatch(t *testing.T) {
	inner := kv.NewMemoryStore()
	store := &flakyStore{Store: inner, failGet: true}
	timer := &countingTimer{}
	buf := New(store, timer, defaultSettings(time.Second), logger.Nop())

	if err := buf.Add(context.Background(), testKey, chat.Unit{MessageID: "1", Text: "order placed"}, newFlushRecorder().fn); err != nil {
		t.Fatalf("expected add to degrade gracefully, got %v", err)
	}
	if timer.armed.Load() != 1 {
		t.Fatal("expected timer to be armed after a successful write")
	}
}

func TestAddWriteFailureDoesNotArmTimer(t *testing.T) {
	store := &flakyStore{Store: kv.NewMemoryStore(), failSet: true}
	timer := &countingTimer{}
	buf := New(store, timer, defaultSettings(time.Second), logger.Nop())

	err := buf.Add(context.Background(), testKey, chat.Unit{MessageID: "1", Text: "order placed"}, newFlushRecorder().fn)
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if timer.armed.Load() != 0 {
		t.Fatal("timer must not be armed against unpersisted state")
	}
}

func TestKeysAreBufferedIndependently(t *testing.T) {
	buf, _ := newRedisBackedBuffer(t, defaultSettings(40*time.Millisecond))
	rec := newFlushRecorder()
	ctx := context.Background()
	other := chat.Key{Channel: "chat-2", Participant: "31687654321"}

	_ = buf.Add(ctx, testKey, chat.Unit{MessageID: "a", Text: "first identity"}, rec.fn)
	_ = buf.Add(ctx, other, chat.Unit{MessageID: "b", Text: "second identity"}, rec.fn)

	rec.waitForCall(t, time.Second)
	rec.waitForCall(t, time.Second)

	if rec.count() != 2 {
		t.Fatalf("expected one flush per key, got %d", rec.count())
	}
}

func TestAddStampsArrivalAndScheduledFlush(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timer := &countingTimer{}
	buf := New(kv.NewMemoryStore(), timer, defaultSettings(5*time.Second), logger.Nop(), WithClock(func() time.Time { return at }))

	if err := buf.Add(context.Background(), testKey, chat.Unit{MessageID: "1", Text: "order 123"}, newFlushRecorder().fn); err != nil {
		t.Fatalf("add: %v", err)
	}

	batch, ok, err := buf.Pending(context.Background(), testKey)
	if err != nil || !ok {
		t.Fatalf("expected a pending batch, ok=%v err=%v", ok, err)
	}
	if !batch.Units[0].ArrivedAt.Equal(at) {
		t.Fatalf("expected arrival %s, got %s", at, batch.Units[0].ArrivedAt)
	}
	if !batch.ScheduledFlush.Equal(at.Add(5 * time.Second)) {
		t.Fatalf("expected flush at %s, got %s", at.Add(5*time.Second), batch.ScheduledFlush)
	}
	if timer.armed.Load() != 1 {
		t.Fatalf("expected one armed timer, got %d", timer.armed.Load())
	}
}

func TestPendingKeysFollowTheStore(t *testing.T) {
	buf, mr := newRedisBackedBuffer(t, defaultSettings(time.Hour))
	rec := newFlushRecorder()
	ctx := context.Background()
	other := chat.Key{Channel: "chat-2", Participant: "31687654321"}

	_ = buf.Add(ctx, testKey, chat.Unit{MessageID: "1", Text: "ok"}, rec.fn)
	_ = buf.Add(ctx, other, chat.Unit{MessageID: "2", Text: "order 123"}, rec.fn)
	mr.Set("debounce:batch:not-a-chat-key", "{}")

	keys, err := buf.PendingKeys(ctx)
	if err != nil {
		t.Fatalf("pending keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected both conversations, got %v", keys)
	}

	// A noise-only flush never reaches the callback but still clears the key.
	if ok, err := buf.Flush(ctx, testKey, rec.fn); !ok || err != nil {
		t.Fatalf("expected a flushed batch, ok=%v err=%v", ok, err)
	}
	keys, _ = buf.PendingKeys(ctx)
	if len(keys) != 1 || keys[0] != other {
		t.Fatalf("expected only %v pending, got %v", other, keys)
	}
	if rec.count() != 0 {
		t.Fatalf("expected no callback for the noise batch, got %d", rec.count())
	}
}
