// Package debounce coalesces bursts of chat units from one conversation into a
// single batch that is handed downstream once the sender goes quiet.
package debounce

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"cashback_backend/internal/chat"
	"cashback_backend/internal/conversation/quiettimer"
	"cashback_backend/internal/conversation/textfilter"
	"cashback_backend/platform/apperr"
	"cashback_backend/platform/kv"
	"cashback_backend/platform/logger"
)

const storeKeyPrefix = "debounce:batch:"

// Batch is the persisted accumulation for one key.
type Batch struct {
	Units          []chat.Unit `json:"units"`
	ScheduledFlush time.Time   `json:"scheduledFlush"`
	PersistedAt    time.Time   `json:"persistedAt"`
}

// FlushContext is handed by value to the flush callback.
type FlushContext struct {
	Key       chat.Key
	Units     []chat.Unit
	Immediate bool
	// Dropped counts noise units removed before the callback.
	Dropped int
}

// FlushFunc receives the meaningful units of a flushed batch.
type FlushFunc func(ctx context.Context, fc FlushContext) error

// Settings are the aggregation timings.
type Settings struct {
	QuietPeriod        time.Duration
	ImmediateThreshold int
	AccumulationTTL    time.Duration
}

// Timer is the subset of the quiet-timer scheduler the buffer needs.
type Timer interface {
	Arm(key string, delay time.Duration, callback func())
	Cancel(key string) bool
}

// Buffer persists pending units per key and flushes each batch at most once.
type Buffer struct {
	store    kv.Store
	timer    Timer
	settings Settings
	log      *logger.Logger
	now      func() time.Time
	baseCtx  context.Context

	locks keyedMutex
}

// Option customises a Buffer.
type Option func(*Buffer)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Buffer) { b.now = now }
}

// WithBaseContext sets the context timer-triggered flushes run under.
func WithBaseContext(ctx context.Context) Option {
	return func(b *Buffer) { b.baseCtx = ctx }
}

// New creates a buffer. A nil timer gets a fresh quiettimer.Scheduler.
func New(store kv.Store, timer Timer, settings Settings, log *logger.Logger, opts ...Option) *Buffer {
	if timer == nil {
		timer = quiettimer.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	if settings.AccumulationTTL < settings.QuietPeriod {
		settings.AccumulationTTL = settings.QuietPeriod
	}
	b := &Buffer{
		store:    store,
		timer:    timer,
		settings: settings,
		log:      log,
		now:      time.Now,
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add records unit for key. Long units bypass buffering and are flushed
// synchronously as a singleton batch. Otherwise the unit is appended to the
// stored batch and the quiet timer for key is re-armed.
func (b *Buffer) Add(ctx context.Context, key chat.Key, unit chat.Unit, onFlush FlushFunc) error {
	if unit.ArrivedAt.IsZero() {
		unit.ArrivedAt = b.now().UTC()
	}

	if b.settings.ImmediateThreshold > 0 && utf8.RuneCountInString(unit.Text) >= b.settings.ImmediateThreshold {
		b.log.Debug("debounce: immediate dispatch", "key", key.String(), "messageId", unit.MessageID)
		return onFlush(ctx, FlushContext{Key: key, Units: []chat.Unit{unit}, Immediate: true})
	}

	storeKey := key.String()
	unlock := b.locks.lock(storeKey)
	defer unlock()

	batch := b.load(ctx, storeKey)
	now := b.now().UTC()
	batch.Units = append(batch.Units, unit)
	batch.ScheduledFlush = now.Add(b.settings.QuietPeriod)
	batch.PersistedAt = now

	payload, err := json.Marshal(batch)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "encode pending batch", err).WithOp("debounce.Add")
	}
	if err := b.store.Set(ctx, storeKeyPrefix+storeKey, payload, b.settings.AccumulationTTL); err != nil {
		return apperr.Unavailable("persist pending batch", err).WithOp("debounce.Add")
	}

	b.timer.Arm(storeKey, b.settings.QuietPeriod, func() {
		if _, err := b.flush(b.baseCtx, key, onFlush, false); err != nil {
			b.log.Error("debounce: flush failed", "key", storeKey, "error", err)
		}
	})

	b.log.Debug("debounce: unit queued",
		"key", storeKey,
		"messageId", unit.MessageID,
		"pending", len(batch.Units),
		"flushAt", batch.ScheduledFlush,
	)
	return nil
}

// Flush forces the batch for key out now, cancelling its timer. It reports
// whether a batch was found. A concurrent timer fire and forced flush hand the
// batch downstream at most once between them.
func (b *Buffer) Flush(ctx context.Context, key chat.Key, onFlush FlushFunc) (bool, error) {
	return b.flush(ctx, key, onFlush, true)
}

// Pending returns the stored batch for key without modifying it.
func (b *Buffer) Pending(ctx context.Context, key chat.Key) (Batch, bool, error) {
	raw, err := b.store.Get(ctx, storeKeyPrefix+key.String())
	if errors.Is(err, kv.ErrNotFound) {
		return Batch{}, false, nil
	}
	if err != nil {
		return Batch{}, false, apperr.Unavailable("read pending batch", err)
	}
	var batch Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return Batch{}, false, apperr.Wrap(apperr.KindInternal, "decode pending batch", err)
	}
	return batch, true, nil
}

// PendingKeys lists the conversations that have a stored batch. Batches left
// behind by a previous process are included.
func (b *Buffer) PendingKeys(ctx context.Context) ([]chat.Key, error) {
	storeKeys, err := b.store.Keys(ctx, storeKeyPrefix)
	if err != nil {
		return nil, apperr.Unavailable("list pending batches", err).WithOp("debounce.PendingKeys")
	}
	keys := make([]chat.Key, 0, len(storeKeys))
	for _, storeKey := range storeKeys {
		key, err := chat.ParseKey(strings.TrimPrefix(storeKey, storeKeyPrefix))
		if err != nil {
			b.log.Warn("debounce: unrecognised batch key skipped", "key", storeKey)
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (b *Buffer) flush(ctx context.Context, key chat.Key, onFlush FlushFunc, forced bool) (bool, error) {
	storeKey := key.String()

	unlock := b.locks.lock(storeKey)
	if forced {
		b.timer.Cancel(storeKey)
	}
	raw, err := b.store.GetAndDelete(ctx, storeKeyPrefix+storeKey)
	unlock()

	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Unavailable("take pending batch", err).WithOp("debounce.Flush")
	}

	var batch Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return true, apperr.Wrap(apperr.KindInternal, "decode pending batch", err).WithOp("debounce.Flush")
	}

	meaningful := textfilter.Meaningful(batch.Units)
	var waited time.Duration
	if len(batch.Units) > 0 {
		waited = b.now().Sub(batch.Units[0].ArrivedAt)
	}
	b.log.BatchFlushed(storeKey, len(batch.Units), len(meaningful), waited)

	if len(meaningful) == 0 {
		return true, nil
	}

	return true, onFlush(ctx, FlushContext{
		Key:     key,
		Units:   meaningful,
		Dropped: len(batch.Units) - len(meaningful),
	})
}

// load reads the current batch. Any read failure degrades to an empty batch.
func (b *Buffer) load(ctx context.Context, storeKey string) Batch {
	raw, err := b.store.Get(ctx, storeKeyPrefix+storeKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			b.log.Warn("debounce: batch read failed, starting fresh", "key", storeKey, "error", err)
		}
		return Batch{}
	}

	var batch Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		b.log.Warn("debounce: corrupt batch discarded", "key", storeKey, "error", err)
		return Batch{}
	}
	return batch
}

// keyedMutex serialises work per key. Entries are reference counted and
// removed when the last holder unlocks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
