package usage_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fitmeter/pkg/usage"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, userID uuid.UUID, monthKey string, action usage.Action) (int64, error) {
	args := m.Called(ctx, userID, monthKey, action)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) Increment(ctx context.Context, userID uuid.UUID, monthKey string, action usage.Action) (int64, error) {
	args := m.Called(ctx, userID, monthKey, action)
	return args.Get(0).(int64), args.Error(1)
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) Degraded(op string, action usage.Action) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, op+":"+string(action))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestCounterCountUsesCurrentMonthKey(t *testing.T) {
	t.Parallel()

	store := &MockStore{}
	userID := uuid.New()
	now := time.Date(2024, 2, 14, 9, 30, 0, 0, time.UTC)
	store.On("Get", mock.Anything, userID, "2024-02", usage.ActionAIPlans).Return(int64(2), nil)

	counter := usage.NewCounter(store, usage.WithClock(fixedClock(now)))

	assert.Equal(t, int64(2), counter.Count(context.Background(), userID, usage.ActionAIPlans))
	store.AssertExpectations(t)
}

func TestCounterReadFailureDegradesToZero(t *testing.T) {
	t.Parallel()

	store := &MockStore{}
	userID := uuid.New()
	store.On("Get", mock.Anything, userID, mock.Anything, usage.ActionWorkouts).
		Return(int64(0), errors.New("connection reset"))

	var buf bytes.Buffer
	obs := &recordingObserver{}
	counter := usage.NewCounter(store,
		usage.WithLogger(newTestLogger(&buf)),
		usage.WithObserver(obs),
	)

	var got int64
	require.NotPanics(t, func() {
		got = counter.Count(context.Background(), userID, usage.ActionWorkouts)
	})
	assert.Equal(t, int64(0), got)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "usage counter read degraded")
	assert.Equal(t, []string{"read:workouts"}, obs.calls)
}

func TestCounterIncrementFailureIsLoggedOnly(t *testing.T) {
	t.Parallel()

	store := &MockStore{}
	userID := uuid.New()
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	store.On("Increment", mock.Anything, userID, "2024-07", usage.ActionAIPlans).
		Return(int64(0), errors.New("deadlock detected"))

	var buf bytes.Buffer
	obs := &recordingObserver{}
	counter := usage.NewCounter(store,
		usage.WithLogger(newTestLogger(&buf)),
		usage.WithClock(fixedClock(now)),
		usage.WithObserver(obs),
	)

	require.NotPanics(t, func() {
		counter.Increment(context.Background(), userID, usage.ActionAIPlans)
	})
	assert.Contains(t, buf.String(), "usage counter increment failed")
	assert.Equal(t, []string{"increment:ai_plans"}, obs.calls)
	store.AssertExpectations(t)
}

func TestCounterConcurrentIncrements(t *testing.T) {
	t.Parallel()

	store := usage.NewMemoryStore()
	counter := usage.NewCounter(store)
	userID := uuid.New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter.Increment(ctx, userID, usage.ActionWorkouts)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), counter.Count(ctx, userID, usage.ActionWorkouts))
}

func TestCounterMonthRollover(t *testing.T) {
	t.Parallel()

	store := usage.NewMemoryStore()
	userID := uuid.New()
	ctx := context.Background()

	now := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	clock := func() time.Time { return now }
	counter := usage.NewCounter(store, usage.WithClock(clock))

	counter.Increment(ctx, userID, usage.ActionWorkouts)
	counter.Increment(ctx, userID, usage.ActionWorkouts)
	assert.Equal(t, int64(2), counter.Count(ctx, userID, usage.ActionWorkouts))

	now = time.Date(2024, 2, 1, 0, 0, 1, 0, time.UTC)
	assert.Equal(t, int64(0), counter.Count(ctx, userID, usage.ActionWorkouts))
}

func TestCounterHistory(t *testing.T) {
	t.Parallel()

	store := usage.NewMemoryStore()
	userID := uuid.New()
	ctx := context.Background()

	_, err := store.Increment(ctx, userID, "2024-02", usage.ActionWorkouts)
	require.NoError(t, err)
	for range 3 {
		_, err = store.Increment(ctx, userID, "2024-03", usage.ActionWorkouts)
		require.NoError(t, err)
	}

	counter := usage.NewCounter(store, usage.WithClock(fixedClock(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))))
	history, err := counter.History(ctx, userID, usage.ActionWorkouts, 3)
	require.NoError(t, err)
	assert.Equal(t, []usage.MonthlyUsage{
		{MonthKey: "2024-03", Count: 3},
		{MonthKey: "2024-02", Count: 1},
		{MonthKey: "2024-01", Count: 0},
	}, history)
}

func TestCounterHistoryReportsErrors(t *testing.T) {
	t.Parallel()

	store := &MockStore{}
	store.On("Get", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(int64(0), errors.New("timeout"))

	counter := usage.NewCounter(store)
	_, err := counter.History(context.Background(), uuid.New(), usage.ActionWorkouts, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, usage.ErrReadFailed)
}

func TestCounterHistoryValidatesInput(t *testing.T) {
	t.Parallel()

	counter := usage.NewCounter(usage.NewMemoryStore())

	_, err := counter.History(context.Background(), uuid.Nil, usage.ActionWorkouts, 1)
	assert.ErrorIs(t, err, usage.ErrInvalidUserID)

	_, err = counter.History(context.Background(), uuid.New(), usage.Action("squats"), 1)
	assert.ErrorIs(t, err, usage.ErrInvalidAction)
}

func TestParseAction(t *testing.T) {
	t.Parallel()

	a, err := usage.ParseAction("ai_plans")
	require.NoError(t, err)
	assert.Equal(t, usage.ActionAIPlans, a)

	_, err = usage.ParseAction("deadlifts")
	assert.ErrorIs(t, err, usage.ErrInvalidAction)
}

func TestParseMeteredAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    usage.Action
		wantErr bool
	}{
		{"workouts", usage.ActionWorkouts, false},
		{"ai_plans", usage.ActionAIPlans, false},
		{"api", "", true},
		{"deadlifts", "", true},
	}
	for _, tt := range tests {
		got, err := usage.ParseMeteredAction(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, usage.ErrInvalidAction, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	assert.False(t, usage.ActionAPI.Metered())
}
