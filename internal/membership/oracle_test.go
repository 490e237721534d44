package membership_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"project-chat/internal/cache"
	"project-chat/internal/membership"
	"project-chat/internal/mocks"
)

type failureCounter struct{ n atomic.Int32 }

func (f *failureCounter) MembershipCheckFailed() { f.n.Add(1) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsMemberCachesStoreAnswer(t *testing.T) {
	store := new(mocks.MembershipStoreMock)
	c := cache.New()
	oracle := membership.NewOracle(store, c, time.Minute, discardLogger(), nil)

	store.On("IsMember", mock.Anything, "u1", "p1").Return(true, nil).Once()
	store.On("IsMember", mock.Anything, "u2", "p1").Return(false, nil).Once()

	assert.True(t, oracle.IsMember(context.Background(), "u1", "p1"))
	assert.True(t, oracle.IsMember(context.Background(), "u1", "p1"))
	assert.False(t, oracle.IsMember(context.Background(), "u2", "p1"))
	assert.False(t, oracle.IsMember(context.Background(), "u2", "p1"))

	member, ok := cache.Get[bool](c, "membership:u1:p1")
	require.True(t, ok)
	assert.True(t, member)
	store.AssertExpectations(t)
}

func TestIsMemberFailsClosedOnStoreError(t *testing.T) {
	store := new(mocks.MembershipStoreMock)
	c := cache.New()
	failures := &failureCounter{}
	oracle := membership.NewOracle(store, c, time.Minute, discardLogger(), failures)

	store.On("IsMember", mock.Anything, "u1", "p1").Return(true, assert.AnError).Once()
	store.On("IsMember", mock.Anything, "u1", "p1").Return(true, nil).Once()

	assert.False(t, oracle.IsMember(context.Background(), "u1", "p1"))
	assert.Equal(t, int32(1), failures.n.Load())
	assert.False(t, c.Has(membership.Key("u1", "p1")))

	// the failure is not remembered
	assert.True(t, oracle.IsMember(context.Background(), "u1", "p1"))
	store.AssertExpectations(t)
}

func TestInvalidateForcesStoreLookup(t *testing.T) {
	store := new(mocks.MembershipStoreMock)
	oracle := membership.NewOracle(store, cache.New(), time.Hour, discardLogger(), nil)

	store.On("IsMember", mock.Anything, "u1", "p1").Return(false, nil).Once()
	assert.False(t, oracle.IsMember(context.Background(), "u1", "p1"))

	store.On("IsMember", mock.Anything, "u1", "p1").Return(true, nil).Once()
	oracle.Invalidate("u1", "p1")
	assert.True(t, oracle.IsMember(context.Background(), "u1", "p1"))
	store.AssertExpectations(t)
}

func TestFreshGrantVisibleAfterTTL(t *testing.T) {
	store := new(mocks.MembershipStoreMock)
	oracle := membership.NewOracle(store, cache.New(), 20*time.Millisecond, discardLogger(), nil)

	store.On("IsMember", mock.Anything, "u1", "p1").Return(false, nil).Once()
	store.On("IsMember", mock.Anything, "u1", "p1").Return(true, nil)

	assert.False(t, oracle.IsMember(context.Background(), "u1", "p1"))
	require.Eventually(t, func() bool {
		return oracle.IsMember(context.Background(), "u1", "p1")
	}, time.Second, 5*time.Millisecond)
}

func TestEmptyIdsAreDenied(t *testing.T) {
	store := new(mocks.MembershipStoreMock)
	oracle := membership.NewOracle(store, cache.New(), 0, discardLogger(), nil)

	assert.False(t, oracle.IsMember(context.Background(), "", "p1"))
	assert.False(t, oracle.IsMember(context.Background(), "u1", ""))
	store.AssertNotCalled(t, "IsMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestConcurrentMissesCollapse(t *testing.T) {
	store := new(mocks.MembershipStoreMock)
	oracle := membership.NewOracle(store, cache.New(), time.Minute, discardLogger(), nil)

	release := make(chan time.Time)
	store.On("IsMember", mock.Anything, "u1", "p1").
		WaitUntil(release).
		Return(true, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, oracle.IsMember(context.Background(), "u1", "p1"))
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	store.AssertNumberOfCalls(t, "IsMember", 1)
	assert.True(t, oracle.IsMember(context.Background(), "u1", "p1"))
}
