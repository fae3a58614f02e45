package authlockout

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/config"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/statestore"
	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/testutil"
)

// =============================================================================
// AuthLockout Service Test Suite
// =============================================================================
// Justification: lock boundaries, window expiry and the fail-closed store path
// need a controllable clock and an injectable failing store.

type AuthLockoutServiceSuite struct {
	suite.Suite
	clock   *testutil.Clock
	store   *statestore.MemoryStore
	records *testutil.AuditRecorder
	config  *config.AuthLockoutConfig
	service *Service
}

func TestAuthLockoutServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthLockoutServiceSuite))
}

func (s *AuthLockoutServiceSuite) SetupTest() {
	s.clock = testutil.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s.store = statestore.NewMemoryStore(statestore.WithClock(s.clock.Now))
	s.config = &config.AuthLockoutConfig{MaxAttempts: 3, Window: 15 * time.Minute}

	var auditor *audit.Logger
	auditor, s.records = testutil.NewAuditLogger()

	var err error
	s.service, err = New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditLogger(auditor),
		WithConfig(s.config),
	)
	s.Require().NoError(err)
}

// =============================================================================
// Constructor Tests (Invariant Enforcement)
// =============================================================================

func (s *AuthLockoutServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Error(err)
		s.Contains(err.Error(), "auth lockout store is required")
	})

	s.Run("zero attempts rejected", func() {
		_, err := New(s.store, WithConfig(&config.AuthLockoutConfig{MaxAttempts: 0, Window: time.Minute}))
		s.Error(err)
	})

	s.Run("defaults applied", func() {
		svc, err := New(s.store)
		s.Require().NoError(err)
		s.Equal(5, svc.MaxAttempts())
		s.Equal(15*time.Minute, svc.Window())
	})
}

// =============================================================================
// Lock Boundary Tests
// =============================================================================

func (s *AuthLockoutServiceSuite) TestLocksAtMaxAttempts() {
	ctx := context.Background()

	for i := 1; i < 3; i++ {
		count, err := s.service.RecordFailure(ctx, "alice", "198.51.100.4")
		s.Require().NoError(err)
		s.Equal(i, count)

		locked, err := s.service.IsLocked(ctx, "alice", "198.51.100.4")
		s.Require().NoError(err)
		s.False(locked, "pair must not lock before the limit")
	}
	s.Empty(s.records.ByAction(audit.ActionLockoutTriggered))

	count, err := s.service.RecordFailure(ctx, "alice", "198.51.100.4")
	s.Require().NoError(err)
	s.Equal(3, count)

	locked, err := s.service.IsLocked(ctx, "alice", "198.51.100.4")
	s.Require().NoError(err)
	s.True(locked)

	events := s.records.ByAction(audit.ActionLockoutTriggered)
	s.Require().Len(events, 1)
	s.Equal("alice", events[0].Subject)
}

func (s *AuthLockoutServiceSuite) TestPairsAreIndependent() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.service.RecordFailure(ctx, "alice", "198.51.100.4")
		s.Require().NoError(err)
	}

	s.Run("same user other origin", func() {
		locked, err := s.service.IsLocked(ctx, "alice", "198.51.100.5")
		s.NoError(err)
		s.False(locked)
	})

	s.Run("other user same origin", func() {
		locked, err := s.service.IsLocked(ctx, "bob", "198.51.100.4")
		s.NoError(err)
		s.False(locked)
	})

	s.Run("username case and whitespace are normalized", func() {
		locked, err := s.service.IsLocked(ctx, "  ALICE ", "198.51.100.4")
		s.NoError(err)
		s.True(locked)
	})

	s.Run("delimiters in usernames cannot address other pairs", func() {
		locked, err := s.service.IsLocked(ctx, "alice:198.51.100.4", "")
		s.NoError(err)
		s.False(locked)
	})
}

func (s *AuthLockoutServiceSuite) TestUnknownUsernamesCountedIdentically() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.service.RecordFailure(ctx, "no-such-user", "203.0.113.9")
		s.Require().NoError(err)
	}
	locked, err := s.service.IsLocked(ctx, "no-such-user", "203.0.113.9")
	s.NoError(err)
	s.True(locked)
}

// =============================================================================
// Window Tests
// =============================================================================

func (s *AuthLockoutServiceSuite) TestWindowStartsAtFirstFailure() {
	ctx := context.Background()

	_, err := s.service.RecordFailure(ctx, "carol", "192.0.2.1")
	s.Require().NoError(err)
	s.clock.Advance(10 * time.Minute)
	for i := 0; i < 2; i++ {
		_, err = s.service.RecordFailure(ctx, "carol", "192.0.2.1")
		s.Require().NoError(err)
	}

	remaining, err := s.service.RemainingLockSeconds(ctx, "carol", "192.0.2.1")
	s.Require().NoError(err)
	s.Equal(300, remaining, "later failures must not extend the window")

	s.clock.Advance(4*time.Minute + 500*time.Millisecond)
	remaining, err = s.service.RemainingLockSeconds(ctx, "carol", "192.0.2.1")
	s.Require().NoError(err)
	s.Equal(60, remaining, "partial seconds round up")

	s.clock.Advance(time.Minute)
	locked, err := s.service.IsLocked(ctx, "carol", "192.0.2.1")
	s.Require().NoError(err)
	s.False(locked, "pair unlocks when the window expires")

	remaining, err = s.service.RemainingLockSeconds(ctx, "carol", "192.0.2.1")
	s.NoError(err)
	s.Zero(remaining)
}

func (s *AuthLockoutServiceSuite) TestReset() {
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := s.service.RecordFailure(ctx, "dave", "192.0.2.2")
		s.Require().NoError(err)
	}
	s.Require().NoError(s.service.Reset(ctx, "dave", "192.0.2.2"))

	count, err := s.service.RecordFailure(ctx, "dave", "192.0.2.2")
	s.Require().NoError(err)
	s.Equal(1, count)

	s.NoError(s.service.Reset(ctx, "never-failed", "192.0.2.2"), "reset of an absent counter is a no-op")
}

func (s *AuthLockoutServiceSuite) TestConcurrentFailuresCountExactly() {
	ctx := context.Background()
	result := testutil.RunConcurrent(20, func(int) error {
		_, err := s.service.RecordFailure(ctx, "eve", "192.0.2.3")
		return err
	})
	s.Equal(int32(20), result.Successes)

	count, err := s.service.count(ctx, lockoutKey("eve", "192.0.2.3"))
	s.Require().NoError(err)
	s.Equal(20, count)
	s.Len(s.records.ByAction(audit.ActionLockoutTriggered), 1, "lockout is announced once")
}

// =============================================================================
// Store Failure Tests (Fail Safe)
// =============================================================================

type failingStore struct {
	*statestore.MemoryStore
}

func (failingStore) IncrWindow(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, statestore.ErrUnavailable
}

func (failingStore) Get(context.Context, string) (string, error) {
	return "", statestore.ErrUnavailable
}

func (failingStore) TTL(context.Context, string) (time.Duration, error) {
	return 0, statestore.ErrUnavailable
}

func (s *AuthLockoutServiceSuite) TestStoreFailureTreatedAsLocked() {
	ctx := context.Background()
	svc, err := New(failingStore{s.store}, WithConfig(s.config))
	s.Require().NoError(err)

	locked, err := svc.IsLocked(ctx, "alice", "198.51.100.4")
	s.True(locked)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	remaining, err := svc.RemainingLockSeconds(ctx, "alice", "198.51.100.4")
	s.Error(err)
	s.Equal(900, remaining)

	_, err = svc.RecordFailure(ctx, "alice", "198.51.100.4")
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}
