package statestore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"
)

// contractSuite exercises the Store contract. Backends embed it and set
// store in SetupTest; the tests only rely on windows far longer than the
// test itself, so they hold for real clocks.
type contractSuite struct {
	suite.Suite
	store Store
	ctx   context.Context
}

func (s *contractSuite) TestIncrWindowStartsWindowOnFirstHit() {
	count, ttl, err := s.store.IncrWindow(s.ctx, "rl:a", time.Minute)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
	s.InDelta(time.Minute.Seconds(), ttl.Seconds(), 1)

	count, ttl, err = s.store.IncrWindow(s.ctx, "rl:a", time.Hour)
	s.Require().NoError(err)
	s.Equal(int64(2), count)
	s.LessOrEqual(ttl, time.Minute, "later hits never extend the window")
}

func (s *contractSuite) TestIncrWindowIsAtomicAcrossCallers() {
	const callers = 50
	var wg sync.WaitGroup
	seen := make(chan int64, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, _, err := s.store.IncrWindow(s.ctx, "rl:race", time.Minute)
			s.NoError(err)
			seen <- n
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for n := range seen {
		s.False(unique[n], "count %d observed twice", n)
		unique[n] = true
	}
	s.Len(unique, callers)
}

func (s *contractSuite) TestGetSetDel() {
	_, err := s.store.Get(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)

	s.Require().NoError(s.store.SetEX(s.ctx, "k", "v", time.Minute))
	v, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal("v", v)

	ok, err := s.store.Exists(s.ctx, "k")
	s.Require().NoError(err)
	s.True(ok)

	s.Require().NoError(s.store.Del(s.ctx, "k", "never-existed"))
	ok, err = s.store.Exists(s.ctx, "k")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *contractSuite) TestSetEXRejectsNonPositiveTTL() {
	s.Error(s.store.SetEX(s.ctx, "k", "v", 0))
}

func (s *contractSuite) TestTTL() {
	_, err := s.store.TTL(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)

	s.Require().NoError(s.store.SetEX(s.ctx, "k", "v", 90*time.Second))
	ttl, err := s.store.TTL(s.ctx, "k")
	s.Require().NoError(err)
	s.InDelta(90, ttl.Seconds(), 1)
}

func (s *contractSuite) TestCompareAndDelete() {
	s.Require().NoError(s.store.SetEX(s.ctx, "session:1", "record-a", time.Minute))

	deleted, err := s.store.CompareAndDelete(s.ctx, "session:1", "record-b")
	s.Require().NoError(err)
	s.False(deleted)

	deleted, err = s.store.CompareAndDelete(s.ctx, "session:1", "record-a")
	s.Require().NoError(err)
	s.True(deleted)

	deleted, err = s.store.CompareAndDelete(s.ctx, "session:1", "record-a")
	s.Require().NoError(err)
	s.False(deleted, "second delete loses")
}

func (s *contractSuite) TestCompareAndDeleteHasOneWinner() {
	s.Require().NoError(s.store.SetEX(s.ctx, "session:race", "record", time.Minute))

	const callers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.store.CompareAndDelete(s.ctx, "session:race", "record")
			s.NoError(err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, wins)
}

func (s *contractSuite) TestSets() {
	members, err := s.store.SMembers(s.ctx, "family:x")
	s.Require().NoError(err)
	s.Empty(members)

	s.Require().NoError(s.store.SAddEX(s.ctx, "family:x", time.Minute, "a", "b"))
	s.Require().NoError(s.store.SAddEX(s.ctx, "family:x", time.Hour, "b", "c"))

	members, err = s.store.SMembers(s.ctx, "family:x")
	s.Require().NoError(err)
	s.ElementsMatch([]string{"a", "b", "c"}, members)

	ttl, err := s.store.TTL(s.ctx, "family:x")
	s.Require().NoError(err)
	s.Greater(ttl, 59*time.Minute, "expiry extends to the longest ttl")

	s.Require().NoError(s.store.SAddEX(s.ctx, "family:x", time.Second, "d"))
	ttl, err = s.store.TTL(s.ctx, "family:x")
	s.Require().NoError(err)
	s.Greater(ttl, 59*time.Minute, "expiry never shrinks")
}

func (s *contractSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
