package sync

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSharded_SameKeySerializes(t *testing.T) {
	s := NewSharded(func() map[string]int { return map[string]int{} })

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.With("counter", func(m *map[string]int) {
				(*m)["counter"]++
			})
		}()
	}
	wg.Wait()

	var got int
	s.With("counter", func(m *map[string]int) { got = (*m)["counter"] })
	assert.Equal(t, 100, got)
}

func TestSharded_EachVisitsAllShards(t *testing.T) {
	s := NewSharded(func() map[string]int { return map[string]int{} })
	for i := range 500 {
		key := "k" + strconv.Itoa(i)
		s.With(key, func(m *map[string]int) { (*m)[key] = i })
	}

	total := 0
	visited := 0
	s.Each(func(m *map[string]int) {
		visited++
		total += len(*m)
	})
	assert.Equal(t, s.Shards(), visited)
	assert.Equal(t, 500, total)
}
