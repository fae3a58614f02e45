package producer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(DefaultConfig(" "), nil)
	require.Error(t, err)
}

func TestClosedProducerRejectsWrites(t *testing.T) {
	p, err := New(DefaultConfig("127.0.0.1:1"), nil)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "second close is a no-op")

	err = p.Produce(context.Background(), &Message{Topic: "t"})
	assert.True(t, errors.Is(err, ErrClosed))
	assert.True(t, errors.Is(p.ProduceAsync(&Message{Topic: "t"}), ErrClosed))
	assert.True(t, errors.Is(p.Healthy(context.Background()), ErrClosed))
}

func TestToRecordCopiesHeaders(t *testing.T) {
	r := toRecord(&Message{Topic: "audit", Key: []byte("k"), Value: []byte("v"), Headers: map[string]string{"a": "1"}})
	assert.Equal(t, "audit", r.Topic)
	require.Len(t, r.Headers, 1)
	assert.Equal(t, "a", r.Headers[0].Key)
	assert.Equal(t, "1", string(r.Headers[0].Value))
}
