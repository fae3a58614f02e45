package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/kafka/producer"
	pkgaudit "github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
)

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) Produce(ctx context.Context, msg *producer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func TestKafkaSinkWrite(t *testing.T) {
	p := new(mockProducer)
	sink := NewKafkaSink(p, "gateway.audit")

	event := pkgaudit.Event{
		Action:      pkgaudit.ActionTokenReuseDetected,
		PrincipalID: "u-1",
		FamilyID:    "fam-1",
		RequestID:   "req-1",
	}

	p.On("Produce", mock.Anything, mock.MatchedBy(func(msg *producer.Message) bool {
		var decoded pkgaudit.Event
		if err := json.Unmarshal(msg.Value, &decoded); err != nil {
			return false
		}
		return msg.Topic == "gateway.audit" &&
			string(msg.Key) == "u-1" &&
			msg.Headers["event_type"] == "token_reuse_detected" &&
			msg.Headers["request_id"] == "req-1" &&
			decoded.FamilyID == "fam-1"
	})).Return(nil).Once()

	require.NoError(t, sink.Write(context.Background(), event))
	p.AssertExpectations(t)
}

func TestKafkaSinkWrapsProducerError(t *testing.T) {
	p := new(mockProducer)
	cause := errors.New("broker down")
	p.On("Produce", mock.Anything, mock.Anything).Return(cause)

	err := NewKafkaSink(p, "t").Write(context.Background(), pkgaudit.Event{Action: pkgaudit.ActionLoginFailed})
	require.ErrorIs(t, err, cause)
}

func TestMemorySinkRetainsMostRecent(t *testing.T) {
	sink := NewMemorySink(2)
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, pkgaudit.Event{Action: pkgaudit.ActionLoginFailed, Subject: "a"}))
	require.NoError(t, sink.Write(ctx, pkgaudit.Event{Action: pkgaudit.ActionLoginFailed, Subject: "b"}))
	require.NoError(t, sink.Write(ctx, pkgaudit.Event{Action: pkgaudit.ActionLockoutTriggered, Subject: "b"}))

	recent := sink.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Subject)
	assert.Len(t, sink.ByAction(pkgaudit.ActionLockoutTriggered), 1)
}
