package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

type recordingEmitter struct {
	events []Event
	err    error
}

func (m *recordingEmitter) Emit(_ context.Context, event Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

type LoggerSuite struct {
	suite.Suite
	buf     bytes.Buffer
	emitter *recordingEmitter
	logger  *Logger
	ctx     context.Context
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerSuite))
}

func (s *LoggerSuite) SetupTest() {
	s.buf.Reset()
	s.emitter = &recordingEmitter{}
	s.logger = NewLogger(slog.New(slog.NewJSONHandler(&s.buf, nil)), s.emitter)
	s.logger.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	ctx := requestcontext.WithRequestID(context.Background(), "req-12345")
	s.ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.77", "curl/8.0")
}

func (s *LoggerSuite) TestLogEnrichesFromContext() {
	s.logger.Log(s.ctx, ActionLoginFailed, "username", "alice", "reason", "bad_password")

	s.Require().Len(s.emitter.events, 1)
	e := s.emitter.events[0]
	s.Equal(ActionLoginFailed, e.Action)
	s.Equal("req-12345", e.RequestID)
	s.Equal("203.0.113.0", e.ClientIP)
	s.Equal("alice", e.Subject)
	s.Equal("bad_password", e.Reason)
	s.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), e.Timestamp)
}

func (s *LoggerSuite) TestLogWritesAuditLine() {
	s.logger.Log(s.ctx, ActionTokenReuseDetected, "principal_id", domain.PrincipalID("u-1"), "family_id", "fam-1")

	var line map[string]any
	s.Require().NoError(json.Unmarshal(s.buf.Bytes(), &line))
	s.Equal("audit", line["log_type"])
	s.Equal("token_reuse_detected", line["event"])
	s.Equal("u-1", line["principal_id"])
	s.NotContains(s.buf.String(), "203.0.113.77", "raw client addresses never reach logs")

	s.Equal("u-1", s.emitter.events[0].PrincipalID)
	s.Equal("fam-1", s.emitter.events[0].FamilyID)
}

func (s *LoggerSuite) TestEmitFailureIsLogged() {
	s.emitter.err = errors.New("sink down")
	s.logger.Log(s.ctx, ActionLoginSucceeded, "principal_id", "u-1")
	s.Contains(s.buf.String(), "failed to emit audit event")
}

func (s *LoggerSuite) TestNilLoggerIsNoop() {
	var l *Logger
	s.NotPanics(func() { l.Log(s.ctx, ActionLoginSucceeded) })
}

func (s *LoggerSuite) TestEventKey() {
	s.Equal("u-1", Event{PrincipalID: "u-1", Subject: "alice"}.Key())
	s.Equal("alice", Event{Subject: "alice"}.Key())
}
