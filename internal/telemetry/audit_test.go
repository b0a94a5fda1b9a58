package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger/internal/mocks"
	"messenger/internal/telemetry"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit_log.messenger", "messenger", "test")

	userID := int64(42)
	publisher.On("Publish", mock.Anything, "audit_log.messenger", mock.MatchedBy(func(v any) bool {
		env, ok := v.(telemetry.AuditEnvelope)
		if !ok {
			return false
		}
		return env.SchemaVersion == 1 &&
			env.EventType == "audit_log" &&
			env.Service == "messenger" &&
			env.Environment == "test" &&
			env.RequestID == "req-1" &&
			env.UserID != nil && *env.UserID == 42 &&
			env.Payload.Level == "INFO" &&
			env.Payload.Text == "Group created" &&
			env.OccurredAt != ""
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "Group created", "req-1", &userID)
	publisher.AssertExpectations(t)
}

func TestEmitWithoutPublisherIsNoop(t *testing.T) {
	emitter := telemetry.NewAuditEmitter(nil, "audit_log.messenger", "messenger", "test")
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "noop", "req-2", nil)
	})
}

func TestEmitSwallowsPublishError(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit_log.messenger", "messenger", "test")

	publisher.On("Publish", mock.Anything, "audit_log.messenger", mock.Anything).
		Return(context.DeadlineExceeded).Once()

	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "ERROR", "boom", "req-3", nil)
	})
	publisher.AssertExpectations(t)
}
