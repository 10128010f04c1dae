package notify

import (
	"context"

	"github.com/stretchr/testify/mock"

	"clubhub/internal/models"
)

// MockPushSender is a testify mock of PushSender.
type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) Send(ctx context.Context, sub models.PushSubscription, payload Payload) error {
	args := m.Called(ctx, sub, payload)
	return args.Error(0)
}

// MockMailer is a testify mock of Mailer.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msgs ...Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}
