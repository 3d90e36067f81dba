package service

import (
	"context"
	"io"

	"lms-assessment/internal/domain"

	"github.com/stretchr/testify/mock"
)

// --- MockEnrolmentStore ---
type MockEnrolmentStore struct {
	mock.Mock
}

func (m *MockEnrolmentStore) ListEnrolments(ctx context.Context, learnerID int64) ([]domain.Enrolment, error) {
	args := m.Called(ctx, learnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Enrolment), args.Error(1)
}

// --- MockNotificationStore ---
type MockNotificationStore struct {
	mock.Mock
}

func (m *MockNotificationStore) CreateReturnedNotice(ctx context.Context, learnerID int64, attemptID string) error {
	args := m.Called(ctx, learnerID, attemptID)
	return args.Error(0)
}

func (m *MockNotificationStore) MarkReturnedRead(ctx context.Context, learnerID int64, attemptID string) (int64, error) {
	args := m.Called(ctx, learnerID, attemptID)
	return args.Get(0).(int64), args.Error(1)
}

// --- MockFileStorage ---
type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) Store(ctx context.Context, path string, r io.Reader) (string, error) {
	args := m.Called(ctx, path, r)
	return args.String(0), args.Error(1)
}

func (m *MockFileStorage) Delete(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *MockFileStorage) Exists(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	return args.Bool(0), args.Error(1)
}

// --- MockEventSink ---
type MockEventSink struct {
	mock.Mock
}

func (m *MockEventSink) Publish(ctx context.Context, change domain.AttemptChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

var _ domain.EnrolmentStore = (*MockEnrolmentStore)(nil)
var _ domain.NotificationStore = (*MockNotificationStore)(nil)
var _ domain.FileStorage = (*MockFileStorage)(nil)
var _ domain.EventSink = (*MockEventSink)(nil)
