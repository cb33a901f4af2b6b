// Package testutil provides centralized test mocks, fixtures, and helpers.
// Test files should import mocks from here instead of defining their own.
package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lumonmind/lumond/internal/audit"
	"github.com/lumonmind/lumond/internal/provider"
	"github.com/lumonmind/lumond/internal/session"
)

// MockAdapter implements provider.Adapter for tests.
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockAdapter) Configured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockAdapter) Generate(ctx context.Context, history []session.Message, params provider.Params) (string, error) {
	args := m.Called(ctx, history, params)
	return args.String(0), args.Error(1)
}

// StaticAdapter is a non-asserting stand-in for fallback-chain tests: it
// returns a fixed reply or error and remembers the last history it saw.
type StaticAdapter struct {
	AdapterName string
	HasKey      bool
	Reply       string
	Err         error

	Calls       int
	LastHistory []session.Message
	LastParams  provider.Params
}

func (a *StaticAdapter) Name() string { return a.AdapterName }

func (a *StaticAdapter) Configured() bool { return a.HasKey }

func (a *StaticAdapter) Generate(_ context.Context, history []session.Message, params provider.Params) (string, error) {
	a.Calls++
	a.LastHistory = history
	a.LastParams = params
	if a.Err != nil {
		return "", a.Err
	}
	return a.Reply, nil
}

// MockAuditStore implements audit.Store for tests.
type MockAuditStore struct {
	mock.Mock
}

func (m *MockAuditStore) LogTurn(turn audit.Turn) error {
	args := m.Called(turn)
	return args.Error(0)
}

func (m *MockAuditStore) LogAppointment(rec audit.AppointmentRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

func (m *MockAuditStore) LogFeedback(rec audit.FeedbackRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

func (m *MockAuditStore) RecentTurns(sessionID string, limit int) ([]audit.Turn, error) {
	args := m.Called(sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.Turn), args.Error(1)
}

func (m *MockAuditStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// NoopAuditStore accepts and discards every write.
type NoopAuditStore struct{}

func (NoopAuditStore) LogTurn(audit.Turn) error                     { return nil }
func (NoopAuditStore) LogAppointment(audit.AppointmentRecord) error { return nil }
func (NoopAuditStore) LogFeedback(audit.FeedbackRecord) error       { return nil }
func (NoopAuditStore) RecentTurns(string, int) ([]audit.Turn, error) {
	return nil, nil
}
func (NoopAuditStore) Close() error { return nil }
