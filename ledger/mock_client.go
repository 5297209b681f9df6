package ledger

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mockable Client for tests.
type MockClient struct {
	mock.Mock

	done      chan struct{}
	closeOnce sync.Once
}

// interface assertion
var _ Client = (*MockClient)(nil)

// NewMockClient creates a MockClient whose session is live until Close or
// DropSession.
func NewMockClient() *MockClient {
	return &MockClient{done: make(chan struct{})}
}

// AccountInfo is a mockable method.
func (m *MockClient) AccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AccountInfo), args.Error(1)
}

// AccountTransactions is a mockable method.
func (m *MockClient) AccountTransactions(ctx context.Context, address string, limit int) ([]TxRecord, error) {
	args := m.Called(ctx, address, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]TxRecord), args.Error(1)
}

// ServerInfo is a mockable method.
func (m *MockClient) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ServerInfo), args.Error(1)
}

// Submit is a mockable method.
func (m *MockClient) Submit(ctx context.Context, blob string, hash string) (*TxReceipt, error) {
	args := m.Called(ctx, blob, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TxReceipt), args.Error(1)
}

// Close drops the mock session. Not expectation-driven so callers need not
// stub it.
func (m *MockClient) Close() error {
	m.DropSession()
	return nil
}

// Done implements Client.
func (m *MockClient) Done() <-chan struct{} {
	return m.done
}

// DropSession simulates an unsolicited transport drop.
func (m *MockClient) DropSession() {
	m.closeOnce.Do(func() { close(m.done) })
}
