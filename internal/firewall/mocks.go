package firewall

import (
	"sync"

	"github.com/google/nftables"
	"github.com/stretchr/testify/mock"
)

// MockNFTablesConn is a mock NFTablesConn that also tracks tables in memory.
// Queued deletions take effect on Flush, like the real connection.
type MockNFTablesConn struct {
	mock.Mock
	mu      sync.Mutex
	tables  map[string]*nftables.Table
	pending []*nftables.Table
}

// NewMockNFTablesConn creates a new mock nftables connection.
func NewMockNFTablesConn() *MockNFTablesConn {
	return &MockNFTablesConn{tables: make(map[string]*nftables.Table)}
}

// AddTable records a table as present, as a successful "nft -f" would.
func (m *MockNFTablesConn) AddTable(t *nftables.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[t.Name] = t
}

func (m *MockNFTablesConn) ListTables() ([]*nftables.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called()
	if args.Get(0) != nil {
		return args.Get(0).([]*nftables.Table), args.Error(1)
	}
	if err := args.Error(1); err != nil {
		return nil, err
	}
	tables := make([]*nftables.Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	return tables, nil
}

func (m *MockNFTablesConn) DelTable(t *nftables.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(t)
	m.pending = append(m.pending, t)
}

func (m *MockNFTablesConn) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called()
	if err := args.Error(0); err != nil {
		m.pending = nil
		return err
	}
	for _, t := range m.pending {
		delete(m.tables, t.Name)
	}
	m.pending = nil
	return nil
}
