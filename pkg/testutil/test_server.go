package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/node"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/transport"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

// TestServer is a vault node over in-memory storage, served by httptest
type TestServer struct {
	Store  *memory.MemoryPersistence
	Node   *node.Node
	Server *httptest.Server
	URL    string
	logger *zap.Logger
}

// NewTestServer starts a vault node for the duration of the test
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	l := zap.NewNop()

	store := memory.NewMemoryPersistence()
	n, err := node.NewNode(node.Config{Logger: l}, store)
	require.NoError(t, err)

	srv := httptest.NewServer(n.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
	})

	return &TestServer{
		Store:  store,
		Node:   n,
		Server: srv,
		URL:    srv.URL,
		logger: l,
	}
}

// Client returns a transport client pointed at the server
func (s *TestServer) Client() *transport.Client {
	return transport.NewClient(s.URL, s.logger)
}

// TamperBlob rewrites the stored bytes of name directly in storage, bypassing the ledger
func (s *TestServer) TamperBlob(t *testing.T, name string, mutate func(blob []byte) []byte) {
	t.Helper()
	id := types.FileIDFromName(name)
	blob, err := s.Store.GetBlob(id)
	require.NoError(t, err)
	require.NoError(t, s.Store.PutBlob(id, mutate(blob)))
}

// RemoveBlob deletes name directly from storage, bypassing the ledger
func (s *TestServer) RemoveBlob(t *testing.T, name string) {
	t.Helper()
	id := types.FileIDFromName(name)
	_, err := s.Store.GetBlob(id)
	require.NoError(t, err)
	s.Store.DeleteBlob(id)
}
