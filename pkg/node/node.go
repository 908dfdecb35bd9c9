package node

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/config"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

// DefaultRateBurst is used when a rate limit is set without an explicit burst
const DefaultRateBurst = 20

// Config contains node configuration
type Config struct {
	Port int
	// MaxUploadBytes caps a signed upload body, config.DefaultMaxUploadBytes when zero
	MaxUploadBytes int64
	// RateLimit is the sustained number of requests per second. Zero disables limiting.
	RateLimit float64
	RateBurst int
	Logger    *zap.Logger
}

// Node is a vault server: the ledger over the blob store plus the HTTP surface
type Node struct {
	Port int

	store  persistence.IBlobPersistence
	ledger *ledger.Ledger
	server *Server
	logger *zap.Logger

	maxUploadBytes int64
}

// NewNode loads the ledger from store and prepares the HTTP server. The node does
// not own store; the caller closes it after Stop.
func NewNode(cfg Config, store persistence.IBlobPersistence) (*Node, error) {
	nodeLogger := cfg.Logger
	if nodeLogger == nil {
		nodeLogger, _ = logger.NewLogger(&logger.LoggerConfig{Debug: false})
	}
	if store == nil {
		return nil, fmt.Errorf("persistence layer is required")
	}

	l, err := ledger.NewLedger(store, nodeLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = config.DefaultMaxUploadBytes
	}

	n := &Node{
		Port:           cfg.Port,
		store:          store,
		ledger:         l,
		logger:         nodeLogger,
		maxUploadBytes: maxUpload,
	}
	n.server = NewServer(n, cfg.Port, cfg.RateLimit, cfg.RateBurst)

	root, ok, err := l.TopHash()
	if err != nil {
		return nil, fmt.Errorf("failed to compute top hash: %w", err)
	}
	nodeLogger.Sugar().Infow("Vault node initialized",
		"port", cfg.Port,
		"leaf_count", l.Len(),
		"top_hash", rootHex(root, ok),
		"max_upload_bytes", maxUpload,
	)
	return n, nil
}

// Start starts the node's HTTP server
func (n *Node) Start() error {
	return n.server.Start()
}

// Stop drains in-flight requests and stops the HTTP server
func (n *Node) Stop(ctx context.Context) error {
	return n.server.Stop(ctx)
}

// Handler returns the node's HTTP handler with middleware applied
func (n *Node) Handler() http.Handler {
	return n.server.GetHandler()
}

// Ledger exposes the node's ledger
func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

func rootHex(root types.Digest, ok bool) string {
	if !ok {
		return ""
	}
	return root.Hex()
}
