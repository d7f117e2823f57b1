// Package node assembles the ledger from its parts: configuration, logging,
// storage, the state facade and the HTTP interface.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vaultis-labs/go-vaultis/api"
	"github.com/vaultis-labs/go-vaultis/config"
	"github.com/vaultis-labs/go-vaultis/core/state"
	"github.com/vaultis-labs/go-vaultis/storage"
)

// Node is one running ledger instance.
type Node struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *storage.BadgerStorage
	ledger *state.LedgerState
	server *api.Server

	running bool
	stopCh  chan struct{}
	mu      sync.Mutex
}

// gcInterval controls how often value-log garbage collection runs.
const gcInterval = 30 * time.Minute

// NewLogger builds the process logger at the configured level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %v", level, err)
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	return zapCfg.Build()
}

// New wires a node together and reloads committed state from the data
// directory. The returned node is ready to Start.
func New(cfg *config.Config, logger *zap.Logger) (*Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := storage.NewBadgerStorage(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage at %s: %v", cfg.DataDir, err)
	}

	ledger, err := state.NewLedgerState(storage.NewLedgerStore(db), state.Capabilities{
		ShareAccounting:     cfg.Roles.ShareAccounting,
		StakingOrchestrator: cfg.Roles.StakingOrchestrator,
		Admin:               cfg.Roles.Admin,
		Treasury:            cfg.Roles.Treasury,
	}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := ledger.SeedDelay(cfg.Withdrawal.DefaultDelay); err != nil {
		db.Close()
		return nil, fmt.Errorf("configured withdrawal delay rejected: %v", err)
	}
	if err := ledger.Load(); err != nil {
		db.Close()
		return nil, err
	}

	server := api.NewServer(ledger, cfg.API.ListenAddr, cfg.API.EnableCORS, logger)

	return &Node{
		cfg:    cfg,
		logger: logger,
		db:     db,
		ledger: ledger,
		server: server,
	}, nil
}

// Ledger exposes the state facade.
func (n *Node) Ledger() *state.LedgerState {
	return n.ledger
}

// Start serves the HTTP interface until Stop is called.
func (n *Node) Start() error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return fmt.Errorf("node already running")
	}
	n.running = true
	n.stopCh = make(chan struct{})
	n.mu.Unlock()

	n.logger.Info("node starting",
		zap.String("node_id", n.cfg.NodeID),
		zap.String("data_dir", n.cfg.DataDir),
		zap.String("listen_addr", n.cfg.API.ListenAddr))

	go n.maintenanceLoop(n.stopCh)

	return n.server.Start()
}

// maintenanceLoop periodically compacts the value log and reports the
// on-disk footprint. Badger declines the GC pass when there is nothing to
// rewrite, which is routine.
func (n *Node) maintenanceLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := n.db.RunGC(0.5); err != nil {
				n.logger.Debug("value log gc skipped", zap.Error(err))
			}
			if size, err := n.db.Size(); err == nil {
				n.logger.Debug("storage footprint", zap.Int64("bytes", size))
			}
		}
	}
}

// Stop shuts the HTTP server down and closes storage.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return nil
	}
	n.running = false
	if n.stopCh != nil {
		close(n.stopCh)
		n.stopCh = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := n.server.Stop(ctx); err != nil {
		n.logger.Error("api shutdown failed", zap.Error(err))
	}
	if err := n.db.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %v", err)
	}

	n.logger.Info("node stopped", zap.String("node_id", n.cfg.NodeID))
	return nil
}
