package handlers

import (
	"log/slog"

	"ABWatch/internal/orchestrator"
	"ABWatch/internal/storage"
)

type Handlers struct {
	orchestrator *orchestrator.Orchestrator
	failures     storage.FailureStore
	logger       *slog.Logger
}

func New(orch *orchestrator.Orchestrator, failures storage.FailureStore, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		orchestrator: orch,
		failures:     failures,
		logger:       logger,
	}
}
