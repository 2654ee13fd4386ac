package app

import (
	"context"
	"fmt"

	"github.com/alvera-ai/interoperability-template-generator/config"
	"github.com/alvera-ai/interoperability-template-generator/internal/conversion"
	"github.com/alvera-ai/interoperability-template-generator/internal/requester"
	"github.com/alvera-ai/interoperability-template-generator/internal/storage"
)

// Open builds a session from configuration: it opens and initialises the
// configured store backend and wires the executor and conversion engine.
// The returned close function releases the store.
func Open(ctx context.Context, cfg *config.Config) (*Session, func() error, error) {
	backend, err := storage.OpenBackend(cfg)
	if err != nil {
		return nil, nil, err
	}
	store := storage.NewStore(backend)
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("initialising %s store: %w", backend.Name(), err)
	}

	var gen conversion.Generator
	if cfg.AnthropicAPIKey != "" {
		gen = conversion.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicBaseURL)
	} else {
		customLog.Warnln("Session: ANTHROPIC_API_KEY not set, template generation disabled")
	}
	engine := conversion.NewEngine(gen, conversion.NewSandbox(cfg.SandboxMaxSteps))

	session := NewSession(store, requester.NewExecutor(cfg.HTTPTimeout), engine,
		WithStrictSpecValidation(cfg.StrictSpecValidation))
	return session, store.Close, nil
}

// ActivateLatest activates the named stored spec, or the newest one when
// name is empty. It returns ErrNoSpec when nothing is stored.
func (s *Session) ActivateLatest(ctx context.Context, name string) (SpecSummary, error) {
	if name != "" {
		return s.ActivateStoredSpec(ctx, name)
	}
	specs, err := s.store.ListSpecs(ctx)
	if err != nil {
		return SpecSummary{}, err
	}
	if len(specs) == 0 {
		return SpecSummary{}, ErrNoSpec
	}
	return s.ActivateStoredSpec(ctx, specs[0].SpecName)
}
