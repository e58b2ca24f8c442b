package usecase

import (
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/service/decision"
	"github.com/secmon-lab/mnemosyne/pkg/service/extract"
	"github.com/secmon-lab/mnemosyne/pkg/service/search"
	"github.com/secmon-lab/mnemosyne/pkg/service/think"
)

type UseCases struct {
	repo      interfaces.Repository
	extractor extract.Service
	decision  *decision.Engine
	search    *search.Engine
	think     *think.Manager
	thinkOpts []think.Option
}

type Option func(*UseCases)

// WithDecisionOptions forwards tuning options to the decision engine.
func WithDecisionOptions(opts ...decision.Option) Option {
	return func(uc *UseCases) {
		uc.decision = decision.New(uc.repo.Graph(), opts...)
	}
}

// WithSearchOptions forwards tuning options to the search engine.
func WithSearchOptions(opts ...search.Option) Option {
	return func(uc *UseCases) {
		uc.search = search.New(uc.repo, opts...)
	}
}

// WithThinkOptions forwards session defaults to the think manager.
func WithThinkOptions(opts ...think.Option) Option {
	return func(uc *UseCases) {
		uc.thinkOpts = opts
	}
}

func New(repo interfaces.Repository, extractor extract.Service, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:      repo,
		extractor: extractor,
	}
	uc.decision = decision.New(repo.Graph())
	uc.search = search.New(repo)

	for _, opt := range opts {
		opt(uc)
	}

	uc.think = think.New(uc.decision, uc.search, extractor, uc.thinkOpts...)

	return uc
}

// Think exposes the session manager for the sweep worker.
func (uc *UseCases) Think() *think.Manager {
	return uc.think
}
