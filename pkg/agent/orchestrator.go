package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// State tracks an answer cycle through the pipeline.
type State string

const (
	StateStarted     State = "started"
	StateRetrieved   State = "retrieved"
	StateClassified  State = "classified"
	StateSearched    State = "searched"
	StateSkipped     State = "skipped"
	StateSynthesized State = "synthesized"
	StateGated       State = "gated"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Retriever is the knowledge-base interface. A failure maps to
// ErrRetrievalUnavailable and degrades to empty evidence.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]RetrievedPassage, error)
}

// Searcher is the web-search interface. Multiple backends hide behind one
// implementation; a failure maps to ErrSearchUnavailable and degrades to
// empty evidence.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Cycle records one complete answer cycle for auditing. The EvidenceBundle
// it carries is cycle-local and never reused.
type Cycle struct {
	ID         uuid.UUID      `json:"id"`
	Query      string         `json:"query"`
	State      State          `json:"state"`
	Decision   Decision       `json:"decision"`
	Evidence   EvidenceBundle `json:"evidence"`
	Answer     Answer         `json:"answer"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// OrchestratorConfig carries wiring and per-call timeouts. Each external
// call gets an independent timeout so one slow collaborator cannot stall the
// whole cycle.
type OrchestratorConfig struct {
	RetrievalTopK    int
	RetrievalTimeout time.Duration
	SearchTimeout    time.Duration
	ModelTimeout     time.Duration
	Logger           *slog.Logger
}

// Orchestrator sequences retrieval, classification, optional web search,
// synthesis, and the safety gate for one query. Cycles are stateless across
// each other: a single Orchestrator serves concurrent queries with no
// coordination.
type Orchestrator struct {
	retriever   Retriever
	searcher    Searcher
	classifier  *Classifier
	synthesizer *Synthesizer
	gate        *Gate
	cfg         OrchestratorConfig
}

// NewOrchestrator wires the pipeline. The searcher may be nil when no web
// search backend is configured; classification still runs but search
// degrades to empty results.
func NewOrchestrator(retriever Retriever, searcher Searcher, classifier *Classifier, synthesizer *Synthesizer, cfg OrchestratorConfig) *Orchestrator {
	if cfg.RetrievalTopK <= 0 {
		cfg.RetrievalTopK = 5
	}
	if cfg.RetrievalTimeout <= 0 {
		cfg.RetrievalTimeout = 10 * time.Second
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 15 * time.Second
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		retriever:   retriever,
		searcher:    searcher,
		classifier:  classifier,
		synthesizer: synthesizer,
		gate:        NewGate(),
		cfg:         cfg,
	}
}

// Answer runs one cycle and returns the final Answer. Every failure path
// terminates in a valid, disclaimer-bearing Answer; the only returned error
// is ctx cancellation.
func (o *Orchestrator) Answer(ctx context.Context, query string) (Answer, error) {
	cycle, err := o.Run(ctx, query)
	if err != nil {
		return Answer{}, err
	}
	return cycle.Answer, nil
}

// Run executes one answer cycle and returns its full audit record.
func (o *Orchestrator) Run(ctx context.Context, query string) (*Cycle, error) {
	cycle := &Cycle{
		ID:        uuid.New(),
		Query:     query,
		State:     StateStarted,
		StartedAt: time.Now(),
	}
	log := o.cfg.Logger.With("cycle_id", cycle.ID, "query", query)

	// Retrieval. Unavailability is absorbed as an empty passage list.
	passages := o.retrieve(ctx, log, query)
	if err := ctx.Err(); err != nil {
		return cycle, err
	}
	cycle.Evidence.Passages = passages
	cycle.State = StateRetrieved
	log.Info("retrieval complete", "passages", len(passages))

	// Classification: pure decision, no external call.
	cycle.Decision = o.classifier.Classify(query, passages)
	cycle.State = StateClassified
	log.Info("classified", "needs_search", cycle.Decision.NeedsSearch, "search_query", cycle.Decision.SearchQuery)

	// Optional web search. Unavailability is absorbed as empty results.
	if cycle.Decision.NeedsSearch {
		results := o.search(ctx, log, cycle.Decision.SearchQuery)
		if err := ctx.Err(); err != nil {
			return cycle, err
		}
		cycle.Evidence.Results = results
		cycle.State = StateSearched
		log.Info("search complete", "results", len(results))
	} else {
		cycle.State = StateSkipped
	}

	// Synthesis. The synthesizer degrades internally; a returned error only
	// tells us which safe answer we got.
	modelCtx, cancel := context.WithTimeout(ctx, o.cfg.ModelTimeout)
	answer, synthErr := o.synthesizer.Synthesize(modelCtx, query, cycle.Evidence)
	cancel()
	if err := ctx.Err(); err != nil {
		return cycle, err
	}
	cycle.State = StateSynthesized
	if synthErr != nil {
		log.Warn("synthesis degraded", "error", synthErr)
	}

	// Mandatory final stage.
	cycle.Answer = o.gate.Apply(answer, cycle.Evidence)
	cycle.State = StateGated

	if synthErr != nil && cycle.Evidence.IsEmpty() {
		// No evidence and no model: nothing in this cycle is grounded. The
		// caller still receives the safe fallback answer. Unreachable while
		// the synthesizer short-circuits empty bundles without a model call;
		// kept so a synthesizer that does call out on empty evidence still
		// terminates correctly.
		cycle.State = StateFailed
		log.Error("cycle failed, returning fallback answer", "error", synthErr)
	} else {
		cycle.State = StateDone
	}

	cycle.FinishedAt = time.Now()
	log.Info("cycle finished", "state", cycle.State, "cited_sources", len(cycle.Answer.CitedSources), "duration", cycle.FinishedAt.Sub(cycle.StartedAt))
	return cycle, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, log *slog.Logger, query string) []RetrievedPassage {
	rctx, cancel := context.WithTimeout(ctx, o.cfg.RetrievalTimeout)
	defer cancel()

	passages, err := o.retriever.Retrieve(rctx, query, o.cfg.RetrievalTopK)
	if err != nil {
		log.Warn("retrieval unavailable, continuing with empty passages", "error", err)
		return nil
	}
	return passages
}

func (o *Orchestrator) search(ctx context.Context, log *slog.Logger, query string) []SearchResult {
	if o.searcher == nil {
		log.Warn("no search backend configured, continuing with empty results")
		return nil
	}

	sctx, cancel := context.WithTimeout(ctx, o.cfg.SearchTimeout)
	defer cancel()

	results, err := o.searcher.Search(sctx, query)
	if err != nil {
		log.Warn("web search unavailable, continuing with empty results", "error", err)
		return nil
	}
	return results
}
