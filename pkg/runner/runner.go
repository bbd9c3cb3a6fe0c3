// Package runner executes test cases against providers and evaluates the
// responses.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cgast/promptreg/pkg/events"
	"github.com/cgast/promptreg/pkg/provider"
	"github.com/cgast/promptreg/pkg/suite"
	"github.com/cgast/promptreg/pkg/verify"
)

// ProviderSource builds providers by name. *provider.Factory implements it.
type ProviderSource interface {
	New(name string) (provider.Provider, error)
}

// Recorder observes finished runs. This avoids a direct dependency on the
// metrics package.
type Recorder interface {
	ObserveRun(r suite.TestResult)
}

// Sink receives each result of a batch, typically store.Gateway.AppendResult.
type Sink func(suite.TestResult) error

// Runner executes test cases. Providers are resolved once per name and
// reused for the runner's lifetime. A Runner is safe for concurrent use.
type Runner struct {
	source    ProviderSource
	evaluator *verify.Evaluator
	bus       events.EventBus
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	providers map[string]provider.Provider
}

// Option configures a Runner.
type Option func(*Runner)

func WithEvents(bus events.EventBus) Option { return func(r *Runner) { r.bus = bus } }
func WithRecorder(rec Recorder) Option      { return func(r *Runner) { r.recorder = rec } }
func WithLogger(l *slog.Logger) Option      { return func(r *Runner) { r.logger = l } }
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// New creates a runner that resolves providers through source.
func New(source ProviderSource, opts ...Option) *Runner {
	r := &Runner{
		source:    source,
		evaluator: verify.NewEvaluator(),
		logger:    slog.Default(),
		now:       time.Now,
		providers: make(map[string]provider.Provider),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// provider returns the cached provider for name, building it on first use.
// Failed constructions are not cached.
func (r *Runner) provider(name string) (provider.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	p, err := r.source.New(name)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("provider ready", "provider", name)
	r.providers[name] = p
	return p, nil
}

// Run executes one test case. It never returns an error: provider
// resolution or generation failures produce a failed result carrying the
// error text, an empty response and no diagnostics.
func (r *Runner) Run(ctx context.Context, tc suite.TestCase) suite.TestResult {
	info := events.RunInfo{TestID: tc.ID, TestName: tc.Name, Provider: tc.Provider, Model: tc.Model}
	r.publish(events.EventRunStart, info, 0)

	start := r.now()
	response, err := r.generate(ctx, tc)
	end := r.now()
	elapsed := end.Sub(start)

	result := suite.TestResult{
		TestID:            tc.ID,
		TestName:          tc.Name,
		Prompt:            tc.Prompt,
		Provider:          tc.Provider,
		Model:             tc.Model,
		ExecutionTime:     elapsed.Seconds(),
		Timestamp:         end,
		EvaluationResults: []verify.Diagnostic{},
	}

	if err != nil {
		result.Passed = verify.Fail
		result.Error = err.Error()
		info.Status, info.Error = result.Status(), result.Error
		r.logger.Warn("test run failed", "test", tc.ID, "provider", tc.Provider, "error", err)
		r.publish(events.EventRunError, info, elapsed)
	} else {
		result.Response = response
		result.Passed, result.EvaluationResults = r.evaluator.Evaluate(response, tc.Expectations)
		info.Status = result.Status()
		r.logger.Info("test run finished", "test", tc.ID, "status", info.Status,
			"seconds", fmt.Sprintf("%.2f", result.ExecutionTime))
	}

	r.publish(events.EventRunEnd, result, elapsed)
	if r.recorder != nil {
		r.recorder.ObserveRun(result)
	}
	return result
}

func (r *Runner) generate(ctx context.Context, tc suite.TestCase) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("provider %s panicked: %v", tc.Provider, rec)
		}
	}()

	p, err := r.provider(tc.Provider)
	if err != nil {
		return "", err
	}
	return p.Generate(ctx, provider.Request{
		Prompt:       tc.Prompt,
		Model:        tc.Model,
		SystemPrompt: tc.SystemPrompt,
		Temperature:  tc.Temperature,
		MaxTokens:    tc.MaxTokens,
	})
}

// RunBatch runs every case sequentially and returns one result per case,
// in input order. One failing case never stops the others. sink, if
// non-nil, is called once per result as it completes; its errors are
// logged only. A cancelled ctx still yields a result for every case.
func (r *Runner) RunBatch(ctx context.Context, cases []suite.TestCase, sink Sink) []suite.TestResult {
	results := make([]suite.TestResult, 0, len(cases))
	r.publish(events.EventBatchStart, events.BatchInfo{Total: len(cases)}, 0)
	r.logger.Info("batch started", "tests", len(cases))
	start := r.now()

	for _, tc := range cases {
		res := r.Run(ctx, tc)
		results = append(results, res)
		if sink == nil {
			continue
		}
		if err := sink(res); err != nil {
			r.logger.Error("saving result failed", "test", res.TestID, "error", err)
		}
	}

	summary := events.BatchInfo{Total: len(results)}
	for _, res := range results {
		switch res.Passed {
		case verify.Pass:
			summary.Passed++
		case verify.Fail:
			summary.Failed++
		default:
			summary.Inconclusive++
		}
	}
	r.publish(events.EventBatchEnd, summary, r.now().Sub(start))
	r.logger.Info("batch finished", "total", summary.Total, "passed", summary.Passed,
		"failed", summary.Failed, "inconclusive", summary.Inconclusive)
	return results
}

func (r *Runner) publish(typ events.EventType, data any, d time.Duration) {
	if r.bus == nil {
		return
	}
	e := events.NewEvent(typ, data)
	e.Duration = d
	r.bus.Publish(e)
}
