package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/cost"
	"github.com/sells-group/docintel/internal/invoke"
	invokemocks "github.com/sells-group/docintel/internal/invoke/mocks"
	"github.com/sells-group/docintel/internal/model"
)

const fallbackModel = "gpt-4o-mini"

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{
		DocumentCharLimit:    10000,
		ContextCharLimit:     2000,
		LayerDelayMs:         0,
		CallTimeoutSecs:      5,
		MaxOutputTokens:      4000,
		FallbackModel:        fallbackModel,
		RateLimitBackoffMs:   1,
		MaxRateLimitWaitSecs: 1,
	}
}

func testCalculator() *cost.Calculator {
	return cost.NewCalculator(cost.Pricing{
		DefaultModel: fallbackModel,
		Models: map[string]cost.ModelRate{
			"gpt-4o-mini":                {Input: 0.15, Output: 0.60},
			"gpt-4.1-mini":               {Input: 0.40, Output: 1.60},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"gpt-5":                      {Input: 1.25, Output: 10.00},
			"o3":                         {Input: 2.00, Output: 8.00},
		},
	})
}

func ptr(v float64) *float64 { return &v }

// okResult returns a successful invocation result with the given readiness.
func okResult(readiness float64, finding string) *invoke.Result {
	return &invoke.Result{
		Content: &model.StructuredContent{
			KeyFindings:       []string{finding},
			Metrics:           &model.Metrics{ReadinessScore: ptr(readiness), ConfidenceLevel: ptr(0.9)},
			ExtractedConcepts: []string{"concept-" + finding},
		},
		Usage: model.TokenUsage{InputTokens: 1000, OutputTokens: 500},
	}
}

func forModel(id string) any {
	return mock.MatchedBy(func(req invoke.Request) bool { return req.Model == id })
}

// requestLog captures invoke requests in call order.
type requestLog struct {
	mu   sync.Mutex
	reqs []invoke.Request
}

func (l *requestLog) capture(args mock.Arguments) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reqs = append(l.reqs, args.Get(2).(invoke.Request))
}

func (l *requestLog) all() []invoke.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]invoke.Request(nil), l.reqs...)
}

// expectPrimaries sets up successful primary calls for every default layer.
func expectPrimaries(inv *invokemocks.MockInvoker, log *requestLog, readiness ...float64) {
	layers := model.DefaultLayers()
	for i, l := range layers {
		r := 5.0
		if i < len(readiness) {
			r = readiness[i]
		}
		call := inv.On("Invoke", mock.Anything, l.Protocol, forModel(l.Model)).
			Return(okResult(r, l.Name), nil).Once()
		if log != nil {
			call.Run(log.capture)
		}
	}
}

// stateRecorder collects observed states.
type stateRecorder struct {
	mu     sync.Mutex
	states []model.RunState
}

func (s *stateRecorder) OnState(_ context.Context, _ *model.PipelineRun, state model.RunState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
}

func (s *stateRecorder) all() []model.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.RunState(nil), s.states...)
}

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *invokemocks.MockInvoker) {
	t.Helper()
	inv := invokemocks.NewMockInvoker(t)
	return New(testConfig(), inv, testCalculator(), opts...), inv
}

func newMockInvoker(t *testing.T) *invokemocks.MockInvoker {
	t.Helper()
	return invokemocks.NewMockInvoker(t)
}
