package main

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/cost"
	"github.com/sells-group/docintel/internal/invoke"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/pipeline"
	"github.com/sells-group/docintel/internal/resilience"
	"github.com/sells-group/docintel/internal/store"
	anthropicpkg "github.com/sells-group/docintel/pkg/anthropic"
	"github.com/sells-group/docintel/pkg/openai"
)

// pacerBurst lets a few calls through back to back before pacing applies.
const pacerBurst = 2

// analyzer runs the layered analysis of one document.
type analyzer interface {
	Run(ctx context.Context, documentID, text string, layers model.LayerSet) (*model.PipelineRun, error)
}

// pipelineEnv holds the store, layer set and orchestrator needed by the
// analyze, batch and serve commands.
type pipelineEnv struct {
	Store        store.Store
	Layers       model.LayerSet
	Orchestrator *pipeline.Orchestrator
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "docintel.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for postgres (DOCINTEL_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline loads the layer set, validates the configuration against it,
// opens the store and builds the orchestrator. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	layers, err := config.LoadLayers(cfg.Pipeline.LayersFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(layers); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	orch := pipeline.New(cfg.Pipeline, newRouter(cfg, layers), cost.NewCalculator(cfg.Pricing.Table()),
		pipeline.WithObserver(pipeline.RecordStates(st)),
	)

	zap.L().Info("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("fallback_model", cfg.Pipeline.FallbackModel),
		zap.Strings("layer_models", layerModels(layers)),
	)

	return &pipelineEnv{Store: st, Layers: layers, Orchestrator: orch}, nil
}

// newRouter wires one invoker per protocol, each behind its own pacer. The
// messages protocol is only registered when an Anthropic key is configured.
func newRouter(c *config.Config, layers model.LayerSet) *invoke.Router {
	var oaOpts []openai.Option
	if c.OpenAI.BaseURL != "" {
		oaOpts = append(oaOpts, openai.WithBaseURL(c.OpenAI.BaseURL))
	}
	oa := openai.NewClient(c.OpenAI.Key, oaOpts...)

	invokers := map[model.Protocol]invoke.ProtocolInvoker{
		model.ProtocolStructured: invoke.NewStructuredInvoker(oa),
		model.ProtocolChat:       invoke.NewChatInvoker(oa),
	}
	if c.Anthropic.Key != "" {
		var acOpts []option.RequestOption
		if c.Anthropic.BaseURL != "" {
			acOpts = append(acOpts, option.WithBaseURL(c.Anthropic.BaseURL))
		}
		invokers[model.ProtocolMessages] = invoke.NewMessagesInvoker(anthropicpkg.NewClient(c.Anthropic.Key, acOpts...))
	}

	var opts []invoke.RouterOption
	for p := range invokers {
		opts = append(opts, invoke.WithPacer(p, resilience.NewPacer(string(p), c.Pipeline.RequestsPerSecond, pacerBurst)))
	}

	for _, l := range layers {
		if _, ok := invokers[l.Protocol]; !ok {
			zap.L().Warn("no invoker for layer protocol", zap.Int("layer", l.ID), zap.String("protocol", string(l.Protocol)))
		}
	}

	return invoke.NewRouter(invokers, opts...)
}

// analyzeAndRecord runs one document and persists the terminated run, even
// when the run failed or was canceled. rec may be nil.
func analyzeAndRecord(ctx context.Context, a analyzer, rec pipeline.Recorder, documentID, text string, layers model.LayerSet) (*model.PipelineRun, error) {
	run, runErr := a.Run(ctx, documentID, text, layers)
	if rec != nil && run != nil {
		if err := rec.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			zap.L().Error("failed to record run",
				zap.String("run_id", run.ID),
				zap.String("document_id", documentID),
				zap.Error(err),
			)
			if runErr == nil {
				return run, eris.Wrap(err, "record run")
			}
		}
	}
	return run, runErr
}

func layerModels(layers model.LayerSet) []string {
	out := make([]string, len(layers))
	for i, l := range layers {
		out[i] = l.Model
	}
	return out
}
