package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/store"
	"github.com/sells-group/docintel/internal/store/mocks"
)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestInitStore_SQLite(t *testing.T) {
	withConfig(t, &config.Config{Store: config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "runs.db"),
	}})

	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, ok := st.(*store.SQLiteStore)
	assert.True(t, ok)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestInitStore_Errors(t *testing.T) {
	tests := []struct {
		name   string
		store  config.StoreConfig
		errMsg string
	}{
		{"unknown driver", config.StoreConfig{Driver: "mysql"}, "unsupported store driver: mysql"},
		{"postgres without url", config.StoreConfig{Driver: "postgres"}, "database_url is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withConfig(t, &config.Config{Store: tt.store})

			_, err := initStore(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewRouter_Protocols(t *testing.T) {
	c := &config.Config{
		OpenAI:   config.OpenAIConfig{Key: "sk-test", BaseURL: "http://localhost:1"},
		Pipeline: config.PipelineConfig{RequestsPerSecond: 2},
	}

	r := newRouter(c, model.DefaultLayers())
	assert.True(t, r.Supports(model.ProtocolStructured))
	assert.True(t, r.Supports(model.ProtocolChat))
	assert.False(t, r.Supports(model.ProtocolMessages))

	c.Anthropic.Key = "sk-ant-test"
	r = newRouter(c, model.DefaultLayers())
	assert.True(t, r.Supports(model.ProtocolMessages))
}

func TestAnalyzeAndRecord(t *testing.T) {
	ctx := context.Background()
	layers := model.DefaultLayers()

	t.Run("records complete run", func(t *testing.T) {
		rec := mocks.NewMockStore(t)
		rec.On("SaveRun", mock.Anything, mock.Anything).Return(nil).Once()

		run, err := analyzeAndRecord(ctx, &stubAnalyzer{run: completeRun("r1")}, rec, "doc", "text", layers)
		require.NoError(t, err)
		assert.Equal(t, "r1", run.ID)
	})

	t.Run("records failed run and keeps run error", func(t *testing.T) {
		rec := mocks.NewMockStore(t)
		rec.On("SaveRun", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()
		runErr := errors.New("layer failed")

		run, err := analyzeAndRecord(ctx, &stubAnalyzer{run: failedRun("r2"), err: runErr}, rec, "doc", "text", layers)
		assert.ErrorIs(t, err, runErr)
		assert.Equal(t, 2, run.FailedLayer)
	})

	t.Run("surfaces record error on success", func(t *testing.T) {
		rec := mocks.NewMockStore(t)
		rec.On("SaveRun", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

		_, err := analyzeAndRecord(ctx, &stubAnalyzer{run: completeRun("r3")}, rec, "doc", "text", layers)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "record run")
	})

	t.Run("nil recorder", func(t *testing.T) {
		run, err := analyzeAndRecord(ctx, &stubAnalyzer{run: completeRun("r4")}, nil, "doc", "text", layers)
		require.NoError(t, err)
		assert.Equal(t, "doc", run.DocumentID)
	})
}

func TestLayerModels(t *testing.T) {
	models := layerModels(model.DefaultLayers())
	require.Len(t, models, model.LayerCount)
	for _, m := range models {
		assert.NotEmpty(t, m)
	}
}
