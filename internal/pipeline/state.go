package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/model"
)

// StateObserver receives every state-machine transition of a run.
type StateObserver interface {
	OnState(ctx context.Context, run *model.PipelineRun, state model.RunState)
}

// StateObserverFunc adapts a function to StateObserver.
type StateObserverFunc func(ctx context.Context, run *model.PipelineRun, state model.RunState)

// OnState implements StateObserver.
func (f StateObserverFunc) OnState(ctx context.Context, run *model.PipelineRun, state model.RunState) {
	f(ctx, run, state)
}

// StatusUpdater persists run status transitions.
type StatusUpdater interface {
	UpdateRunStatus(ctx context.Context, runID, documentID string, state model.RunState) error
}

// RecordStates returns an observer that writes each transition through u.
// Write failures are logged and do not affect the run.
func RecordStates(u StatusUpdater) StateObserver {
	return StateObserverFunc(func(ctx context.Context, run *model.PipelineRun, state model.RunState) {
		// Terminal transitions may arrive after cancellation.
		ctx = context.WithoutCancel(ctx)
		if err := u.UpdateRunStatus(ctx, run.ID, run.DocumentID, state); err != nil {
			zap.L().Warn("pipeline: failed to update status",
				zap.String("run_id", run.ID),
				zap.String("state", string(state)),
				zap.Error(err),
			)
		}
	})
}

// multiObserver fans a transition out to several observers in order.
type multiObserver []StateObserver

func (m multiObserver) OnState(ctx context.Context, run *model.PipelineRun, state model.RunState) {
	for _, o := range m {
		o.OnState(ctx, run, state)
	}
}

// logObserver logs transitions at debug level.
type logObserver struct{}

func (logObserver) OnState(_ context.Context, run *model.PipelineRun, state model.RunState) {
	zap.L().Debug("pipeline: state",
		zap.String("run_id", run.ID),
		zap.String("document_id", run.DocumentID),
		zap.String("state", string(state)),
	)
}
