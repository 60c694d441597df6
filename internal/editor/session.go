package editor

import (
	"context"

	"cog-cli/internal/actions"
	"cog-cli/internal/model"

	"go.uber.org/zap"
)

// FetchLoad performs the backend call a ticket authorizes.
func FetchLoad(a actions.Actions, t LoadTicket) ([]model.Image, error) {
	if t.Kind == LoadGroup {
		return a.ListGroup(t.Ctx, t.TargetID)
	}
	return a.VersionChain(t.Ctx, t.TargetID)
}

// ApplyLoad routes a finished load to the state. Stale results report false.
func (s *State) ApplyLoad(t LoadTicket, images []model.Image, err error) bool {
	if err != nil {
		return s.FailLoad(t, err)
	}
	if t.Kind == LoadGroup {
		return s.ApplyGroup(t, images)
	}
	return s.ApplyVersions(t, images)
}

// Session drives a State synchronously. The terminal UI runs the same steps as
// asynchronous commands; the HTTP server and tests use Session directly.
type Session struct {
	State   *State
	Actions actions.Actions
	Log     *zap.Logger
}

// Open loads the series and positions the editor at loc.
func Open(ctx context.Context, a actions.Actions, policy Policy, loc Location, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Session{State: New(ctx, policy, loc.SeriesID), Actions: a, Log: log}
	snap, err := FetchSnapshot(ctx, a, loc.SeriesID)
	if err != nil {
		return nil, err
	}
	e.State.ApplyRefresh(snap)
	e.State.Restore(loc)
	e.State.History.Push(e.State.Location())
	e.SyncLoads()
	return e, nil
}

// SyncLoads runs loads until the state needs no more.
func (e *Session) SyncLoads() {
	for range 4 {
		tickets := e.State.Reconcile()
		if len(tickets) == 0 {
			return
		}
		for _, t := range tickets {
			images, err := FetchLoad(e.Actions, t)
			if !e.State.ApplyLoad(t, images, err) {
				e.Log.Debug("dropped stale load", zap.Stringer("kind", t.Kind), zap.String("target", t.TargetID))
			}
		}
	}
}

func (e *Session) Refresh(ctx context.Context) error {
	snap, err := FetchSnapshot(ctx, e.Actions, e.State.SeriesID)
	if err != nil {
		e.Log.Warn("refresh failed", zap.String("series", e.State.SeriesID), zap.Error(err))
		e.State.Err = "refresh failed: " + actions.Message(err)
		return err
	}
	e.State.ApplyRefresh(snap)
	e.SyncLoads()
	return nil
}

// Do runs one mutation and refreshes when it asks for it.
func (e *Session) Do(ctx context.Context, m Mutation) error {
	refresh, err := Run(ctx, e.State, e.Actions, m)
	if err != nil {
		e.Log.Info("mutation rolled back", zap.String("name", m.Name), zap.String("image", m.ImageID), zap.Error(err))
		return err
	}
	if refresh {
		return e.Refresh(ctx)
	}
	e.SyncLoads()
	return nil
}

// Submit runs the active edit to completion.
func (e *Session) Submit(ctx context.Context) (EditOutcome, error) {
	job, err := e.State.SubmitEdit()
	if err != nil {
		return EditOutcome{}, err
	}
	id, err := job.Run(ctx, e.Actions)
	out := e.State.FinishEdit(job, id, err)
	if out.Orphaned {
		e.Log.Warn("edit result orphaned", zap.String("mode", job.Mode.String()), zap.String("image", job.ImageID), zap.String("new", id), zap.Error(err))
	}
	if out.Refresh {
		if rerr := e.Refresh(ctx); rerr != nil && err == nil {
			err = rerr
		}
	}
	return out, err
}

// Batch runs op over ids and reconciles once.
func (e *Session) Batch(ctx context.Context, op BatchOp, arg string, ids []string) BatchResult {
	res := Batch(ctx, e.Actions, op, arg, ids)
	if err := res.Err(); err != nil {
		e.Log.Warn("batch partially failed", zap.String("op", string(op)), zap.Int("failed", len(res.Failed)), zap.Int("total", res.Total()), zap.Error(err))
	}
	if e.State.SettleBatch(res) {
		_ = e.Refresh(ctx)
	}
	return res
}
