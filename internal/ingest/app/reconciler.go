package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"video_ingest_service/internal/ingest/domain"
	"video_ingest_service/pkg/database"
	"video_ingest_service/pkg/logger"
	"video_ingest_service/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const reconcileParallelism = 4

// ReconcileResult Deleted is true only when every id is gone remotely
type ReconcileResult struct {
	Deleted   bool
	FailedIDs []string
}

// Reconciler removes the remote objects of a video before its record may go
type Reconciler struct {
	store   database.ObjectStore
	policy  domain.RetryPolicy
	metrics *metrics.Metrics
}

// NewReconciler create Reconciler
func NewReconciler(store database.ObjectStore, policy domain.RetryPolicy, m *metrics.Metrics) *Reconciler {
	return &Reconciler{store: store, policy: policy, metrics: m}
}

type prefixGroup struct {
	prefix string
	ids    []string
}

// Reconcile deletes explicitIDs, or the record's primary and part ids when
// none are given. Ids sharing a "<base>-part-" prefix are removed with one
// prefix delete; whatever is left goes one by one with the upload retry
// policy. A 404 counts as deleted.
func (r *Reconciler) Reconcile(ctx context.Context, target domain.StoreTarget, record *domain.VideoRecord, explicitIDs []string) ReconcileResult {
	ids := uniqueIDs(explicitIDs)
	if len(ids) == 0 && record != nil {
		ids = record.PublicIDs()
	}
	log := logger.Log.With(zap.Int("ids", len(ids)))
	if record != nil {
		log = log.With(zap.Uint("video_id", record.ID))
	}

	storeCtx := context.WithoutCancel(ctx)
	pending := make([]string, 0, len(ids))
	for _, g := range groupByPrefix(ids) {
		if g.prefix == "" || len(g.ids) < 2 {
			pending = append(pending, g.ids...)
			continue
		}
		if err := r.store.DeleteByPrefix(storeCtx, target, g.prefix); err != nil {
			log.Warn("prefix delete failed, falling back to single deletes", zap.String("prefix", g.prefix), zap.Error(err))
			pending = append(pending, g.ids...)
			continue
		}
		log.Debug("prefix deleted", zap.String("prefix", g.prefix), zap.Int("covered", len(g.ids)))
	}

	failed := r.deleteEach(ctx, storeCtx, target, pending)
	if len(failed) > 0 {
		r.metrics.Reconciled("partial")
		log.Error("remote delete incomplete", zap.Strings("failed_ids", failed))
		return ReconcileResult{Deleted: false, FailedIDs: failed}
	}
	r.metrics.Reconciled("deleted")
	log.Info("remote objects deleted")
	return ReconcileResult{Deleted: true}
}

// deleteEach returns the ids that could not be confirmed deleted, in input order.
func (r *Reconciler) deleteEach(ctx, storeCtx context.Context, target domain.StoreTarget, ids []string) []string {
	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(reconcileParallelism)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			_, err := retryStore(ctx, r.policy, func(int) error {
				err := r.store.DeleteByID(storeCtx, target, id)
				if isNotFound(err) {
					return nil
				}
				return err
			}, func(n int, delay time.Duration, err error) {
				logger.Log.Warn("delete failed, retrying",
					zap.String("public_id", id),
					zap.Int("attempt", n),
					zap.Duration("delay", delay),
					zap.Error(err),
				)
			})
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for i, err := range errs {
		if err != nil {
			failed = append(failed, ids[i])
		}
	}
	return failed
}

func groupByPrefix(ids []string) []prefixGroup {
	var groups []prefixGroup
	index := map[string]int{}
	for _, id := range ids {
		prefix, ok := MultipartPrefix(id)
		if !ok {
			groups = append(groups, prefixGroup{ids: []string{id}})
			continue
		}
		if i, seen := index[prefix]; seen {
			groups[i].ids = append(groups[i].ids, id)
			continue
		}
		index[prefix] = len(groups)
		groups = append(groups, prefixGroup{prefix: prefix, ids: []string{id}})
	}
	return groups
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func isNotFound(err error) bool {
	var se *domain.StoreError
	return errors.As(err, &se) && se.HTTPCode == http.StatusNotFound
}
