package service

import (
	"context"
	"log/slog"
	"time"

	"kinship/internal/assets"
	"kinship/internal/observability"
)

// KeepAsset is the sentinel clients send instead of a handle to say the
// record's current asset should stay as it is.
const KeepAsset = "keep"

// AssetLifecycle enforces the destroy-after-commit rule for stored media:
// an old asset is destroyed only after the owning record has committed a
// reference to its replacement. A failed destroy never rolls back the
// record; it is logged and counted as a leak instead.
type AssetLifecycle struct {
	store  assets.Store
	logger *slog.Logger
}

func NewAssetLifecycle(store assets.Store, logger *slog.Logger) *AssetLifecycle {
	return &AssetLifecycle{store: store, logger: logger}
}

// PlanReplacement resolves what handle the record should commit and which
// handle becomes obsolete once it does. A next of KeepAsset retains the
// current handle; an empty next clears it.
func (l *AssetLifecycle) PlanReplacement(current, next string) (resolved, obsolete string) {
	if next == KeepAsset {
		return current, ""
	}
	if next == current {
		return current, ""
	}
	return next, current
}

// CommitReplacement destroys the obsolete asset after its replacement has
// been committed. It runs in the background so the caller's response does
// not wait on storage.
func (l *AssetLifecycle) CommitReplacement(obsolete string) {
	if obsolete == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := l.store.Destroy(ctx, obsolete); err != nil {
			observability.AssetDestroyFailures.Inc()
			l.logger.Error("failed to destroy replaced asset",
				slog.String("handle", obsolete),
				slog.Any("error", err))
		}
	}()
}

// DestroyOwned destroys the assets of a record that is being deleted. It
// runs synchronously: the record is already gone, so waiting here is the
// only chance to reclaim the files. Failures are logged and counted but do
// not fail the deletion.
func (l *AssetLifecycle) DestroyOwned(ctx context.Context, handles ...string) {
	for _, handle := range handles {
		if handle == "" {
			continue
		}
		if err := l.store.Destroy(ctx, handle); err != nil {
			observability.AssetDestroyFailures.Inc()
			l.logger.Error("failed to destroy owned asset",
				slog.String("handle", handle),
				slog.Any("error", err))
		}
	}
}

// ReclaimOwned is DestroyOwned for callers that still hold the owning rows.
// A failure here is surfaced so the caller can abort before deleting the
// rows; since the handles remain findable, a retry will destroy the rest.
// Destroying a handle twice is a no-op, so partial progress is safe.
func (l *AssetLifecycle) ReclaimOwned(ctx context.Context, handles ...string) error {
	for _, handle := range handles {
		if handle == "" {
			continue
		}
		if err := l.store.Destroy(ctx, handle); err != nil {
			observability.AssetDestroyFailures.Inc()
			l.logger.Error("failed to destroy owned asset",
				slog.String("handle", handle),
				slog.Any("error", err))
			return err
		}
	}
	return nil
}
