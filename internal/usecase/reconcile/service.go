package reconcile

import (
	"context"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// Service defines the interface for the reconciliation use case
type Service interface {
	// Process folds one normalized provider signal into the meeting store
	Process(ctx context.Context, ev entities.InboundEvent) (Outcome, error)

	// Windows returns the configured series horizons
	Windows() Windows

	// Wait blocks until background side effects (invitation emails) finish
	Wait()
}

// Ensure ReconcileService implements Service interface
var _ Service = (*ReconcileService)(nil)
