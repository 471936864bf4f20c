package conflict

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ohsync/internal/bootstrap/logging"
	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/errs"
	"ohsync/internal/ports"
)

// Service resolves pending sync conflicts. Resolution is first-write-wins:
// the status flip is a single conditional update, and every side effect
// shares its transaction, so two racing operators can never both apply.
type Service struct {
	conflicts ports.ConflictRepository
	snapshots ports.SnapshotStore
	records   ports.RecordStore
	audit     ports.AuditSink
	uow       ports.UnitOfWork

	now func() time.Time
}

func NewService(
	conflicts ports.ConflictRepository,
	snapshots ports.SnapshotStore,
	records ports.RecordStore,
	audit ports.AuditSink,
	uow ports.UnitOfWork,
) *Service {
	return &Service{
		conflicts: conflicts,
		snapshots: snapshots,
		records:   records,
		audit:     audit,
		uow:       uow,
		now:       time.Now,
	}
}

func (s *Service) ListPending(ctx context.Context, tenantID string) ([]ports.SyncConflict, error) {
	return s.conflicts.ListPendingByTenant(ctx, tenantID)
}

// Resolve applies the operator's choice. Cross-tenant and unknown ids both
// read as not-found so conflict ids cannot be probed across tenants.
func (s *Service) Resolve(ctx context.Context, conflictID, tenantID string, resolution domainsync.Resolution, resolverID string) error {
	if _, err := domainsync.ParseResolution(string(resolution)); err != nil {
		return err
	}
	if resolverID == "" {
		resolverID = ports.ActorUser
	}
	now := s.now().UTC().Format(time.RFC3339)

	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		conflict, err := s.conflicts.GetByTenant(txCtx, conflictID, tenantID)
		if err != nil {
			return err
		}

		won, err := s.conflicts.MarkResolved(txCtx, conflictID, resolution, resolverID, now)
		if err != nil {
			return errs.Wrap(err, "mark conflict resolved")
		}
		if !won {
			return ports.ErrConflictAlreadyResolved
		}

		switch resolution {
		case domainsync.ConflictResolvedLocal:
			// Local stands; the snapshot moves to it so the next delivery
			// does not re-raise the same conflict.
			if err := s.snapshots.Upsert(txCtx, conflict.IntegrationID, conflict.OhTable, conflict.OhField, conflict.OhRecordID, conflict.LocalValue, now); err != nil {
				return errs.Wrap(err, "advance snapshot")
			}
		case domainsync.ConflictResolvedRemote:
			if err := s.records.SetField(txCtx, conflict.OhTable, conflict.OhField, conflict.OhRecordID, conflict.RemoteValue); err != nil {
				return errs.Wrap(err, "apply remote value")
			}
			if err := s.snapshots.Upsert(txCtx, conflict.IntegrationID, conflict.OhTable, conflict.OhField, conflict.OhRecordID, conflict.RemoteValue, now); err != nil {
				return errs.Wrap(err, "advance snapshot")
			}
		case domainsync.ConflictIgnored:
			// Status write only; the disagreement stays live data-wise.
		}

		return s.audit.Emit(txCtx, ports.AuditEvent{
			TenantID: tenantID,
			Action:   ports.AuditConflictResolved,
			Actor:    resolverID,
			Metadata: map[string]any{
				"conflict_id":    conflictID,
				"integration_id": conflict.IntegrationID,
				"resolution":     string(resolution),
				"oh_table":       conflict.OhTable,
				"oh_field":       conflict.OhField,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		if !errors.Is(err, ports.ErrConflictNotFound) && !errors.Is(err, ports.ErrConflictAlreadyResolved) {
			logging.Error(ctx, "conflict resolution failed",
				slog.String("conflict_id", conflictID),
				slog.Any("err", errs.Loggable(err)),
			)
		}
		return err
	}

	logging.Info(ctx, "conflict resolved",
		slog.String("conflict_id", conflictID),
		slog.String("resolution", string(resolution)),
	)
	return nil
}
