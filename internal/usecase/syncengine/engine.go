package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ohsync/internal/bootstrap/logging"
	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/errs"
	"ohsync/internal/ports"
)

// ErrNoRecordKeyMapping: the integration's mapping version has no identity
// column, so remote rows cannot be matched to internal records at all.
var ErrNoRecordKeyMapping = errors.New("mapping has no record key column")

// Engine projects a fetched grid through the integration's field mappings
// and three-way merges each cell against the snapshot baseline. All writes
// for one grid happen in a single transaction; a failure rolls the whole
// delivery back so a retry starts clean.
type Engine struct {
	mappings  ports.FieldMappingRepository
	records   ports.RecordStore
	snapshots ports.SnapshotStore
	conflicts ports.ConflictRepository
	audit     ports.AuditSink
	uow       ports.UnitOfWork

	now func() time.Time
}

func NewEngine(
	mappings ports.FieldMappingRepository,
	records ports.RecordStore,
	snapshots ports.SnapshotStore,
	conflicts ports.ConflictRepository,
	audit ports.AuditSink,
	uow ports.UnitOfWork,
) *Engine {
	return &Engine{
		mappings:  mappings,
		records:   records,
		snapshots: snapshots,
		conflicts: conflicts,
		audit:     audit,
		uow:       uow,
		now:       time.Now,
	}
}

// Result counts what one grid produced.
type Result struct {
	Applied   int
	Converged int
	Conflicts int
	Unmatched int
	Noops     int
}

func (e *Engine) SyncRows(ctx context.Context, integration ports.Integration, grid [][]string) (Result, error) {
	records := domainsync.NormalizeRows(grid)
	if len(records) == 0 {
		return Result{}, nil
	}

	mappings, err := e.mappings.ListByIntegration(ctx, integration.ID)
	if err != nil {
		return Result{}, errs.Wrap(err, "load field mappings")
	}

	var keyMapping *ports.FieldMapping
	for i := range mappings {
		if mappings[i].RecordKey {
			keyMapping = &mappings[i]
			break
		}
	}
	if keyMapping == nil {
		return Result{}, ErrNoRecordKeyMapping
	}

	var result Result
	err = e.uow.WithTx(ctx, func(txCtx context.Context) error {
		for _, record := range records {
			if err := e.syncRecord(txCtx, integration, record, mappings, keyMapping, &result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	logging.Info(ctx, "grid synced",
		slog.String("integration_id", integration.ID),
		slog.Int("rows", len(records)),
		slog.Int("applied", result.Applied),
		slog.Int("conflicts", result.Conflicts),
		slog.Int("unmatched", result.Unmatched),
	)
	return result, nil
}

func (e *Engine) syncRecord(
	ctx context.Context,
	integration ports.Integration,
	record domainsync.Record,
	mappings []ports.FieldMapping,
	keyMapping *ports.FieldMapping,
	result *Result,
) error {
	now := e.now().UTC().Format(time.RFC3339)

	keyRaw, ok := record[keyMapping.ExternalField]
	if !ok {
		result.Unmatched++
		return e.auditUnmatched(ctx, integration, keyMapping, "", now)
	}
	keyValue := domainsync.ApplyTransform(keyRaw, keyMapping.Transform)

	recordID, err := e.records.FindRecordID(ctx, keyMapping.InternalTable, keyMapping.InternalField, keyValue, integration.DevelopmentID)
	if errors.Is(err, ports.ErrRecordNotFound) {
		// Never guess identity; the row is skipped and leaves a trace.
		result.Unmatched++
		return e.auditUnmatched(ctx, integration, keyMapping, keyValue, now)
	}
	if err != nil {
		return errs.Wrap(err, "resolve record identity")
	}

	for _, mapping := range mappings {
		if mapping.RecordKey {
			continue
		}
		raw, ok := record[mapping.ExternalField]
		if !ok {
			continue
		}
		remote := domainsync.ApplyTransform(raw, mapping.Transform)

		if err := e.syncCell(ctx, integration, mapping, recordID, remote, now, result); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) syncCell(
	ctx context.Context,
	integration ports.Integration,
	mapping ports.FieldMapping,
	recordID, remote, now string,
	result *Result,
) error {
	local, err := e.records.GetField(ctx, mapping.InternalTable, mapping.InternalField, recordID)
	if err != nil {
		return errs.Wrapf(err, "read %s.%s", mapping.InternalTable, mapping.InternalField)
	}

	base, _, err := e.snapshots.Get(ctx, integration.ID, mapping.InternalTable, mapping.InternalField, recordID)
	if err != nil {
		return errs.Wrap(err, "read snapshot")
	}

	switch domainsync.Merge(base, local, remote) {
	case domainsync.MergeNoop:
		result.Noops++
		return nil

	case domainsync.MergeApplyRemote:
		if err := e.records.SetField(ctx, mapping.InternalTable, mapping.InternalField, recordID, remote); err != nil {
			return errs.Wrapf(err, "write %s.%s", mapping.InternalTable, mapping.InternalField)
		}
		if err := e.snapshots.Upsert(ctx, integration.ID, mapping.InternalTable, mapping.InternalField, recordID, remote, now); err != nil {
			return errs.Wrap(err, "advance snapshot")
		}
		result.Applied++
		return e.audit.Emit(ctx, ports.AuditEvent{
			TenantID: integration.TenantID,
			Action:   ports.AuditSyncApplied,
			Actor:    ports.ActorSystem,
			Metadata: map[string]any{
				"integration_id": integration.ID,
				"oh_table":       mapping.InternalTable,
				"oh_field":       mapping.InternalField,
				"oh_record_id":   recordID,
			},
			CreatedAt: now,
		})

	case domainsync.MergeConverged:
		// Both sides landed on the same value independently; only the
		// baseline moves.
		if err := e.snapshots.Upsert(ctx, integration.ID, mapping.InternalTable, mapping.InternalField, recordID, remote, now); err != nil {
			return errs.Wrap(err, "advance snapshot")
		}
		result.Converged++
		return nil

	case domainsync.MergeConflict:
		conflict := ports.SyncConflict{
			IntegrationID: integration.ID,
			OhTable:       mapping.InternalTable,
			OhField:       mapping.InternalField,
			OhRecordID:    recordID,
			LocalValue:    local,
			RemoteValue:   remote,
			BaseValue:     base,
			CreatedAt:     now,
		}
		created, err := e.conflicts.Create(ctx, conflict)
		if err != nil {
			return errs.Wrap(err, "record conflict")
		}
		result.Conflicts++
		return e.audit.Emit(ctx, ports.AuditEvent{
			TenantID: integration.TenantID,
			Action:   ports.AuditConflictDetected,
			Actor:    ports.ActorSystem,
			Metadata: map[string]any{
				"integration_id": integration.ID,
				"conflict_id":    created.ID,
				"oh_table":       mapping.InternalTable,
				"oh_field":       mapping.InternalField,
				"oh_record_id":   recordID,
			},
			CreatedAt: now,
		})

	default:
		return fmt.Errorf("unhandled merge outcome")
	}
}

func (e *Engine) auditUnmatched(ctx context.Context, integration ports.Integration, keyMapping *ports.FieldMapping, keyValue, now string) error {
	logging.Warn(ctx, "remote row has no matching record",
		slog.String("integration_id", integration.ID),
		slog.String("key_field", keyMapping.ExternalField),
	)
	return e.audit.Emit(ctx, ports.AuditEvent{
		TenantID: integration.TenantID,
		Action:   ports.AuditRowUnmatched,
		Actor:    ports.ActorSystem,
		Metadata: map[string]any{
			"integration_id": integration.ID,
			"key_field":      keyMapping.ExternalField,
			"key_value":      keyValue,
		},
		CreatedAt: now,
	})
}
