package syncengine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/ports"
)

type stubMappings struct {
	items []ports.FieldMapping
}

func (s *stubMappings) ListByIntegration(_ context.Context, _ string) ([]ports.FieldMapping, error) {
	return s.items, nil
}

func (s *stubMappings) ReplaceForIntegration(_ context.Context, _ string, items []ports.FieldMapping) error {
	s.items = items
	return nil
}

type stubRecords struct {
	// idByKey maps "table/field/value" to a record id.
	idByKey map[string]string
	// fields maps "table/field/recordID" to the current value.
	fields map[string]string
	writes int
}

func (s *stubRecords) FindRecordID(_ context.Context, table, field, value, _ string) (string, error) {
	id, ok := s.idByKey[table+"/"+field+"/"+value]
	if !ok {
		return "", ports.ErrRecordNotFound
	}
	return id, nil
}

func (s *stubRecords) GetField(_ context.Context, table, field, recordID string) (string, error) {
	return s.fields[table+"/"+field+"/"+recordID], nil
}

func (s *stubRecords) SetField(_ context.Context, table, field, recordID, value string) error {
	s.fields[table+"/"+field+"/"+recordID] = value
	s.writes++
	return nil
}

type stubSnapshots struct {
	values map[string]string
}

func snapshotKey(integrationID, table, field, recordID string) string {
	return integrationID + "/" + table + "/" + field + "/" + recordID
}

func (s *stubSnapshots) Get(_ context.Context, integrationID, table, field, recordID string) (string, bool, error) {
	v, ok := s.values[snapshotKey(integrationID, table, field, recordID)]
	return v, ok, nil
}

func (s *stubSnapshots) Upsert(_ context.Context, integrationID, table, field, recordID, value, _ string) error {
	s.values[snapshotKey(integrationID, table, field, recordID)] = value
	return nil
}

type stubConflicts struct {
	created []ports.SyncConflict
}

func (s *stubConflicts) Create(_ context.Context, c ports.SyncConflict) (ports.SyncConflict, error) {
	c.ID = fmt.Sprintf("conflict-%d", len(s.created)+1)
	c.Status = domainsync.ConflictPending
	s.created = append(s.created, c)
	return c, nil
}

func (s *stubConflicts) ListPendingByTenant(_ context.Context, _ string) ([]ports.SyncConflict, error) {
	return s.created, nil
}

func (s *stubConflicts) CountPendingByTenant(_ context.Context, _ string) (int64, error) {
	return int64(len(s.created)), nil
}

func (s *stubConflicts) GetByTenant(_ context.Context, _ string, _ string) (ports.SyncConflict, error) {
	return ports.SyncConflict{}, ports.ErrConflictNotFound
}

func (s *stubConflicts) MarkResolved(_ context.Context, _ string, _ domainsync.Resolution, _, _ string) (bool, error) {
	return false, nil
}

type stubAudit struct {
	events []ports.AuditEvent
}

func (s *stubAudit) Emit(_ context.Context, event ports.AuditEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubAudit) actions() []string {
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

type passthroughUow struct{}

func (passthroughUow) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	engine    *Engine
	records   *stubRecords
	snapshots *stubSnapshots
	conflicts *stubConflicts
	audit     *stubAudit
}

func newFixture(mappings []ports.FieldMapping) *fixture {
	f := &fixture{
		records: &stubRecords{
			idByKey: map[string]string{},
			fields:  map[string]string{},
		},
		snapshots: &stubSnapshots{values: map[string]string{}},
		conflicts: &stubConflicts{},
		audit:     &stubAudit{},
	}
	f.engine = NewEngine(
		&stubMappings{items: mappings},
		f.records,
		f.snapshots,
		f.conflicts,
		f.audit,
		passthroughUow{},
	)
	return f
}

func unitMappings() []ports.FieldMapping {
	return []ports.FieldMapping{
		{ExternalField: "Address", InternalTable: "units", InternalField: "address", RecordKey: true, Position: 0},
		{ExternalField: "Status", InternalTable: "units", InternalField: "status", Transform: "map:Sold=sale_agreed;Available=available", Position: 1},
		{ExternalField: "Price", InternalTable: "units", InternalField: "price", Transform: "currency", Position: 2},
	}
}

func testIntegration() ports.Integration {
	return ports.Integration{
		ID:       "int-1",
		TenantID: "tenant-1",
		Type:     domainsync.TypeGoogleSheets,
	}
}

func TestSyncRowsAppliesRemoteChange(t *testing.T) {
	t.Parallel()

	f := newFixture(unitMappings())
	f.records.idByKey["units/address/12 Oak Way"] = "unit-1"
	f.records.fields["units/status/unit-1"] = "available"
	f.snapshots.values[snapshotKey("int-1", "units", "status", "unit-1")] = "available"

	result, err := f.engine.SyncRows(context.Background(), testIntegration(), [][]string{
		{"Address", "Status"},
		{"12 Oak Way", "Sold"},
	})
	if err != nil {
		t.Fatalf("SyncRows() error = %v", err)
	}

	if result.Applied != 1 {
		t.Fatalf("Applied = %d, want 1", result.Applied)
	}
	if got := f.records.fields["units/status/unit-1"]; got != "sale_agreed" {
		t.Fatalf("record field = %q, want transformed remote value", got)
	}
	if got := f.snapshots.values[snapshotKey("int-1", "units", "status", "unit-1")]; got != "sale_agreed" {
		t.Fatalf("snapshot = %q, want advanced to applied value", got)
	}
	if actions := f.audit.actions(); len(actions) != 1 || actions[0] != ports.AuditSyncApplied {
		t.Fatalf("audit actions = %v", actions)
	}
}

func TestSyncRowsNoopWhenRemoteMatchesBase(t *testing.T) {
	t.Parallel()

	f := newFixture(unitMappings())
	f.records.idByKey["units/address/12 Oak Way"] = "unit-1"
	// Local drifted, remote is still at the baseline: outbound concern,
	// nothing to do inbound.
	f.records.fields["units/status/unit-1"] = "reserved"
	f.snapshots.values[snapshotKey("int-1", "units", "status", "unit-1")] = "available"

	result, err := f.engine.SyncRows(context.Background(), testIntegration(), [][]string{
		{"Address", "Status"},
		{"12 Oak Way", "Available"},
	})
	if err != nil {
		t.Fatalf("SyncRows() error = %v", err)
	}

	if result.Noops != 1 || result.Applied != 0 || result.Conflicts != 0 {
		t.Fatalf("result = %+v, want one noop", result)
	}
	if got := f.records.fields["units/status/unit-1"]; got != "reserved" {
		t.Fatalf("local value clobbered: %q", got)
	}
	if got := f.snapshots.values[snapshotKey("int-1", "units", "status", "unit-1")]; got != "available" {
		t.Fatalf("snapshot moved on a noop: %q", got)
	}
}

func TestSyncRowsConvergedAdvancesSnapshotOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(unitMappings())
	f.records.idByKey["units/address/12 Oak Way"] = "unit-1"
	f.records.fields["units/status/unit-1"] = "sale_agreed"
	f.snapshots.values[snapshotKey("int-1", "units", "status", "unit-1")] = "available"

	result, err := f.engine.SyncRows(context.Background(), testIntegration(), [][]string{
		{"Address", "Status"},
		{"12 Oak Way", "Sold"},
	})
	if err != nil {
		t.Fatalf("SyncRows() error = %v", err)
	}

	if result.Converged != 1 {
		t.Fatalf("result = %+v, want one converged", result)
	}
	if f.records.writes != 0 {
		t.Fatalf("record writes = %d, want 0", f.records.writes)
	}
	if got := f.snapshots.values[snapshotKey("int-1", "units", "status", "unit-1")]; got != "sale_agreed" {
		t.Fatalf("snapshot = %q, want converged value", got)
	}
}

func TestSyncRowsConflictLeavesRecordUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture(unitMappings())
	f.records.idByKey["units/address/12 Oak Way"] = "unit-1"
	f.records.fields["units/status/unit-1"] = "reserved"
	f.snapshots.values[snapshotKey("int-1", "units", "status", "unit-1")] = "available"

	result, err := f.engine.SyncRows(context.Background(), testIntegration(), [][]string{
		{"Address", "Status"},
		{"12 Oak Way", "Sold"},
	})
	if err != nil {
		t.Fatalf("SyncRows() error = %v", err)
	}

	if result.Conflicts != 1 {
		t.Fatalf("result = %+v, want one conflict", result)
	}
	if got := f.records.fields["units/status/unit-1"]; got != "reserved" {
		t.Fatalf("record changed during conflict: %q", got)
	}
	if got := f.snapshots.values[snapshotKey("int-1", "units", "status", "unit-1")]; got != "available" {
		t.Fatalf("snapshot advanced during conflict: %q", got)
	}

	if len(f.conflicts.created) != 1 {
		t.Fatalf("conflicts created = %d, want 1", len(f.conflicts.created))
	}
	c := f.conflicts.created[0]
	if c.BaseValue != "available" || c.LocalValue != "reserved" || c.RemoteValue != "sale_agreed" {
		t.Fatalf("conflict triple = base %q local %q remote %q", c.BaseValue, c.LocalValue, c.RemoteValue)
	}
	if actions := f.audit.actions(); len(actions) != 1 || actions[0] != ports.AuditConflictDetected {
		t.Fatalf("audit actions = %v", actions)
	}
}

func TestSyncRowsFirstSyncSeedsSnapshot(t *testing.T) {
	t.Parallel()

	f := newFixture(unitMappings())
	f.records.idByKey["units/address/12 Oak Way"] = "unit-1"
	// Local empty, no snapshot: remote wins cleanly on first contact.
	f.records.fields["units/price/unit-1"] = ""

	result, err := f.engine.SyncRows(context.Background(), testIntegration(), [][]string{
		{"Address", "Price"},
		{"12 Oak Way", "€350,000"},
	})
	if err != nil {
		t.Fatalf("SyncRows() error = %v", err)
	}

	if result.Applied != 1 {
		t.Fatalf("result = %+v, want one applied", result)
	}
	if got := f.records.fields["units/price/unit-1"]; got != "350000" {
		t.Fatalf("price = %q, want currency-stripped value", got)
	}
}

func TestSyncRowsUnmatchedRowSkippedAndAudited(t *testing.T) {
	t.Parallel()

	f := newFixture(unitMappings())
	f.records.idByKey["units/address/12 Oak Way"] = "unit-1"
	f.records.fields["units/status/unit-1"] = "available"

	result, err := f.engine.SyncRows(context.Background(), testIntegration(), [][]string{
		{"Address", "Status"},
		{"99 Nowhere Rd", "Sold"},
		{"12 Oak Way", "Sold"},
	})
	if err != nil {
		t.Fatalf("SyncRows() error = %v", err)
	}

	if result.Unmatched != 1 || result.Applied != 1 {
		t.Fatalf("result = %+v, want one unmatched and one applied", result)
	}
	actions := f.audit.actions()
	if len(actions) != 2 || actions[0] != ports.AuditRowUnmatched || actions[1] != ports.AuditSyncApplied {
		t.Fatalf("audit actions = %v", actions)
	}
	if f.audit.events[0].Metadata["key_value"] != "99 Nowhere Rd" {
		t.Fatalf("unmatched metadata = %v", f.audit.events[0].Metadata)
	}
}

func TestSyncRowsRequiresRecordKeyMapping(t *testing.T) {
	t.Parallel()

	f := newFixture([]ports.FieldMapping{
		{ExternalField: "Status", InternalTable: "units", InternalField: "status"},
	})

	_, err := f.engine.SyncRows(context.Background(), testIntegration(), [][]string{
		{"Status"},
		{"Sold"},
	})
	if !errors.Is(err, ErrNoRecordKeyMapping) {
		t.Fatalf("error = %v, want ErrNoRecordKeyMapping", err)
	}
}

func TestSyncRowsEmptyGrid(t *testing.T) {
	t.Parallel()

	f := newFixture(unitMappings())

	result, err := f.engine.SyncRows(context.Background(), testIntegration(), [][]string{{"Address", "Status"}})
	if err != nil {
		t.Fatalf("SyncRows() error = %v", err)
	}
	if result != (Result{}) {
		t.Fatalf("result = %+v, want zero value", result)
	}
}
