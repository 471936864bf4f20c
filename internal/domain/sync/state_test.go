package sync

import (
	"errors"
	"testing"
)

func TestPendingConnectRoundTrip(t *testing.T) {
	t.Parallel()

	p := PendingConnect{
		TenantID:      "tenant-1",
		DevelopmentID: "dev-9",
		Type:          TypeGoogleSheets,
		Name:          "Sales tracker",
		ExternalRef:   "sheet-abc",
	}

	raw, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := DecodePendingConnect(raw)
	if err != nil {
		t.Fatalf("DecodePendingConnect() error = %v", err)
	}
	if decoded != p {
		t.Fatalf("round trip = %#v, want %#v", decoded, p)
	}
}

func TestPendingConnectRequiresTenant(t *testing.T) {
	t.Parallel()

	if _, err := (PendingConnect{Type: TypeGoogleSheets}).Encode(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Encode without tenant error = %v, want ErrInvalidState", err)
	}

	if _, err := DecodePendingConnect(`{"type":"google_sheets"}`); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("decode without tenant error = %v, want ErrInvalidState", err)
	}
	if _, err := DecodePendingConnect(`{"tenant_id":"t1","type":"nope"}`); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("decode with bad type error = %v, want ErrInvalidState", err)
	}
	if _, err := DecodePendingConnect("not-json"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("decode garbage error = %v, want ErrInvalidState", err)
	}
}

func TestTypeProviderMapping(t *testing.T) {
	t.Parallel()

	if TypeGoogleSheets.Provider() != ProviderGoogle {
		t.Fatal("google_sheets must map to google")
	}
	if TypeExcelOneDrive.Provider() != ProviderMicrosoft || TypeExcelSharePoint.Provider() != ProviderMicrosoft {
		t.Fatal("both excel variants must map to microsoft")
	}
	if TypeDynamics365.Provider() != ProviderDynamics {
		t.Fatal("dynamics_365 must map to dynamics")
	}

	types := TypesForProvider(ProviderMicrosoft)
	if len(types) != 2 {
		t.Fatalf("microsoft types = %v, want both excel variants", types)
	}
}
