package sync

import "testing"

func TestNormalizeRowsHeaderKeyed(t *testing.T) {
	t.Parallel()

	grid := [][]string{
		{"Address", "Price", ""},
		{"1 Oak Road", "350000", "ignored"},
		{"2 Oak Road", "410000"},
	}

	records := NormalizeRows(grid)
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0]["Address"] != "1 Oak Road" || records[0]["Price"] != "350000" {
		t.Fatalf("first record = %#v", records[0])
	}
	if _, ok := records[0][""]; ok {
		t.Fatal("blank header must be dropped")
	}
	if records[1]["Price"] != "410000" {
		t.Fatalf("short row pad failed: %#v", records[1])
	}
}

func TestNormalizeRowsSkipsEmpty(t *testing.T) {
	t.Parallel()

	grid := [][]string{
		{"Address"},
		{"  "},
		{"3 Oak Road"},
	}

	records := NormalizeRows(grid)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (blank row skipped)", len(records))
	}

	if got := NormalizeRows([][]string{{"Address"}}); got != nil {
		t.Fatalf("header-only grid = %#v, want nil", got)
	}
}

func TestApplyTransformRules(t *testing.T) {
	t.Parallel()

	if got := ApplyTransform("Sold", "map:Sold=sale_agreed;Available=available"); got != "sale_agreed" {
		t.Fatalf("map transform = %q", got)
	}
	if got := ApplyTransform("Reserved", "map:Sold=sale_agreed"); got != "Reserved" {
		t.Fatalf("unmapped value = %q, want passthrough", got)
	}
	if got := ApplyTransform("€350,000", "currency"); got != "350000" {
		t.Fatalf("currency transform = %q", got)
	}
	if got := ApplyTransform("ABC@x.COM", "lowercase"); got != "abc@x.com" {
		t.Fatalf("lowercase transform = %q", got)
	}
	if got := ApplyTransform("done", "uppercase"); got != "DONE" {
		t.Fatalf("uppercase transform = %q", got)
	}
	if got := ApplyTransform("2024-03-01", "date"); got != "2024-03-01T00:00:00Z" {
		t.Fatalf("date transform = %q", got)
	}
	if got := ApplyTransform("not a date", "date"); got != "not a date" {
		t.Fatalf("unparseable date = %q, want passthrough", got)
	}
	if got := ApplyTransform("keep", "unknown_rule"); got != "keep" {
		t.Fatalf("unknown rule = %q, want passthrough", got)
	}
	if got := ApplyTransform("keep", ""); got != "keep" {
		t.Fatalf("empty rule = %q, want passthrough", got)
	}
}
