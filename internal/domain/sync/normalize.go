package sync

import (
	"strings"
	"time"
)

// Record is one external row keyed by header name.
type Record map[string]string

// NormalizeRows turns a raw cell grid into header-keyed records. The first
// row is the header row; blank headers are dropped, as are rows that are
// entirely empty. Short rows pad with the empty string.
func NormalizeRows(grid [][]string) []Record {
	if len(grid) < 2 {
		return nil
	}

	headers := grid[0]
	records := make([]Record, 0, len(grid)-1)

	for _, row := range grid[1:] {
		record := make(Record, len(headers))
		empty := true
		for i, header := range headers {
			name := strings.TrimSpace(header)
			if name == "" {
				continue
			}
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			if value != "" {
				empty = false
			}
			record[name] = value
		}
		if empty {
			continue
		}
		records = append(records, record)
	}

	return records
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// ApplyTransform runs a mapping's transform rule over a raw cell value.
// Rules: "lowercase", "uppercase", "currency", "date", and
// "map:Old=new;Sold=sale_agreed". Unknown rules and failed parses pass the
// value through unchanged rather than dropping data.
func ApplyTransform(value, rule string) string {
	rule = strings.TrimSpace(rule)
	if rule == "" || value == "" {
		return value
	}

	switch {
	case rule == "lowercase":
		return strings.ToLower(value)
	case rule == "uppercase":
		return strings.ToUpper(value)
	case rule == "currency":
		return stripCurrency(value)
	case rule == "date":
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		}
		return value
	case strings.HasPrefix(rule, "map:"):
		for _, pair := range strings.Split(rule[len("map:"):], ";") {
			from, to, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			if strings.TrimSpace(from) == value {
				return strings.TrimSpace(to)
			}
		}
		return value
	default:
		return value
	}
}

func stripCurrency(value string) string {
	var b strings.Builder
	for _, r := range value {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return value
	}
	return b.String()
}
