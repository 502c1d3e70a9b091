package rowdata

import (
	"testing"

	"github.com/prototrack/prototrack/pkg/model"
)

func twoFields() []model.TemplateField {
	return []model.TemplateField{
		{Name: "item", Type: model.FieldShortText, Order: 0},
		{Name: "qty", Type: model.FieldNumber, Order: 1},
	}
}

func TestDecodeTwoRows(t *testing.T) {
	form := map[string]string{
		"item-0": "paper",
		"qty-0":  "10",
		"item-1": "toner",
		"qty-1":  "2",
	}

	rows := Decode(twoFields(), form)

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["item"] != "paper" || rows[0]["qty"] != "10" {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	if rows[1]["item"] != "toner" || rows[1]["qty"] != "2" {
		t.Fatalf("unexpected second row: %v", rows[1])
	}
}

func TestDecodeStopsAtGap(t *testing.T) {
	form := map[string]string{
		"item-0": "paper",
		"qty-0":  "10",
		"item-2": "toner",
		"qty-2":  "2",
	}

	rows := Decode(twoFields(), form)

	if len(rows) != 1 {
		t.Fatalf("expected gap to truncate to 1 row, got %d", len(rows))
	}
	if rows[0]["item"] != "paper" {
		t.Fatalf("unexpected row: %v", rows[0])
	}
}

func TestDecodeMissingFieldValueIsEmpty(t *testing.T) {
	form := map[string]string{"item-0": "paper"}

	rows := Decode(twoFields(), form)

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["qty"] != "" {
		t.Fatalf("expected empty qty, got %v", rows[0]["qty"])
	}
}

func TestDecodeEmptyFormAndEmptyTemplate(t *testing.T) {
	if rows := Decode(twoFields(), map[string]string{}); rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty row-set, got %v", rows)
	}
	if rows := Decode(nil, map[string]string{"item-0": "x"}); rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty row-set without fields, got %v", rows)
	}
}

func TestDecodeUsesFieldOrderForProbe(t *testing.T) {
	// Fields arrive unsorted; the probe is the field with the lowest
	// persisted order, not the first slice element.
	fields := []model.TemplateField{
		{Name: "qty", Type: model.FieldNumber, Order: 1},
		{Name: "item", Type: model.FieldShortText, Order: 0},
	}
	form := map[string]string{"item-0": "paper"}

	rows := Decode(fields, form)

	if len(rows) != 1 {
		t.Fatalf("expected probe to be item, got %d rows", len(rows))
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	fields := twoFields()
	form := map[string]string{
		"item-0": "paper",
		"qty-0":  "10",
		"item-1": "toner",
		"qty-1":  "2",
	}

	rows := Decode(fields, form)
	encoded := Encode(fields, rows)

	if len(encoded) != len(form) {
		t.Fatalf("expected %d keys, got %d", len(form), len(encoded))
	}
	for k, v := range form {
		if encoded[k] != v {
			t.Fatalf("key %q: expected %q, got %q", k, v, encoded[k])
		}
	}
}

func TestEncodeSkipsCheckedMarker(t *testing.T) {
	rows := model.RowSet{{"item": "paper", "qty": "10", model.RowCheckedKey: true}}

	encoded := Encode(twoFields(), rows)

	if len(encoded) != 2 {
		t.Fatalf("expected 2 keys, got %d: %v", len(encoded), encoded)
	}
}
