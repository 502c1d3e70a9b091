package model

import (
	"encoding/json"
	"testing"
)

func TestRowSetValueAndScan(t *testing.T) {
	original := RowSet{
		{"item": "paper", "qty": "10"},
		{"item": "toner", "qty": "2", RowCheckedKey: true},
	}

	value, err := original.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	data, ok := value.([]byte)
	if !ok {
		t.Fatalf("expected []byte value, got %T", value)
	}

	var scanned RowSet
	if err := scanned.Scan(data); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	if len(scanned) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(scanned))
	}
	if scanned[0]["item"] != "paper" {
		t.Fatalf("expected first row item paper, got %v", scanned[0]["item"])
	}
	if !scanned[1].Checked() {
		t.Fatalf("expected second row checked")
	}
	if scanned[0].Checked() {
		t.Fatalf("expected first row unchecked when marker absent")
	}
}

func TestRowSetNilValueEncodesEmptyArray(t *testing.T) {
	var rs RowSet

	value, err := rs.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal(value.([]byte), &decoded); err != nil {
		t.Fatalf("unmarshal value error: %v", err)
	}
	if decoded == nil || len(decoded) != 0 {
		t.Fatalf("expected empty array, got %v", decoded)
	}
}

func TestRowSetScanNil(t *testing.T) {
	var rs RowSet
	if err := rs.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if rs == nil || len(rs) != 0 {
		t.Fatalf("expected empty row-set, got %v", rs)
	}
}

func TestRowSetGormDataType(t *testing.T) {
	if (RowSet{}).GormDataType() != "jsonb" {
		t.Fatalf("expected jsonb data type, got %q", (RowSet{}).GormDataType())
	}
}

func TestProtocolStatusValid(t *testing.T) {
	for _, status := range []ProtocolStatus{ProtocolOpen, ProtocolInAnalysis, ProtocolPending, ProtocolFinished, ProtocolArchived} {
		if !status.Valid() {
			t.Fatalf("expected %q to be valid", status)
		}
	}
	if ProtocolStatus("CLOSED").Valid() {
		t.Fatalf("expected unknown status to be invalid")
	}
}

func TestProtocolStatusSettled(t *testing.T) {
	if !ProtocolFinished.Settled() || !ProtocolArchived.Settled() {
		t.Fatalf("expected finished and archived to be settled")
	}
	if ProtocolOpen.Settled() || ProtocolInAnalysis.Settled() || ProtocolPending.Settled() {
		t.Fatalf("active statuses must not be settled")
	}
}
