package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RowCheckedKey is the reserved per-row marker toggled by reviewers.
// It is never part of the template schema.
const RowCheckedKey = "_checked"

type Row map[string]interface{}

// Checked treats an absent marker as false.
func (r Row) Checked() bool {
	v, ok := r[RowCheckedKey].(bool)
	return ok && v
}

// RowSet is the ordered sequence of row-records attached to a protocol,
// stored as a single jsonb column. An empty row-set persists as [].
type RowSet []Row

func (rs RowSet) Value() (driver.Value, error) {
	if rs == nil {
		return json.Marshal(RowSet{})
	}
	return json.Marshal(rs)
}

func (rs *RowSet) Scan(value interface{}) error {
	if value == nil {
		*rs = RowSet{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan RowSet: %v", value)
	}
	return json.Unmarshal(bytes, rs)
}

func (RowSet) GormDataType() string {
	return "jsonb"
}
