package rowdata

import (
	"fmt"
	"sort"

	"github.com/prototrack/prototrack/pkg/model"
)

// Decode maps a flat form submission into an ordered row-set. Values
// are keyed "{field}-{index}"; the template's first field is the probe:
// scanning stops at the first index where the probe key is absent, so
// indices must be contiguous from 0. A gap silently truncates the
// row-set (known limitation of the submission format). A missing value
// for a non-probe field decodes to the empty string, not an error.
func Decode(fields []model.TemplateField, form map[string]string) model.RowSet {
	rows := model.RowSet{}
	if len(fields) == 0 {
		return rows
	}

	ordered := make([]model.TemplateField, len(fields))
	copy(ordered, fields)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})

	probe := ordered[0].Name
	for i := 0; ; i++ {
		if _, ok := form[key(probe, i)]; !ok {
			break
		}
		row := model.Row{}
		for _, field := range ordered {
			row[field.Name] = form[key(field.Name, i)]
		}
		rows = append(rows, row)
	}
	return rows
}

// Encode flattens a row-set back into "{field}-{index}" pairs. The
// reserved checked marker is not part of the template schema and is
// never emitted.
func Encode(fields []model.TemplateField, rows model.RowSet) map[string]string {
	form := make(map[string]string, len(rows)*len(fields))
	for i, row := range rows {
		for _, field := range fields {
			value, _ := row[field.Name].(string)
			form[key(field.Name, i)] = value
		}
	}
	return form
}

func key(field string, index int) string {
	return fmt.Sprintf("%s-%d", field, index)
}
