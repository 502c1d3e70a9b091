package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/prototrack/prototrack/pkg/model"
)

// WritePDF renders a single protocol as a printable document: header,
// routing metadata, the dynamic data rows, and the full audit history.
func WritePDF(w io.Writer, p *model.Protocol) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(fmt.Sprintf("Protocol %s", p.Number)), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Protocol %s", p.Number)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Status: %s", p.Status)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for _, line := range metadataLines(p) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, tr(line.label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, tr(line.value), "", "L", false)
	}

	if p.Description != "" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, "Description", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(p.Description), "", "L", false)
	}

	if len(p.Rows) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, "Data Rows", "", 1, "L", false, 0, "")
		fields := rowFieldNames(p)
		for i, row := range p.Rows {
			marker := "[ ]"
			if row.Checked() {
				marker = "[x]"
			}
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s Row %d", marker, i+1)), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			for _, field := range fields {
				value, ok := row[field]
				if !ok {
					continue
				}
				pdf.MultiCell(0, 5, tr(fmt.Sprintf("    %s: %v", field, value)), "", "L", false)
			}
		}
	}

	if len(p.History) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, "History", "", 1, "L", false, 0, "")
		for i := range p.History {
			entry := &p.History[i]
			actor := ""
			if entry.Actor != nil {
				actor = entry.Actor.Name
			}
			pdf.SetFont("Helvetica", "B", 9)
			pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s  %s", entry.OccurredAt.Format(time.RFC3339), actor)), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, tr(entry.Text), "", "L", false)
			pdf.Ln(1)
		}
	}

	return pdf.Output(w)
}

type metadataLine struct {
	label string
	value string
}

func metadataLines(p *model.Protocol) []metadataLine {
	lines := []metadataLine{{"Subject", p.Subject}}
	if p.CreatedBy != nil {
		lines = append(lines, metadataLine{"Created by", p.CreatedBy.Name})
	}
	if p.DestinationDepartment != nil {
		lines = append(lines, metadataLine{"Department", p.DestinationDepartment.Name})
	}
	if p.DestinationUser != nil {
		lines = append(lines, metadataLine{"Assigned to", p.DestinationUser.Name})
	}
	if p.DueDate != nil {
		lines = append(lines, metadataLine{"Due date", p.DueDate.Format("2006-01-02")})
	}
	if p.SupplierName != "" {
		supplier := p.SupplierName
		if p.SupplierCode != "" {
			supplier = fmt.Sprintf("%s (%s)", p.SupplierName, p.SupplierCode)
		}
		lines = append(lines, metadataLine{"Supplier", supplier})
	}
	lines = append(lines, metadataLine{"Created at", p.CreatedAt.Format(time.RFC3339)})
	return lines
}

// rowFieldNames prefers the template's field order; without a template
// the union of row keys in name order is the best remaining choice.
func rowFieldNames(p *model.Protocol) []string {
	if p.Template != nil && len(p.Template.Fields) > 0 {
		names := make([]string, 0, len(p.Template.Fields))
		for _, field := range p.Template.Fields {
			names = append(names, field.Name)
		}
		return names
	}

	seen := map[string]bool{}
	for _, row := range p.Rows {
		for key := range row {
			if key != model.RowCheckedKey {
				seen[key] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for key := range seen {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}
