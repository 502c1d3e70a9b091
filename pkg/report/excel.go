package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/prototrack/prototrack/pkg/model"
	"github.com/prototrack/prototrack/pkg/store/postgres"
)

const exportSheet = "Protocols"

var exportHeader = []string{
	"Number", "Subject", "Status", "Created By", "Department",
	"Assigned To", "Due Date", "Supplier", "Created At",
}

// Export writes the caller's visible protocols, after filtering, as an
// .xlsx workbook. The same scope and filter as the list screen apply.
func (s *Service) Export(ctx context.Context, w io.Writer, scope postgres.Scope, filter postgres.ProtocolFilter) error {
	protocols, err := s.protocols.ListAll(ctx, scope, filter)
	if err != nil {
		return err
	}
	return WriteWorkbook(w, protocols)
}

func WriteWorkbook(w io.Writer, protocols []model.Protocol) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, cell, title); err != nil {
			return err
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for i := range protocols {
		row := exportRow(&protocols[i])
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(exportSheet, cell, value); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "I", 22); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func exportRow(p *model.Protocol) []interface{} {
	createdBy := ""
	if p.CreatedBy != nil {
		createdBy = p.CreatedBy.Name
	}
	department := ""
	if p.DestinationDepartment != nil {
		department = p.DestinationDepartment.Name
	}
	assignedTo := ""
	if p.DestinationUser != nil {
		assignedTo = p.DestinationUser.Name
	}
	dueDate := ""
	if p.DueDate != nil {
		dueDate = p.DueDate.Format("2006-01-02")
	}
	supplier := p.SupplierName
	if supplier != "" && p.SupplierCode != "" {
		supplier = fmt.Sprintf("%s (%s)", p.SupplierName, p.SupplierCode)
	}

	return []interface{}{
		p.Number,
		p.Subject,
		string(p.Status),
		createdBy,
		department,
		assignedTo,
		dueDate,
		supplier,
		p.CreatedAt.Format(time.RFC3339),
	}
}
