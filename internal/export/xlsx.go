// Package export renders work orders as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/mahalnishan/crm/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	OrdersSheet = "Work Orders"
	LinesSheet  = "Lines"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	dateLayout  = "2006-01-02"
)

var (
	orderHeader = []interface{}{"ID", "Title", "Client", "Worker", "Status", "Payment Status", "Scheduled Date", "Completed Date", "Total", "Created At"}
	lineHeader  = []interface{}{"Work Order ID", "Work Order", "Service", "Quantity", "Unit Price", "Line Total"}
)

// WorkOrders writes an XLSX workbook with one sheet of orders and one of their lines.
// Orders are expected to have Client, Worker and Lines.Service preloaded.
func WorkOrders(w io.Writer, orders []model.WorkOrder) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", OrdersSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(LinesSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := f.SetSheetRow(OrdersSheet, "A1", &orderHeader); err != nil {
		return err
	}
	if err := f.SetSheetRow(LinesSheet, "A1", &lineHeader); err != nil {
		return err
	}
	_ = f.SetRowStyle(OrdersSheet, 1, 1, bold)
	_ = f.SetRowStyle(LinesSheet, 1, 1, bold)

	lineRow := 2
	for i, o := range orders {
		row := []interface{}{
			o.ID,
			o.Title,
			clientName(o),
			workerName(o),
			string(o.Status),
			string(o.PaymentStatus),
			formatDate(o.ScheduledDate),
			formatDate(o.CompletedDate),
			o.TotalAmount.InexactFloat64(),
			o.CreatedAt.Format(dateLayout),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(OrdersSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write order %s: %w", o.ID, err)
		}

		for _, l := range o.Lines {
			service := l.ServiceID
			if l.Service != nil {
				service = l.Service.Name
			}
			lrow := []interface{}{
				o.ID,
				o.Title,
				service,
				l.Quantity,
				l.UnitPrice.InexactFloat64(),
				l.TotalPrice.InexactFloat64(),
			}
			cell, _ := excelize.CoordinatesToCellName(1, lineRow)
			if err := f.SetSheetRow(LinesSheet, cell, &lrow); err != nil {
				return fmt.Errorf("failed to write line %s: %w", l.ID, err)
			}
			lineRow++
		}
	}

	if len(orders) > 0 {
		_ = f.SetCellStyle(OrdersSheet, "I2", fmt.Sprintf("I%d", len(orders)+1), money)
	}
	if lineRow > 2 {
		_ = f.SetCellStyle(LinesSheet, "E2", fmt.Sprintf("F%d", lineRow-1), money)
	}
	_ = f.SetColWidth(OrdersSheet, "B", "D", 28)
	_ = f.SetColWidth(LinesSheet, "B", "C", 28)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func clientName(o model.WorkOrder) string {
	if o.Client != nil {
		return o.Client.Name
	}
	return o.ClientID
}

func workerName(o model.WorkOrder) string {
	if o.Worker != nil {
		return o.Worker.Name
	}
	return ""
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
