package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/mahalnishan/crm/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkOrders(t *testing.T) {
	scheduled := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	orders := []model.WorkOrder{
		{
			ID:            "wo-1",
			Title:         "Fix sink",
			ClientID:      "c1",
			Client:        &model.Client{Name: "Jane Doe"},
			Status:        model.OrderPending,
			PaymentStatus: model.PaymentPaid,
			ScheduledDate: &scheduled,
			TotalAmount:   decimal.RequireFromString("90.00"),
			CreatedAt:     time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
			Lines: []model.WorkOrderLine{
				{ID: "l1", ServiceID: "s1", Service: &model.Service{Name: "Sink repair"}, Quantity: 2,
					UnitPrice: decimal.RequireFromString("45.00"), TotalPrice: decimal.RequireFromString("90.00")},
			},
		},
		{
			ID:            "wo-2",
			Title:         "Paint fence",
			ClientID:      "c2",
			Worker:        &model.Worker{Name: "Bob"},
			Status:        model.OrderCompleted,
			PaymentStatus: model.PaymentPending,
			TotalAmount:   decimal.Zero,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WorkOrders(&buf, orders))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{OrdersSheet, LinesSheet}, f.GetSheetList())

	rows, err := f.GetRows(OrdersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Title", rows[0][1])
	assert.Equal(t, []string{"wo-1", "Fix sink", "Jane Doe", "", "Pending", "Paid", "2026-05-04", "", "90.00", "2026-05-01"}, rows[1])
	assert.Equal(t, "c2", rows[2][2])
	assert.Equal(t, "Bob", rows[2][3])

	lines, err := f.GetRows(LinesSheet)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"wo-1", "Fix sink", "Sink repair", "2", "45.00", "90.00"}, lines[1])
}

func TestWorkOrders_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WorkOrders(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(OrdersSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
