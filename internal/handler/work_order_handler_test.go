package handler_test

import (
	"bytes"
	"errors"
	"net/http"
	"testing"

	"github.com/mahalnishan/crm/internal/export"
	"github.com/mahalnishan/crm/internal/model"
	"github.com/mahalnishan/crm/internal/testutil"
	"github.com/mahalnishan/crm/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func seedCatalog(t *testing.T, a *testAPI) {
	t.Helper()
	testutil.SeedClient(t, a.db, a.tenantID, "c1", "Jane Doe")
	testutil.SeedClient(t, a.db, a.tenantID, "c2", "Harbor Cafe")
	testutil.SeedWorker(t, a.db, a.tenantID, "w1", "Bob")
	testutil.SeedService(t, a.db, a.tenantID, "s1", "Sink repair", "45.00")
	testutil.SeedService(t, a.db, a.tenantID, "s2", "Drain cleaning", "30.00")
}

func TestWorkOrderLifecycle(t *testing.T) {
	a := newTestAPI(t)
	seedCatalog(t, a)

	rec := a.do(t, http.MethodPost, "/api/work-orders", map[string]interface{}{
		"title":          "Fix sink",
		"client_id":      "c1",
		"scheduled_date": "2026-06-01",
		"lines":          []map[string]interface{}{{"service_id": "s1", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created model.WorkOrder
	decode(t, rec, &created)
	assert.Equal(t, "90.00", created.TotalAmount.StringFixed(2))
	assert.Equal(t, 1, created.Version)
	require.Len(t, created.Lines, 1)
	assert.Equal(t, "90.00", created.Lines[0].TotalPrice.StringFixed(2))
	require.NotNil(t, created.ScheduledDate)
	assert.Equal(t, "2026-06-01", created.ScheduledDate.Format("2006-01-02"))

	rec = a.do(t, http.MethodGet, "/api/work-orders/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched model.WorkOrder
	decode(t, rec, &fetched)
	assert.Equal(t, "Jane Doe", fetched.Client.Name)
	assert.Equal(t, "Sink repair", fetched.Lines[0].Service.Name)

	update := map[string]interface{}{
		"title":          "Fix sink and drain",
		"client_id":      "c1",
		"worker_id":      "w1",
		"status":         "Completed",
		"payment_status": "Paid",
		"version":        1,
		"lines": []map[string]interface{}{
			{"service_id": "s1", "quantity": 1},
			{"service_id": "s2", "quantity": 2},
		},
	}
	rec = a.do(t, http.MethodPut, "/api/work-orders/"+created.ID, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated model.WorkOrder
	decode(t, rec, &updated)
	assert.Equal(t, "105.00", updated.TotalAmount.StringFixed(2))
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, model.OrderCompleted, updated.Status)

	// same base version again is stale
	rec = a.do(t, http.MethodPut, "/api/work-orders/"+created.ID, update)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodDelete, "/api/work-orders/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/work-orders/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	types := []string{}
	for _, e := range a.events.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{events.WorkOrderCreated, events.WorkOrderUpdated, events.WorkOrderDeleted}, types)
}

func TestCreateWorkOrder_Errors(t *testing.T) {
	a := newTestAPI(t)
	seedCatalog(t, a)

	tests := []struct {
		name      string
		body      interface{}
		wantCode  int
		wantField string
	}{
		{
			name:      "no lines",
			body:      map[string]interface{}{"title": "Fix sink", "client_id": "c1", "lines": []interface{}{}},
			wantCode:  http.StatusBadRequest,
			wantField: "lines",
		},
		{
			name:      "blank title",
			body:      map[string]interface{}{"title": " ", "client_id": "c1", "lines": []map[string]interface{}{{"service_id": "s1", "quantity": 1}}},
			wantCode:  http.StatusBadRequest,
			wantField: "title",
		},
		{
			name:      "unknown client",
			body:      map[string]interface{}{"title": "Fix sink", "client_id": "c404", "lines": []map[string]interface{}{{"service_id": "s1", "quantity": 1}}},
			wantCode:  http.StatusNotFound,
			wantField: "client",
		},
		{
			name:      "unknown service",
			body:      map[string]interface{}{"title": "Fix sink", "client_id": "c1", "lines": []map[string]interface{}{{"service_id": "s404", "quantity": 1}}},
			wantCode:  http.StatusNotFound,
			wantField: "service",
		},
		{
			name:      "bad date",
			body:      map[string]interface{}{"title": "Fix sink", "client_id": "c1", "scheduled_date": "next week", "lines": []map[string]interface{}{{"service_id": "s1", "quantity": 1}}},
			wantCode:  http.StatusBadRequest,
			wantField: "scheduled_date",
		},
		{
			name:     "malformed body",
			body:     "not an object",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, "/api/work-orders", tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantField != "" {
				var body struct {
					Field string `json:"field"`
				}
				decode(t, rec, &body)
				assert.Equal(t, tt.wantField, body.Field)
			}
		})
	}

	assert.Zero(t, testutil.Count(t, a.db.Unscoped(), &model.WorkOrder{}))
}

func TestCreateWorkOrder_PersistenceFailure(t *testing.T) {
	a := newTestAPI(t)
	seedCatalog(t, a)

	require.NoError(t, a.db.Callback().Create().Before("gorm:create").Register("test:fail_lines", func(tx *gorm.DB) {
		if tx.Statement.Table == "work_order_services" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	rec := a.do(t, http.MethodPost, "/api/work-orders", map[string]interface{}{
		"title":     "Fix sink",
		"client_id": "c1",
		"lines":     []map[string]interface{}{{"service_id": "s1", "quantity": 1}},
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to save work order", errorMessage(t, rec))
	assert.Zero(t, testutil.Count(t, a.db.Unscoped(), &model.WorkOrder{}))
}

func TestCreateWorkOrder_UsesTenantDefaults(t *testing.T) {
	a := newTestAPI(t)
	seedCatalog(t, a)

	require.NoError(t, a.db.Model(&model.Tenant{}).Where("id = ?", a.tenantID).
		Updates(map[string]interface{}{"default_order_status": "In Progress", "default_payment_status": "Partial"}).Error)

	rec := a.do(t, http.MethodPost, "/api/work-orders", map[string]interface{}{
		"title":     "Fix sink",
		"client_id": "c1",
		"lines":     []map[string]interface{}{{"service_id": "s1", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created model.WorkOrder
	decode(t, rec, &created)
	assert.Equal(t, model.OrderInProgress, created.Status)
	assert.Equal(t, model.PaymentPartial, created.PaymentStatus)
}

func TestUpdateWorkOrder_Missing(t *testing.T) {
	a := newTestAPI(t)
	seedCatalog(t, a)

	rec := a.do(t, http.MethodPut, "/api/work-orders/nope", map[string]interface{}{
		"title":     "Fix sink",
		"client_id": "c1",
		"lines":     []map[string]interface{}{{"service_id": "s1", "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func createOrder(t *testing.T, a *testAPI, title, clientID, serviceID string, qty int) model.WorkOrder {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/work-orders", map[string]interface{}{
		"title":     title,
		"client_id": clientID,
		"lines":     []map[string]interface{}{{"service_id": serviceID, "quantity": qty}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order model.WorkOrder
	decode(t, rec, &order)
	return order
}

func TestListWorkOrders(t *testing.T) {
	a := newTestAPI(t)
	seedCatalog(t, a)

	createOrder(t, a, "Fix sink", "c1", "s1", 1)
	createOrder(t, a, "Unblock drain", "c2", "s2", 1)
	createOrder(t, a, "Replace tap", "c2", "s1", 2)

	var list struct {
		WorkOrders []model.WorkOrder `json:"work_orders"`
		Pagination struct {
			Total      int64 `json:"total"`
			TotalPages int   `json:"total_pages"`
		} `json:"pagination"`
	}

	rec := a.do(t, http.MethodGet, "/api/work-orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	assert.Equal(t, int64(3), list.Pagination.Total)
	assert.Len(t, list.WorkOrders, 3)

	t.Run("search by client name", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/work-orders?search=harbor", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &list)
		assert.Equal(t, int64(2), list.Pagination.Total)
		for _, o := range list.WorkOrders {
			require.NotNil(t, o.Client)
			assert.Equal(t, "Harbor Cafe", o.Client.Name)
		}
	})

	t.Run("search by title", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/work-orders?search=SINK", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &list)
		require.Len(t, list.WorkOrders, 1)
		assert.Equal(t, "Fix sink", list.WorkOrders[0].Title)
	})

	t.Run("pagination", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/work-orders?limit=2&page=2", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &list)
		assert.Len(t, list.WorkOrders, 1)
		assert.Equal(t, 2, list.Pagination.TotalPages)
	})

	t.Run("status filter", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/work-orders?status=Completed", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &list)
		assert.Empty(t, list.WorkOrders)
	})
}

func TestExportWorkOrders(t *testing.T) {
	a := newTestAPI(t)
	seedCatalog(t, a)

	createOrder(t, a, "Fix sink", "c1", "s1", 2)
	createOrder(t, a, "Unblock drain", "c2", "s2", 1)

	rec := a.do(t, http.MethodGet, "/api/work-orders/export?search=sink", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.OrdersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Fix sink", rows[1][1])
	assert.Equal(t, "Jane Doe", rows[1][2])

	lines, err := f.GetRows(export.LinesSheet)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Sink repair", lines[1][2])
	assert.Equal(t, "2", lines[1][3])
}
