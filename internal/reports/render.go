package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"stockledger/internal/core"
)

// table is the normalized intermediate form every report renders from.
type table struct {
	Columns []string
	Rows    []map[string]any
}

func (w *Worker) buildTable(ctx context.Context, input ExportInput) (table, error) {
	switch input.Report {
	case ReportOrders:
		return w.buildOrdersTable(ctx, input.Filter), nil
	case ReportProducts:
		return w.buildProductsTable(ctx), nil
	case ReportDebts:
		return w.buildDebtsTable(ctx)
	default:
		return table{}, fmt.Errorf("unknown report %q", input.Report)
	}
}

func (w *Worker) buildOrdersTable(ctx context.Context, filter core.OrderFilter) table {
	t := table{Columns: []string{
		"order_id", "customer_id", "customer_name", "status",
		"items", "total", "paid", "remaining", "notes", "created_at",
	}}
	for _, order := range w.svc.ListOrders(ctx, filter) {
		var customerName string
		if customer, ok := w.svc.GetCustomer(ctx, order.CustomerID); ok {
			customerName = customer.FullName
		}
		t.Rows = append(t.Rows, map[string]any{
			"order_id":      order.ID,
			"customer_id":   order.CustomerID,
			"customer_name": customerName,
			"status":        order.Status,
			"items":         len(order.Items),
			"total":         order.TotalPrice(),
			"paid":          order.PaidAmount,
			"remaining":     order.RemainingAmount(),
			"notes":         order.Notes,
			"created_at":    order.CreatedAt,
		})
	}
	return t
}

func (w *Worker) buildProductsTable(ctx context.Context) table {
	t := table{Columns: []string{"product_id", "name", "description", "price", "stock", "created_at"}}
	for _, product := range w.svc.ListProducts(ctx, core.ProductFilter{}) {
		t.Rows = append(t.Rows, map[string]any{
			"product_id":  product.ID,
			"name":        product.Name,
			"description": product.Description,
			"price":       product.Price,
			"stock":       product.Stock,
			"created_at":  product.CreatedAt,
		})
	}
	return t
}

func (w *Worker) buildDebtsTable(ctx context.Context) (table, error) {
	t := table{Columns: []string{"customer_id", "name", "phone", "debt"}}
	for _, customer := range w.svc.ListCustomers(ctx) {
		debt, err := w.svc.CustomerDebt(ctx, customer.ID)
		if err != nil {
			return table{}, fmt.Errorf("debt for %s: %w", customer.ID, err)
		}
		var phone string
		if customer.PhoneNumber != nil {
			phone = *customer.PhoneNumber
		}
		t.Rows = append(t.Rows, map[string]any{
			"customer_id": customer.ID,
			"name":        customer.FullName,
			"phone":       phone,
			"debt":        debt,
		})
	}
	return t, nil
}

func renderTable(format ExportFormat, t table) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		return renderJSON(t)
	case FormatCSV:
		return renderCSV(t)
	default:
		return nil, "", fmt.Errorf("unsupported format %q", format)
	}
}

func renderJSON(t table) ([]byte, string, error) {
	rows := t.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	payload, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return payload, "application/json", nil
}

func renderCSV(t table) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(t.Columns); err != nil {
		return nil, "", err
	}
	for _, row := range t.Rows {
		record := make([]string, len(t.Columns))
		for i, column := range t.Columns {
			record[i] = formatValue(row[column])
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "text/csv", nil
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case string:
		return v
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func payloadReader(payload []byte) io.Reader {
	return bytes.NewReader(payload)
}
