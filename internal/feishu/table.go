package feishu

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	// OperatorIs is an exact match condition.
	OperatorIs = "is"

	defaultPageSize = 100
	maxPageSize     = 500
)

// TableInfo is the table metadata returned by GetTableInfo.
type TableInfo struct {
	TableID  string `json:"table_id"`
	Name     string `json:"name"`
	Revision int    `json:"revision"`
}

// Field is a column definition.
type Field struct {
	FieldID   string `json:"field_id"`
	FieldName string `json:"field_name"`
	Type      int    `json:"type"`
	IsPrimary bool   `json:"is_primary,omitempty"`
}

// Record is a remote row. RecordID is the only reference bitmark keeps.
type Record struct {
	RecordID string         `json:"record_id"`
	Fields   map[string]any `json:"fields"`
}

// Table performs operations on one remote table.
type Table struct {
	client *Client
	target Target
}

// Target returns the table the operations are scoped to.
func (t *Table) Target() Target { return t.target }

func (t *Table) path(suffix string) string {
	return "/bitable/v1/apps/" + url.PathEscape(t.target.BaseID) +
		"/tables/" + url.PathEscape(t.target.TableID) + suffix
}

func (t *Table) call(ctx context.Context, op, method, suffix string, query url.Values, body, out any) error {
	return t.client.authorized(ctx, t.target.Credentials, op, method, t.path(suffix), query, body, out)
}

// GetTableInfo fetches the table metadata. Used to verify a connection.
func (t *Table) GetTableInfo(ctx context.Context) (TableInfo, error) {
	var data struct {
		Table TableInfo `json:"table"`
	}
	if err := t.call(ctx, "get table", http.MethodGet, "", nil, nil, &data); err != nil {
		return TableInfo{}, err
	}
	return data.Table, nil
}

// ListFields returns the column definitions.
func (t *Table) ListFields(ctx context.Context) ([]Field, error) {
	var data struct {
		Items []Field `json:"items"`
	}
	q := url.Values{"page_size": {strconv.Itoa(defaultPageSize)}}
	if err := t.call(ctx, "list fields", http.MethodGet, "/fields", q, nil, &data); err != nil {
		return nil, err
	}
	return data.Items, nil
}

type condition struct {
	FieldName string   `json:"field_name"`
	Operator  string   `json:"operator"`
	Value     []string `json:"value"`
}

type filter struct {
	Conjunction string      `json:"conjunction"`
	Conditions  []condition `json:"conditions"`
}

// Search returns the records whose field matches value. An empty operator
// means OperatorIs.
func (t *Table) Search(ctx context.Context, field, value, operator string) ([]Record, error) {
	if operator == "" {
		operator = OperatorIs
	}
	body := struct {
		Filter filter `json:"filter"`
	}{
		Filter: filter{
			Conjunction: "and",
			Conditions: []condition{
				{FieldName: field, Operator: operator, Value: []string{value}},
			},
		},
	}

	var data struct {
		Items []Record `json:"items"`
	}
	if err := t.call(ctx, "search records", http.MethodPost, "/records/search", nil, body, &data); err != nil {
		return nil, err
	}
	return data.Items, nil
}

type recordBody struct {
	Fields map[string]any `json:"fields"`
}

// Create inserts one record. Fields are passed through FormatFields.
func (t *Table) Create(ctx context.Context, fields map[string]any) (Record, error) {
	var data struct {
		Record Record `json:"record"`
	}
	body := recordBody{Fields: FormatFields(fields)}
	if err := t.call(ctx, "create record", http.MethodPost, "/records", nil, body, &data); err != nil {
		return Record{}, err
	}
	return data.Record, nil
}

// BatchCreate inserts several records in one call.
func (t *Table) BatchCreate(ctx context.Context, rows []map[string]any) ([]Record, error) {
	records := make([]recordBody, 0, len(rows))
	for _, r := range rows {
		records = append(records, recordBody{Fields: FormatFields(r)})
	}
	body := struct {
		Records []recordBody `json:"records"`
	}{Records: records}

	var data struct {
		Records []Record `json:"records"`
	}
	if err := t.call(ctx, "batch create records", http.MethodPost, "/records/batch_create", nil, body, &data); err != nil {
		return nil, err
	}
	return data.Records, nil
}

// Update replaces the given fields of an existing record.
func (t *Table) Update(ctx context.Context, recordID string, fields map[string]any) (Record, error) {
	if recordID == "" {
		return Record{}, fmt.Errorf("update record: empty record id")
	}
	var data struct {
		Record Record `json:"record"`
	}
	body := recordBody{Fields: FormatFields(fields)}
	if err := t.call(ctx, "update record", http.MethodPut, "/records/"+url.PathEscape(recordID), nil, body, &data); err != nil {
		return Record{}, err
	}
	return data.Record, nil
}

// Delete removes a record.
func (t *Table) Delete(ctx context.Context, recordID string) error {
	if recordID == "" {
		return fmt.Errorf("delete record: empty record id")
	}
	return t.call(ctx, "delete record", http.MethodDelete, "/records/"+url.PathEscape(recordID), nil, nil, nil)
}

// Page is one page of a record listing.
type Page struct {
	Items     []Record `json:"items"`
	PageToken string   `json:"page_token"`
	HasMore   bool     `json:"has_more"`
	Total     int      `json:"total"`
}

// ListPage fetches one page of records starting at pageToken.
func (t *Table) ListPage(ctx context.Context, pageSize int, pageToken string) (Page, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	q := url.Values{"page_size": {strconv.Itoa(pageSize)}}
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}

	var page Page
	if err := t.call(ctx, "list records", http.MethodGet, "/records", q, nil, &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

// ListAll walks every page in server order.
func (t *Table) ListAll(ctx context.Context, pageSize int) ([]Record, error) {
	var (
		all   []Record
		token string
	)
	for {
		page, err := t.ListPage(ctx, pageSize, token)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if !page.HasMore || page.PageToken == "" || page.PageToken == token {
			return all, nil
		}
		token = page.PageToken
	}
}
