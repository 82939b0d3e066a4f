package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"scrutin/internal/logging"
	"scrutin/internal/schema"
	"scrutin/internal/services"
)

type valueRange struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values"`
}

type appendResponse struct {
	Updates struct {
		UpdatedRange string `json:"updatedRange"`
		UpdatedRows  int    `json:"updatedRows"`
	} `json:"updates"`
}

type batchUpdateRequest struct {
	ValueInputOption string       `json:"valueInputOption"`
	Data             []valueRange `json:"data"`
}

type batchClearRequest struct {
	Ranges []string `json:"ranges"`
}

// ReadRequest selects the rows of one table visible to an access context.
type ReadRequest struct {
	Table schema.Table
	// Scope names the access context. Requests with different scopes never
	// share in-flight calls or cache entries, so every distinct Keep filter
	// needs its own Scope.
	Scope string
	// Keep, when set, drops rows for which it returns false.
	Keep func(schema.Row) bool
}

// Update is one row replacement in a batch.
type Update struct {
	Handle Handle
	Values schema.Row
}

// Read returns the data rows of a table. Identical concurrent reads share
// one request, and results are cached for the configured TTL.
func (c *Client) Read(ctx context.Context, req ReadRequest) ([]Row, error) {
	if _, ok := schema.Lookup(req.Table); !ok {
		return nil, services.Wrap(services.ErrValidation, "sheets", "read", fmt.Sprintf("unknown table %q", req.Table), nil)
	}
	key := cacheKey{table: req.Table, scope: req.Scope}
	rows, gen, ok := c.cached(key)
	if ok {
		c.logger.Debug("store cache hit", logging.Table(req.Table))
		return rows, nil
	}
	flightKey := fmt.Sprintf("%s\x00%d\x00%s", req.Table, gen, req.Scope)
	value, err, shared := c.flights.Do(flightKey, func() (any, error) {
		rows, err := c.fetch(ctx, req.Table)
		if err != nil {
			return nil, err
		}
		if req.Keep != nil {
			kept := rows[:0]
			for _, row := range rows {
				if req.Keep(row.Values) {
					kept = append(kept, row)
				}
			}
			rows = kept
		}
		c.store(key, gen, rows)
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("store read coalesced", logging.Table(req.Table))
	}
	return cloneRows(value.([]Row)), nil
}

func (c *Client) fetch(ctx context.Context, table schema.Table) ([]Row, error) {
	query := url.Values{}
	query.Set("majorDimension", "ROWS")
	query.Set("valueRenderOption", "UNFORMATTED_VALUE")
	var resp valueRange
	if err := c.do(ctx, "read "+string(table), http.MethodGet, c.endpoint(valuesPath(dataRange(table)), query), nil, &resp); err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(resp.Values))
	for offset, cells := range resp.Values {
		rows = append(rows, Row{
			Handle: Handle{table: table, offset: offset},
			Values: toRow(cells),
		})
	}
	return rows, nil
}

// Append adds rows at the end of a table and returns their handles.
func (c *Client) Append(ctx context.Context, table schema.Table, rows []schema.Row) ([]Handle, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if err := checkWidth(table, rows...); err != nil {
		return nil, err
	}
	c.Invalidate(table)
	defer c.Invalidate(table)

	query := url.Values{}
	query.Set("valueInputOption", "RAW")
	query.Set("insertDataOption", "INSERT_ROWS")
	payload := valueRange{Range: headerRange(table), MajorDimension: "ROWS", Values: fromRows(rows)}
	var resp appendResponse
	path := valuesPath(headerRange(table)) + ":append"
	if err := c.do(ctx, "append "+string(table), http.MethodPost, c.endpoint(path, query), payload, &resp); err != nil {
		return nil, err
	}
	start, err := parseStartRow(resp.Updates.UpdatedRange)
	if err != nil || start <= headerRows {
		return nil, services.Wrap(services.ErrRemoteClient, "sheets", "append "+string(table), "unexpected updated range "+strconv.Quote(resp.Updates.UpdatedRange), err)
	}
	handles := make([]Handle, len(rows))
	for i := range rows {
		handles[i] = Handle{table: table, offset: start - headerRows - 1 + i}
	}
	return handles, nil
}

// Update replaces the row at h.
func (c *Client) Update(ctx context.Context, h Handle, values schema.Row) error {
	if err := checkHandles(h); err != nil {
		return err
	}
	if err := checkWidth(h.table, values); err != nil {
		return err
	}
	c.Invalidate(h.table)
	defer c.Invalidate(h.table)

	query := url.Values{}
	query.Set("valueInputOption", "RAW")
	payload := valueRange{Range: rowRange(h), MajorDimension: "ROWS", Values: fromRows([]schema.Row{values})}
	return c.do(ctx, "update "+h.String(), http.MethodPut, c.endpoint(valuesPath(rowRange(h)), query), payload, nil)
}

// BatchUpdate replaces many rows in one call. The store applies the batch
// atomically; updates may span tables.
func (c *Client) BatchUpdate(ctx context.Context, updates []Update) error {
	if len(updates) == 0 {
		return nil
	}
	tables := make([]schema.Table, 0, len(updates))
	data := make([]valueRange, 0, len(updates))
	for _, u := range updates {
		if err := checkHandles(u.Handle); err != nil {
			return err
		}
		if err := checkWidth(u.Handle.table, u.Values); err != nil {
			return err
		}
		tables = append(tables, u.Handle.table)
		data = append(data, valueRange{
			Range:          rowRange(u.Handle),
			MajorDimension: "ROWS",
			Values:         fromRows([]schema.Row{u.Values}),
		})
	}
	c.Invalidate(tables...)
	defer c.Invalidate(tables...)

	payload := batchUpdateRequest{ValueInputOption: "RAW", Data: data}
	return c.do(ctx, "batch update", http.MethodPost, c.endpoint("/values:batchUpdate", nil), payload, nil)
}

// Clear blanks the rows at handles. Offsets of later rows do not shift.
func (c *Client) Clear(ctx context.Context, handles []Handle) error {
	if len(handles) == 0 {
		return nil
	}
	if err := checkHandles(handles...); err != nil {
		return err
	}
	tables := make([]schema.Table, 0, len(handles))
	ranges := make([]string, 0, len(handles))
	for _, h := range handles {
		tables = append(tables, h.table)
		ranges = append(ranges, rowRange(h))
	}
	c.Invalidate(tables...)
	defer c.Invalidate(tables...)

	return c.do(ctx, "batch clear", http.MethodPost, c.endpoint("/values:batchClear", nil), batchClearRequest{Ranges: ranges}, nil)
}

func checkHandles(handles ...Handle) error {
	for _, h := range handles {
		if !h.Valid() {
			return services.Wrap(services.ErrValidation, "sheets", "write", "row handle did not come from the store", nil)
		}
		if _, ok := schema.Lookup(h.table); !ok {
			return services.Wrap(services.ErrValidation, "sheets", "write", fmt.Sprintf("unknown table %q", h.table), nil)
		}
	}
	return nil
}

func checkWidth(table schema.Table, rows ...schema.Row) error {
	s, ok := schema.Lookup(table)
	if !ok {
		return services.Wrap(services.ErrValidation, "sheets", "write", fmt.Sprintf("unknown table %q", table), nil)
	}
	for _, row := range rows {
		if len(row) > s.Width() {
			return services.Wrap(services.ErrValidation, "sheets", "write "+string(table),
				fmt.Sprintf("row has %d cells, table has %d columns", len(row), s.Width()), nil)
		}
	}
	return nil
}

func fromRows(rows []schema.Row) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		out[i] = cells
	}
	return out
}

func toRow(cells []any) schema.Row {
	row := make(schema.Row, len(cells))
	for i, cell := range cells {
		switch v := cell.(type) {
		case nil:
		case string:
			row[i] = v
		case json.Number:
			row[i] = v.String()
		case bool:
			if v {
				row[i] = "TRUE"
			} else {
				row[i] = "FALSE"
			}
		default:
			row[i] = fmt.Sprint(v)
		}
	}
	return row
}
