package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/schaubda/psdatahelper/internal/constants"
	pshttp "github.com/schaubda/psdatahelper/internal/http"
	"github.com/schaubda/psdatahelper/pkg/psdata"
)

// bulkState tracks what has happened so far in a bulk operation. After the
// first failing row, per-row logging is suppressed so a large import does
// not flood the log with identical lines. Directive logging is tracked
// separately: the first 403 of the batch gets its access requests logged
// exactly once, even when an earlier generic failure already armed the
// suppression.
type bulkState struct {
	operation            string
	table                string
	failures             int
	accessRequestsNeeded bool
	suppressLog          bool
}

// record writes a row's outcome into the result's status columns.
func (s *bulkState) record(result *psdata.RecordSet, index int, statusCode int, text string) {
	result.SetValue(index, psdata.ColumnResponseStatusCode, json.Number(strconv.Itoa(statusCode)))
	result.SetValue(index, psdata.ColumnResponseText, text)
}

func (s *bulkState) fail() {
	s.failures++
	s.suppressLog = true
}

// finish emits the aggregate failure line. When the failures were access
// denials the per-field directives already tell the operator what to do, so
// the aggregate line is skipped.
func (s *bulkState) finish(c *Client) {
	if s.failures == 0 || s.accessRequestsNeeded {
		return
	}

	c.logError(fmt.Sprintf("%d rows failed", s.failures), map[string]interface{}{
		"operation": s.operation,
		"table":     s.table,
	})
}

// prepare clones the input and registers the status columns. A nil or empty
// input short-circuits the operation entirely.
func (c *Client) prepareBulk(operation, table string, records *psdata.RecordSet) (*psdata.RecordSet, bool) {
	if records == nil || records.Empty() {
		c.logDebug("No records to process", map[string]interface{}{
			"operation": operation,
			"table":     table,
		})

		return psdata.NewRecordSet(), false
	}

	result := records.Clone()
	result.AddColumn(psdata.ColumnResponseStatusCode)
	result.AddColumn(psdata.ColumnResponseText)

	return result, true
}

// InsertRecords implements psdata.Client.InsertRecords. Each row is posted
// individually; the returned set is the input annotated with the response
// status and body per row.
func (c *Client) InsertRecords(ctx context.Context, table string, records *psdata.RecordSet) *psdata.RecordSet {
	if !c.guard("InsertRecords") {
		return psdata.NewRecordSet()
	}

	result, ok := c.prepareBulk("InsertRecords", table, records)
	if !ok {
		return result
	}

	state := &bulkState{operation: "InsertRecords", table: table}

	for i := 0; i < result.Len(); i++ {
		suppressed := state.suppressLog

		resp, err := c.httpClient.Do(ctx, &pshttp.Request{
			Method:      http.MethodPost,
			Path:        constants.TablePathPrefix + table,
			Body:        encodeRow(table, result.Row(i), ""),
			SuppressLog: suppressed,
		})
		if err != nil {
			c.recordTransportFailure(state, result, i, err)

			continue
		}

		state.record(result, i, resp.StatusCode, string(resp.Body))

		if resp.StatusCode != http.StatusOK {
			state.noteFailure(c, resp, !suppressed)
		}
	}

	state.finish(c)

	return result
}

// UpdateRecords implements psdata.Client.UpdateRecords. Each row is written
// with a PUT to its record id. When the fallback reinsert mode is enabled, a
// failed PUT is retried once as a delete and insert, which is how servers
// without PUT support on custom tables are updated.
func (c *Client) UpdateRecords(ctx context.Context, table, idColumn string, records *psdata.RecordSet) *psdata.RecordSet {
	if !c.guard("UpdateRecords") {
		return psdata.NewRecordSet()
	}

	if idColumn == "" || records == nil || !records.HasColumn(idColumn) {
		c.logError("ID column is missing from the record set", map[string]interface{}{
			"operation": "UpdateRecords",
			"table":     table,
			"id_column": idColumn,
		})

		return psdata.NewRecordSet()
	}

	result, ok := c.prepareBulk("UpdateRecords", table, records)
	if !ok {
		return result
	}

	state := &bulkState{operation: "UpdateRecords", table: table}

	for i := 0; i < result.Len(); i++ {
		recordID, ok := rowID(result.Row(i), idColumn)
		if !ok {
			state.record(result, i, 0, "row has no value for the id column")
			state.fail()

			continue
		}

		suppressed := state.suppressLog

		resp, err := c.httpClient.Do(ctx, &pshttp.Request{
			Method:      http.MethodPut,
			Path:        constants.TablePathPrefix + table + "/" + recordID,
			Body:        encodeRow(table, result.Row(i), idColumn),
			SuppressLog: suppressed,
		})
		if err != nil {
			c.recordTransportFailure(state, result, i, err)

			continue
		}

		if resp.StatusCode != http.StatusOK && c.fallbackReinsert && resp.StatusCode != http.StatusForbidden {
			resp, err = c.reinsert(ctx, table, recordID, result.Row(i), suppressed)
			if err != nil {
				c.recordTransportFailure(state, result, i, err)

				continue
			}
		}

		state.record(result, i, resp.StatusCode, string(resp.Body))

		if resp.StatusCode != http.StatusOK {
			state.noteFailure(c, resp, !suppressed)
		}
	}

	state.finish(c)

	return result
}

// reinsert deletes the record and posts it again, keeping the id column in
// the body so the record is recreated under the same id.
func (c *Client) reinsert(ctx context.Context, table, recordID string, row psdata.Row, suppressLog bool) (*pshttp.Response, error) {
	if _, err := c.deleteOne(ctx, table, recordID); err != nil {
		return nil, err
	}

	return c.httpClient.Do(ctx, &pshttp.Request{
		Method:      http.MethodPost,
		Path:        constants.TablePathPrefix + table,
		Body:        encodeRow(table, row, ""),
		SuppressLog: suppressLog,
	})
}

// DeleteRecords implements psdata.Client.DeleteRecords. Rows whose records
// are already gone are treated as successful deletes.
func (c *Client) DeleteRecords(ctx context.Context, table, idColumn string, records *psdata.RecordSet) *psdata.RecordSet {
	if !c.guard("DeleteRecords") {
		return psdata.NewRecordSet()
	}

	if idColumn == "" || records == nil || !records.HasColumn(idColumn) {
		c.logError("ID column is missing from the record set", map[string]interface{}{
			"operation": "DeleteRecords",
			"table":     table,
			"id_column": idColumn,
		})

		return psdata.NewRecordSet()
	}

	result, ok := c.prepareBulk("DeleteRecords", table, records)
	if !ok {
		return result
	}

	state := &bulkState{operation: "DeleteRecords", table: table}

	for i := 0; i < result.Len(); i++ {
		recordID, ok := rowID(result.Row(i), idColumn)
		if !ok {
			state.record(result, i, 0, "row has no value for the id column")
			state.fail()

			continue
		}

		resp, err := c.deleteOne(ctx, table, recordID)
		if err != nil {
			c.recordTransportFailure(state, result, i, err)

			continue
		}

		state.record(result, i, resp.StatusCode, string(resp.Body))

		switch resp.StatusCode {
		case http.StatusNoContent:
		case http.StatusNotFound:
			c.logDebug("Record not found, treating delete as success", map[string]interface{}{
				"table": table,
				"id":    recordID,
			})
		default:
			// The delete dispatch is always suppressed, so nothing was
			// logged yet for this response.
			state.noteFailure(c, resp, false)
		}
	}

	state.finish(c)

	return result
}

// noteFailure records a failed row. logged tells whether the dispatcher
// already emitted log lines for this response; when it stayed quiet and this
// is the batch's first 403, the access directives are logged here so an
// earlier unrelated failure cannot swallow them.
func (s *bulkState) noteFailure(c *Client, resp *pshttp.Response, logged bool) {
	if len(resp.AccessRequests) > 0 {
		if !s.accessRequestsNeeded && !logged {
			c.logAccessRequests(resp)
		}

		s.accessRequestsNeeded = true
	}

	s.fail()
}

func (c *Client) recordTransportFailure(state *bulkState, result *psdata.RecordSet, index int, err error) {
	if !state.suppressLog {
		c.logError("Request failed", map[string]interface{}{
			"operation": state.operation,
			"table":     state.table,
			"error":     err.Error(),
		})
	}

	state.record(result, index, 0, err.Error())
	state.fail()
}

// rowID renders the row's id value for use in a URL path. Absent and nil
// values have no usable id.
func rowID(row psdata.Row, idColumn string) (string, bool) {
	value, ok := row[idColumn]
	if !ok || value == nil {
		return "", false
	}

	switch typed := value.(type) {
	case string:
		if typed == "" {
			return "", false
		}

		return typed, true
	case json.Number:
		return typed.String(), true
	default:
		return fmt.Sprintf("%v", typed), true
	}
}
