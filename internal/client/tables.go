package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/schaubda/psdatahelper/internal/constants"
	pshttp "github.com/schaubda/psdatahelper/internal/http"
	"github.com/schaubda/psdatahelper/pkg/psdata"
)

// GetRecord implements psdata.Client.GetRecord.
func (c *Client) GetRecord(ctx context.Context, table, recordID, projection string) *psdata.RecordSet {
	if !c.guard("GetRecord") {
		return psdata.NewRecordSet()
	}

	if projection == "" {
		projection = "*"
	}

	query := url.Values{"projection": []string{projection}}

	resp, err := c.httpClient.Get(ctx, constants.TablePathPrefix+table+"/"+recordID, query)
	if err != nil {
		c.logError("Request failed", map[string]interface{}{
			"operation": "GetRecord",
			"table":     table,
			"error":     err.Error(),
		})

		return psdata.NewRecordSet()
	}

	if !resp.Success() {
		return psdata.NewRecordSet()
	}

	return c.decodeOrEmpty("GetRecord", table, resp.Body, decodeTableRead)
}

// GetRecords implements psdata.Client.GetRecords.
func (c *Client) GetRecords(ctx context.Context, table, queryExpression string, opts *psdata.TableReadOptions) *psdata.RecordSet {
	if !c.guard("GetRecords") {
		return psdata.NewRecordSet()
	}

	if opts == nil {
		opts = &psdata.TableReadOptions{}
	}

	projection := opts.Projection
	if projection == "" {
		projection = "*"
	}

	query := url.Values{"projection": []string{projection}}

	if queryExpression != "" {
		query.Set("q", queryExpression)
	}

	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}

	if opts.PageSize > 0 {
		query.Set("pagesize", strconv.Itoa(opts.PageSize))
	}

	if opts.Sort != "" {
		query.Set("sort", opts.Sort)

		if opts.SortDescending {
			query.Set("sortdescending", "true")
		}
	}

	resp, err := c.httpClient.Get(ctx, constants.TablePathPrefix+table, query)
	if err != nil {
		c.logError("Request failed", map[string]interface{}{
			"operation": "GetRecords",
			"table":     table,
			"error":     err.Error(),
		})

		return psdata.NewRecordSet()
	}

	if !resp.Success() {
		return psdata.NewRecordSet()
	}

	return c.decodeOrEmpty("GetRecords", table, resp.Body, decodeTableRead)
}

// GetRecordCount implements psdata.Client.GetRecordCount. Failures are logged
// and reported as a count of zero.
func (c *Client) GetRecordCount(ctx context.Context, table, queryExpression string) int {
	if !c.guard("GetRecordCount") {
		return 0
	}

	query := url.Values{}
	if queryExpression != "" {
		query.Set("q", queryExpression)
	}

	resp, err := c.httpClient.Get(ctx, constants.TablePathPrefix+table+"/count", query)
	if err != nil {
		c.logError("Request failed", map[string]interface{}{
			"operation": "GetRecordCount",
			"table":     table,
			"error":     err.Error(),
		})

		return 0
	}

	if !resp.Success() {
		return 0
	}

	count, err := decodeCount(resp.Body)
	if err != nil {
		c.logError("Failed to parse record count", map[string]interface{}{
			"table": table,
			"error": err.Error(),
		})

		return 0
	}

	return count
}

// DeleteRecord implements psdata.Client.DeleteRecord. A record that is
// already gone counts as a successful delete.
func (c *Client) DeleteRecord(ctx context.Context, table, recordID string) bool {
	if !c.guard("DeleteRecord") {
		return false
	}

	resp, err := c.deleteOne(ctx, table, recordID)
	if err != nil {
		c.logError("Request failed", map[string]interface{}{
			"operation": "DeleteRecord",
			"table":     table,
			"error":     err.Error(),
		})

		return false
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return true
	case resp.StatusCode == http.StatusNotFound:
		c.logDebug("Record not found, treating delete as success", map[string]interface{}{
			"table": table,
			"id":    recordID,
		})

		return true
	default:
		c.logAccessRequests(resp)
		c.logError("Failed to delete record", map[string]interface{}{
			"table":  table,
			"id":     recordID,
			"status": resp.StatusCode,
		})

		return false
	}
}

// deleteOne issues a single DELETE. Status logging is always suppressed at
// the dispatch layer because a 404 is not an error for deletes; callers log
// genuine failures themselves.
func (c *Client) deleteOne(ctx context.Context, table, recordID string) (*pshttp.Response, error) {
	return c.httpClient.Do(ctx, &pshttp.Request{
		Method:      http.MethodDelete,
		Path:        constants.TablePathPrefix + table + "/" + recordID,
		SuppressLog: true,
	})
}

// GetStudent implements psdata.Client.GetStudent. The student resource's
// nested objects are flattened into dotted column names.
func (c *Client) GetStudent(ctx context.Context, studentID int) *psdata.RecordSet {
	if !c.guard("GetStudent") {
		return psdata.NewRecordSet()
	}

	resp, err := c.httpClient.Get(ctx, constants.StudentPathPrefix+strconv.Itoa(studentID), nil)
	if err != nil {
		c.logError("Request failed", map[string]interface{}{
			"operation": "GetStudent",
			"id":        studentID,
			"error":     err.Error(),
		})

		return psdata.NewRecordSet()
	}

	if !resp.Success() {
		return psdata.NewRecordSet()
	}

	return c.decodeStudent(resp.Body)
}

// GetStudentExpansions implements psdata.Client.GetStudentExpansions,
// returning the expansion names the server advertises for the student
// resource.
func (c *Client) GetStudentExpansions(ctx context.Context, studentID int) []string {
	if !c.guard("GetStudentExpansions") {
		return nil
	}

	resp, err := c.httpClient.Get(ctx, constants.StudentPathPrefix+strconv.Itoa(studentID), nil)
	if err != nil {
		c.logError("Request failed", map[string]interface{}{
			"operation": "GetStudentExpansions",
			"id":        studentID,
			"error":     err.Error(),
		})

		return nil
	}

	if !resp.Success() {
		return nil
	}

	var parsed struct {
		Student struct {
			Expansions string `json:"@expansions"`
		} `json:"student"`
	}

	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		c.logError("Failed to parse student response", map[string]interface{}{
			"id":    studentID,
			"error": err.Error(),
		})

		return nil
	}

	if parsed.Student.Expansions == "" {
		return nil
	}

	parts := strings.Split(parsed.Student.Expansions, ",")
	expansions := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			expansions = append(expansions, trimmed)
		}
	}

	return expansions
}

func (c *Client) decodeStudent(body []byte) *psdata.RecordSet {
	recordSet := psdata.NewRecordSet()

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	top, err := decodeObject(dec)
	if err != nil {
		c.logError("Failed to parse student response", map[string]interface{}{
			"error": err.Error(),
		})

		return recordSet
	}

	for _, field := range top {
		if field.Name != "student" {
			continue
		}

		student, ok := field.Value.([]orderedField)
		if !ok {
			break
		}

		row := make(psdata.Row)
		flattenInto(recordSet, row, "", student)
		recordSet.Append(row)

		break
	}

	return recordSet
}

// flattenInto walks nested objects, joining names with dots, so that
// {"name":{"first_name":"Jane"}} becomes the column "name.first_name".
// Metadata keys starting with "@" and arrays are skipped.
func flattenInto(recordSet *psdata.RecordSet, row psdata.Row, prefix string, fields []orderedField) {
	for _, field := range fields {
		if strings.HasPrefix(field.Name, "@") {
			continue
		}

		name := field.Name
		if prefix != "" {
			name = prefix + "." + field.Name
		}

		switch value := field.Value.(type) {
		case []orderedField:
			flattenInto(recordSet, row, name, value)
		case []interface{}:
			continue
		default:
			recordSet.AddColumn(name)
			row[name] = value
		}
	}
}

// logAccessRequests re-emits the access directives from a 403 response when
// the dispatch layer was asked to keep quiet, as the delete path always is.
func (c *Client) logAccessRequests(resp *pshttp.Response) {
	if len(resp.AccessRequests) == 0 {
		return
	}

	c.logError("Access denied, add the following to your plugin's access request definition",
		map[string]interface{}{
			"fields": strings.Join(resp.AccessRequests, "\n"),
		})
}

func (c *Client) decodeOrEmpty(operation, table string, body []byte, mode decodeMode) *psdata.RecordSet {
	recordSet, err := decodeRecords(body, mode)
	if err != nil {
		c.logError("Failed to parse response body", map[string]interface{}{
			"operation": operation,
			"table":     table,
			"error":     err.Error(),
		})

		return psdata.NewRecordSet()
	}

	if recordSet.Empty() {
		c.logDebug("No records found", map[string]interface{}{
			"operation": operation,
			"table":     table,
		})
	}

	return recordSet
}
