package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/schaubda/psdatahelper/internal/constants"
	pshttp "github.com/schaubda/psdatahelper/internal/http"
	"github.com/schaubda/psdatahelper/pkg/psdata"
)

// RunQuery implements psdata.Client.RunQuery. The configured query prefix,
// when set, is joined to the name with a dot, so a prefix of
// "com.vendor.attendance" and a name of "daily_totals" runs the PowerQuery
// "com.vendor.attendance.daily_totals". Paging is disabled so the full
// result comes back in one response.
func (c *Client) RunQuery(ctx context.Context, name string, parameters map[string]interface{}) *psdata.RecordSet {
	if !c.guard("RunQuery") {
		return psdata.NewRecordSet()
	}

	fullName := name
	if c.queryPrefix != "" {
		fullName = c.queryPrefix + "." + name
	}

	var body interface{}
	if len(parameters) > 0 {
		body = parameters
	}

	resp, err := c.httpClient.Do(ctx, &pshttp.Request{
		Method:   http.MethodPost,
		Path:     constants.QueryPathPrefix + fullName,
		Query:    url.Values{"pagesize": []string{"0"}},
		Body:     body,
		ReadOnly: true,
	})
	if err != nil {
		c.logError("Request failed", map[string]interface{}{
			"operation": "RunQuery",
			"query":     fullName,
			"error":     err.Error(),
		})

		return psdata.NewRecordSet()
	}

	if !resp.Success() {
		return psdata.NewRecordSet()
	}

	return c.decodeOrEmpty("RunQuery", fullName, resp.Body, decodeQueryResult)
}
