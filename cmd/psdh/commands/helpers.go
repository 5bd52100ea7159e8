// Package commands implements the psdh CLI commands.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/schaubda/psdatahelper/internal/constants"
	"github.com/schaubda/psdatahelper/pkg/psclient"
	"github.com/schaubda/psdatahelper/pkg/psdata"
	"github.com/schaubda/psdatahelper/pkg/pslog"
	"github.com/spf13/viper"
)

// OutputFormat constants for the --output flag.
const (
	OutputFormatTable = "table"
	OutputFormatJSON  = "json"
	OutputFormatYAML  = "yaml"
)

// CreateClient builds a client from viper configuration. The returned logger
// must be closed by the caller after the client is done.
func CreateClient(ctx context.Context) (psdata.Client, *pslog.Logger, error) {
	server := viper.GetString("server")
	if server == "" {
		return nil, nil, constants.ErrServerNotConfigured
	}

	level := pslog.LevelInfo
	if viper.GetBool("verbose") {
		level = pslog.LevelDebug
	}

	logger := pslog.New("psdh", pslog.WithLevel(level))

	config := &psdata.Config{
		ServerAddress: server,
		Plugin:        viper.GetString("plugin"),
		ClientID:      viper.GetString("client-id"),
		ClientSecret:  viper.GetString("client-secret"),
		AccessToken:   viper.GetString("token"),
		QueryPrefix:   viper.GetString("query-prefix"),
		Debug:         viper.GetBool("verbose"),
		Logger:        logger,
	}

	client, err := psclient.New(ctx, config)
	if err != nil {
		return nil, nil, fmt.Errorf("creating client: %w", err)
	}

	return client, logger, nil
}

// renderRecordSet writes a record set to stdout in the configured output
// format.
func renderRecordSet(records *psdata.RecordSet) error {
	output := viper.GetString("output")

	switch output {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(recordSetRows(records))
	case OutputFormatYAML:
		return renderRecordSetYAML(records)
	case OutputFormatTable, "":
		return renderRecordSetTable(records)
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnsupportedOutput, output)
	}
}

func renderRecordSetTable(records *psdata.RecordSet) error {
	if records.Empty() {
		fmt.Println("No records found")

		return nil
	}

	columns := records.Columns()
	header := make([]any, len(columns))
	for i, column := range columns {
		header[i] = column
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header(header...)

	for i := 0; i < records.Len(); i++ {
		row := records.Row(i)
		cells := make([]any, len(columns))

		for j, column := range columns {
			if value, ok := row[column]; ok && value != nil {
				cells[j] = fmt.Sprintf("%v", value)
			} else {
				cells[j] = ""
			}
		}

		_ = table.Append(cells...)
	}

	_ = table.Render()

	fmt.Printf("\nTotal: %d records\n", records.Len())

	return nil
}

// recordSetRows converts a record set into plain maps for serialization.
// json.Number values are kept so numbers round-trip without float drift.
func recordSetRows(records *psdata.RecordSet) []map[string]any {
	rows := make([]map[string]any, 0, records.Len())

	for i := 0; i < records.Len(); i++ {
		row := records.Row(i)
		plain := make(map[string]any, len(row))

		for column, value := range row {
			plain[column] = value
		}

		rows = append(rows, plain)
	}

	return rows
}

// parseParameters parses repeated key=value flag values into a map.
func parseParameters(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	parameters := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidParameter, pair)
		}

		parameters[key] = value
	}

	return parameters, nil
}

// readRecordsFile loads a JSON file containing an array of flat objects into a
// record set. Numbers are decoded as json.Number so identifiers survive
// unchanged.
func readRecordsFile(path string) (*psdata.RecordSet, error) {
	if path == "" {
		return nil, constants.ErrRowsFileRequired
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rows file: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var rows []map[string]any
	if err := decoder.Decode(&rows); err != nil {
		return nil, fmt.Errorf("parsing rows file: %w", err)
	}

	records := psdata.NewRecordSet()
	for _, row := range rows {
		records.Append(psdata.Row(row))
	}

	return records, nil
}

// reportErrors prints a short notice when the session logged any errors so
// scripted callers notice degraded results.
func reportErrors(logger *pslog.Logger) {
	if logger.HasErrors() {
		fmt.Fprintln(os.Stderr, "Some operations reported errors; rerun with --verbose for details")
	}
}
