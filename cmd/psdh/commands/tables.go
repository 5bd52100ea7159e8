package commands

import (
	"fmt"

	"github.com/schaubda/psdatahelper/internal/constants"
	"github.com/schaubda/psdatahelper/pkg/psdata"
	"github.com/spf13/cobra"
)

// NewTableCommand creates the table command group.
func NewTableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "table",
		Aliases: []string{"tables"},
		Short:   "Read and write database extension table records",
	}

	cmd.AddCommand(newTableGetCommand())
	cmd.AddCommand(newTableRecordsCommand())
	cmd.AddCommand(newTableCountCommand())
	cmd.AddCommand(newTableInsertCommand())
	cmd.AddCommand(newTableUpdateCommand())
	cmd.AddCommand(newTableDeleteCommand())

	return cmd
}

func newTableGetCommand() *cobra.Command {
	var projection string

	cmd := &cobra.Command{
		Use:   "get TABLE RECORD_ID",
		Short: "Get a single record by ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, logger, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()
			defer logger.Close()

			records := client.GetRecord(cmd.Context(), args[0], args[1], projection)
			reportErrors(logger)

			return renderRecordSet(records)
		},
	}

	cmd.Flags().StringVar(&projection, "projection", "", "comma-separated list of fields to return")

	return cmd
}

func newTableRecordsCommand() *cobra.Command {
	var (
		queryExpr      string
		projection     string
		sortBy         string
		sortDescending bool
		page           int
		pageSize       int
	)

	cmd := &cobra.Command{
		Use:   "records TABLE",
		Short: "List records matching a query expression",
		Long: `List the table records matching the --query expression, for example
--query "grade_level=ge=9;grade_level=le=12".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if queryExpr == "" {
				return constants.ErrQueryExprRequired
			}

			client, logger, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()
			defer logger.Close()

			opts := &psdata.TableReadOptions{
				Projection:     projection,
				Page:           page,
				PageSize:       pageSize,
				Sort:           sortBy,
				SortDescending: sortDescending,
			}

			records := client.GetRecords(cmd.Context(), args[0], queryExpr, opts)
			reportErrors(logger)

			return renderRecordSet(records)
		},
	}

	cmd.Flags().StringVarP(&queryExpr, "query", "q", "", "FIQL query expression (required)")
	cmd.Flags().StringVar(&projection, "projection", "", "comma-separated list of fields to return")
	cmd.Flags().StringVar(&sortBy, "sort", "", "comma-separated list of fields to sort by")
	cmd.Flags().BoolVar(&sortDescending, "descending", false, "reverse the sort order")
	cmd.Flags().IntVar(&page, "page", 0, "1-based page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "records per page")

	return cmd
}

func newTableCountCommand() *cobra.Command {
	var queryExpr string

	cmd := &cobra.Command{
		Use:   "count TABLE",
		Short: "Count records matching a query expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if queryExpr == "" {
				return constants.ErrQueryExprRequired
			}

			client, logger, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()
			defer logger.Close()

			count := client.GetRecordCount(cmd.Context(), args[0], queryExpr)
			reportErrors(logger)

			fmt.Println(count)

			return nil
		},
	}

	cmd.Flags().StringVarP(&queryExpr, "query", "q", "", "FIQL query expression (required)")

	return cmd
}

func newTableInsertCommand() *cobra.Command {
	var rowsFile string

	cmd := &cobra.Command{
		Use:   "insert TABLE",
		Short: "Insert records from a JSON file",
		Long: `Insert every row of the JSON file into the table. The file holds an array
of flat objects, one per record. Each result row carries the columns
response_status_code and response_text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecordsFile(rowsFile)
			if err != nil {
				return err
			}

			client, logger, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()
			defer logger.Close()

			results := client.InsertRecords(cmd.Context(), args[0], records)
			reportErrors(logger)

			return renderRecordSet(results)
		},
	}

	cmd.Flags().StringVarP(&rowsFile, "file", "f", "", "JSON file with the rows to insert (required)")

	return cmd
}

func newTableUpdateCommand() *cobra.Command {
	var (
		rowsFile string
		idColumn string
	)

	cmd := &cobra.Command{
		Use:   "update TABLE",
		Short: "Update records from a JSON file",
		Long: `Update every row of the JSON file, addressed by the value in the
--id-column column. The column must be present in the file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if idColumn == "" {
				return constants.ErrIDColumnRequired
			}

			records, err := readRecordsFile(rowsFile)
			if err != nil {
				return err
			}

			client, logger, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()
			defer logger.Close()

			results := client.UpdateRecords(cmd.Context(), args[0], idColumn, records)
			reportErrors(logger)

			return renderRecordSet(results)
		},
	}

	cmd.Flags().StringVarP(&rowsFile, "file", "f", "", "JSON file with the rows to update (required)")
	cmd.Flags().StringVar(&idColumn, "id-column", "id", "column holding the record identifier")

	return cmd
}

func newTableDeleteCommand() *cobra.Command {
	var (
		rowsFile string
		idColumn string
	)

	cmd := &cobra.Command{
		Use:   "delete TABLE [RECORD_ID]",
		Short: "Delete a record by ID, or records listed in a JSON file",
		Long: `Delete a single record by ID, or, with --file, every row of the JSON
file addressed by the value in the --id-column column. A record that is
already absent counts as deleted.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 && rowsFile == "" {
				return constants.ErrRowsFileRequired
			}

			client, logger, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()
			defer logger.Close()

			if len(args) == 2 {
				deleted := client.DeleteRecord(cmd.Context(), args[0], args[1])
				reportErrors(logger)

				if !deleted {
					return fmt.Errorf("failed to delete record %s from %s", args[1], args[0])
				}

				fmt.Printf("Deleted record %s from %s\n", args[1], args[0])

				return nil
			}

			records, err := readRecordsFile(rowsFile)
			if err != nil {
				return err
			}

			results := client.DeleteRecords(cmd.Context(), args[0], idColumn, records)
			reportErrors(logger)

			return renderRecordSet(results)
		},
	}

	cmd.Flags().StringVarP(&rowsFile, "file", "f", "", "JSON file with the rows to delete")
	cmd.Flags().StringVar(&idColumn, "id-column", "id", "column holding the record identifier")

	return cmd
}
