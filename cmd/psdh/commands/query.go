package commands

import (
	"github.com/spf13/cobra"
)

// NewQueryCommand creates the query command group.
func NewQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run named PowerQueries",
		Long:  "Run PowerQueries published by a plugin and display their records",
	}

	cmd.AddCommand(newQueryRunCommand())

	return cmd
}

func newQueryRunCommand() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "run QUERY_NAME",
		Short: "Run a PowerQuery",
		Long: `Run the named PowerQuery and display its records. The configured query
prefix, when set, is prepended to the name. Parameters are passed with
repeated --param key=value flags.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := parseParameters(params)
			if err != nil {
				return err
			}

			client, logger, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()
			defer logger.Close()

			records := client.RunQuery(cmd.Context(), args[0], parameters)
			reportErrors(logger)

			return renderRecordSet(records)
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "query parameter as key=value (repeatable)")

	return cmd
}
