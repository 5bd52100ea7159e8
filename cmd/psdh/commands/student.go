package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewStudentCommand creates the student command group.
func NewStudentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "student",
		Short: "Read core student records",
	}

	cmd.AddCommand(newStudentGetCommand())
	cmd.AddCommand(newStudentExpansionsCommand())

	return cmd
}

func newStudentGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get STUDENT_ID",
		Short: "Get a student's core record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			studentID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid student ID: %s", args[0])
			}

			client, logger, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()
			defer logger.Close()

			records := client.GetStudent(cmd.Context(), studentID)
			reportErrors(logger)

			return renderRecordSet(records)
		},
	}

	return cmd
}

func newStudentExpansionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expansions STUDENT_ID",
		Short: "List the expansions available on the student resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			studentID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid student ID: %s", args[0])
			}

			client, logger, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()
			defer logger.Close()

			expansions := client.GetStudentExpansions(cmd.Context(), studentID)
			reportErrors(logger)

			for _, expansion := range expansions {
				fmt.Println(expansion)
			}

			return nil
		},
	}

	return cmd
}
