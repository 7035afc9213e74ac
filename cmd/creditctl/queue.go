package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newListCmd(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent applications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(c.output)
			if err != nil {
				return err
			}

			list, err := c.client.Applications(cmd.Context(), limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "Name", "Type", "Amount", "Score", "Status", "Review", "Date"}
			rows := make([][]string, 0, len(list))
			for _, a := range list {
				rows = append(rows, []string{
					a.ID,
					truncate(a.Name, 30),
					orDash(a.Type),
					orDash(a.Amount),
					strconv.Itoa(a.Score),
					a.Status,
					orDash(string(a.ReviewStatus)),
					orDash(a.Date),
				})
			}
			return printOutput(cmd.OutOrStdout(), format, list, headers, rows)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of applications")

	return cmd
}

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(c.output)
			if err != nil {
				return err
			}

			stats, err := c.client.Stats(cmd.Context())
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Total", strconv.Itoa(stats.Total)},
				{"Avg processing time", fmt.Sprintf("%.1fs", stats.AvgProcessingTime)},
			}
			return printOutput(cmd.OutOrStdout(), format, stats, nil, rows)
		},
	}
}
