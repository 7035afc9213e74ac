package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/creditdesk/internal/backend"
	"github.com/JaimeStill/creditdesk/internal/intake"
	"github.com/JaimeStill/creditdesk/pkg/formatting"
)

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status <application-id>",
		Short: "Show the processing status of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(c.output)
			if err != nil {
				return err
			}

			report, err := c.client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Application", report.ApplicationID},
				{"Status", string(report.Status)},
				{"Risk score", strconv.Itoa(report.RiskScore)},
				{"Risk level", orDash(string(report.RiskLevel))},
				{"Final decision", orDash(report.FinalDecision)},
				{"Review", orDash(string(report.ReviewStatus))},
			}
			return printOutput(cmd.OutOrStdout(), format, report, nil, rows)
		},
	}
}

func newDeleteCmd(c *cli) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <application-id>",
		Short: "Permanently delete an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("deleting removes the application and its documents; pass --yes to confirm")
			}
			if err := c.client.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")

	return cmd
}

func newSettingsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Show the risk policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(c.output)
			if err != nil {
				return err
			}

			s, err := c.client.Settings(cmd.Context())
			if err != nil {
				return err
			}
			if s.Policy == nil {
				return errors.New("backend has no risk policy")
			}

			p := s.Policy
			rows := [][]string{
				{"DSR threshold", fmt.Sprintf("%g%%", p.DSRThreshold)},
				{"Min savings rate", fmt.Sprintf("%g%%", p.MinSavingsRate)},
				{"Confidence threshold", fmt.Sprintf("%g%%", p.ConfidenceThreshold)},
				{"Auto-reject gambling", strconv.FormatBool(p.AutoRejectGambling)},
				{"Auto-reject high DSR", strconv.FormatBool(p.AutoRejectHighDSR)},
				{"Max micro business", fmt.Sprintf("RM %.0f", p.MaxLoanMicroBusiness)},
				{"Max personal", fmt.Sprintf("RM %.0f", p.MaxLoanPersonal)},
				{"Max housing", fmt.Sprintf("RM %.0f", p.MaxLoanHousing)},
				{"Max car", fmt.Sprintf("RM %.0f", p.MaxLoanCar)},
				{"Updated", orDash(p.UpdatedAt) + " by " + orDash(p.UpdatedBy)},
			}
			return printOutput(cmd.OutOrStdout(), format, s, nil, rows)
		},
	}
}

func newExportCmd(c *cli) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download every application as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var w io.Writer = cmd.OutOrStdout()
			if file != "" {
				f, err := os.Create(file)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			n, err := c.client.Export(cmd.Context(), w)
			if err != nil {
				return err
			}
			if file != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s to %s\n", formatting.FormatBytes(n, 1), file)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Write to this file instead of stdout; a directory gets a dated file name")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if info, err := os.Stat(file); err == nil && info.IsDir() {
			file = filepath.Join(file, "applications_export_"+time.Now().Format("2006-01-02")+".csv")
		}
		return nil
	}

	return cmd
}

func newBatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file.csv|file.zip>",
		Short: "Submit a batch of applications",
		Long: `batch submits a CSV manifest, or a ZIP archive with a top-level CSV
manifest and the documents it references. The manifest is checked locally
before anything is uploaded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			name := filepath.Base(args[0])
			summary, err := intake.InspectBatch(name, data, int64(len(data)))
			if err != nil {
				return err
			}

			contentType := "text/csv"
			if summary.Kind == "zip" {
				contentType = "application/zip"
			}

			result, err := c.client.UploadBatch(cmd.Context(), backend.UploadFile{
				Filename:    name,
				ContentType: contentType,
				Data:        data,
			})
			if err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("batch rejected: %s", result.Message)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d applications queued\n", result.ProcessedCount, summary.Rows)
			return nil
		},
	}
}
