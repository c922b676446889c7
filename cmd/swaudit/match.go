package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daimoniac/swaudit/internal/inventory"
	"github.com/daimoniac/swaudit/internal/report"
)

var (
	flagInventory    string
	flagPDF          string
	flagOutput       string
	flagPage         int
	flagFailOnPolicy bool
)

func init() {
	matchCmd.Flags().StringVarP(&flagInventory, "inventory", "i", "", "inventory file (.json, .yaml or .yml)")
	matchCmd.Flags().StringVar(&flagPDF, "pdf", "", "also write a PDF report to this path")
	matchCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write the JSON report to this path instead of stdout")
	matchCmd.Flags().IntVar(&flagPage, "page", 1, "product table page")
	matchCmd.Flags().BoolVar(&flagFailOnPolicy, "fail-on-policy", false, "exit non-zero when the policy fails")
	_ = matchCmd.MarkFlagRequired("inventory")
	rootCmd.AddCommand(matchCmd)
}

var matchCmd = &cobra.Command{
	Use:   "match --inventory file",
	Short: "audit one inventory file and print the report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		c, err := newComponents(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer c.Close()

		records, err := inventory.LoadFile(c.fs, flagInventory)
		if err != nil {
			return err
		}

		rep, err := c.newService(nil).RunInventory(ctx, records, flagPage)
		if err != nil {
			return err
		}

		if flagOutput == "" {
			if err := report.WriteJSON(os.Stdout, rep); err != nil {
				return err
			}
		} else {
			f, err := c.fs.Create(flagOutput)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", flagOutput, err)
			}
			err = report.WriteJSON(f, rep)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", flagOutput, err)
			}
		}

		if flagPDF != "" {
			data, err := report.NewPDFExporter().Export(rep)
			if err != nil {
				return err
			}
			if err := report.WriteFile(c.fs, flagPDF, data); err != nil {
				return err
			}
			logger.Info("PDF report written", "path", flagPDF)
		}

		if flagFailOnPolicy && rep.Policy != nil && !rep.Policy.Passed {
			return fmt.Errorf("policy failed: %s", rep.Policy.Reason)
		}
		return nil
	},
}
