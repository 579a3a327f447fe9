package cmd

import (
	"context"
	"fmt"
	"os"

	internalApp "github.com/haierkeys/db-backup-service/internal/app"
	"github.com/haierkeys/db-backup-service/internal/service"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	var configPath, in string

	importCommand := &cobra.Command{
		Use:          "import --in FILE [-c config_file]",
		Short:        "Import targets, schedules and settings from a JSON file",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(in)
			if err != nil {
				return errors.Wrap(err, "open import file")
			}
			defer f.Close()

			doc, err := service.DecodeExportDocument(f)
			if err != nil {
				return err
			}

			return withApp(configPath, func(ctx context.Context, a *internalApp.App) error {
				result, err := a.ExportService.Import(ctx, doc)
				if err != nil {
					return err
				}
				fmt.Printf("targets: %d created, %d updated; schedules: %d created, %d skipped\n",
					result.TargetsCreated, result.TargetsUpdated, result.SchedulesCreated, result.SchedulesSkipped)
				for _, w := range result.Warnings {
					fmt.Println("warning:", w)
				}
				return nil
			})
		},
	}

	rootCmd.AddCommand(importCommand)
	fs := importCommand.Flags()
	fs.StringVarP(&configPath, "config", "c", "", "config file")
	fs.StringVarP(&in, "in", "i", "", "export file to import")
	_ = importCommand.MarkFlagRequired("in")
}
