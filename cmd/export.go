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
	var configPath, out string

	exportCommand := &cobra.Command{
		Use:          "export --out FILE [-c config_file]",
		Short:        "Export targets, schedules and settings to a JSON file",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, func(ctx context.Context, a *internalApp.App) error {
				doc, err := a.ExportService.Export(ctx)
				if err != nil {
					return err
				}

				w := os.Stdout
				if out != "" && out != "-" {
					f, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
					if err != nil {
						return errors.Wrap(err, "open export file")
					}
					defer f.Close()
					w = f
				}
				if err := service.EncodeExportDocument(w, doc); err != nil {
					return errors.Wrap(err, "write export file")
				}
				if w != os.Stdout {
					fmt.Fprintf(os.Stderr, "exported %d targets, %d schedules to %s\n", len(doc.Targets), len(doc.Schedules), out)
				}
				return nil
			})
		},
	}

	rootCmd.AddCommand(exportCommand)
	fs := exportCommand.Flags()
	fs.StringVarP(&configPath, "config", "c", "", "config file")
	fs.StringVarP(&out, "out", "o", "", "output file, stdout when empty")
}
