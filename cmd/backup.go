package cmd

import (
	"context"
	"fmt"

	internalApp "github.com/haierkeys/db-backup-service/internal/app"
	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/pkg/convert"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// withApp opens the App for a one-shot command and always shuts it down afterwards
// withApp 一次性命令使用的 App 生命周期
func withApp(configPath string, fn func(ctx context.Context, a *internalApp.App) error) error {
	path, err := resolveConfig(configPath, false)
	if err != nil {
		return err
	}
	a, _, err := openApp(path)
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := a.Shutdown(sctx); err != nil {
			a.Logger().Error("failed to shutdown app container", zap.Error(err))
		}
		_ = a.Logger().Sync()
	}()

	if _, err := a.SettingService.EnsureDefault(ctx); err != nil {
		return errors.Wrap(err, "ensure settings")
	}
	return fn(ctx, a)
}

// findTarget 按 ID 或名称查找目标
func findTarget(ctx context.Context, a *internalApp.App, ref string) (*domain.Target, error) {
	if id, err := convert.StrTo(ref).Int64(); err == nil && id > 0 {
		t, err := a.TargetRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	t, err := a.TargetRepo.GetByName(ctx, ref)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.Errorf("backup target %q not found", ref)
	}
	return t, nil
}

func init() {
	var (
		configPath string
		targetRef  string
	)

	backupCommand := &cobra.Command{
		Use:          "backup --target NAME|ID [-c config_file]",
		Short:        "Run one manual backup and wait for it to finish",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, func(ctx context.Context, a *internalApp.App) error {
				target, err := findTarget(ctx, a, targetRef)
				if err != nil {
					return err
				}

				if !a.Runner.Execute(ctx, target, true) {
					return errors.Errorf("a backup of %s is already running", target.Name)
				}
				a.Runner.Wait()

				runs, err := a.RunRepo.List(ctx, domain.RunFilter{TargetID: target.ID, Page: 1, PageSize: 1})
				if err != nil {
					return errors.Wrap(err, "read backup result")
				}
				if len(runs) == 0 {
					return errors.New("backup finished without a run record")
				}
				run := runs[0]
				fmt.Printf("%s: %s (%.1fs)\n", target.Name, run.Status, run.DurationSeconds)
				if run.FilePath != "" {
					fmt.Printf("file: %s\n", run.FilePath)
				}
				if run.Status != domain.RunStatusSuccess {
					return errors.Errorf("backup failed: %s", run.Message)
				}
				return nil
			})
		},
	}

	rootCmd.AddCommand(backupCommand)
	fs := backupCommand.Flags()
	fs.StringVarP(&configPath, "config", "c", "", "config file")
	fs.StringVarP(&targetRef, "target", "t", "", "target name or id")
	_ = backupCommand.MarkFlagRequired("target")
}
