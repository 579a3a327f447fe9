package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	internalApp "github.com/haierkeys/db-backup-service/internal/app"
	"github.com/haierkeys/db-backup-service/pkg/logger"

	"github.com/radovskyb/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runFlags struct {
	dir     string // 项目根目录
	port    string // 启动端口
	runMode string // 启动模式
	config  string // 指定要使用的配置文件路径
}

func init() {
	runEnv := new(runFlags)

	var runCommand = &cobra.Command{
		Use:   "run [-c config_file] [-d working_dir] [-p port]",
		Short: "Run HTTP service and backup scheduler",
		Run: func(cmd *cobra.Command, args []string) {
			if len(runEnv.dir) > 0 {
				if err := os.Chdir(runEnv.dir); err != nil {
					bootstrapLogger.Error("failed to change the current working directory", zap.Error(err))
				}
				bootstrapLogger.Info("working directory changed", zap.String("dir", runEnv.dir))
			}

			path, err := resolveConfig(runEnv.config, true)
			if err != nil {
				bootstrapLogger.Error("config", zap.Error(err))
				return
			}
			runEnv.config = path

			s, err := NewServer(runEnv)
			if err != nil {
				bootstrapLogger.Error("api service start err", zap.Error(err))
				return
			}

			w := watchConfig(s, runEnv.config)
			defer w.Close()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-quit:
				s.logger.Info("Received shutdown signal, initiating graceful shutdown...")
				s.sc.SendCloseSignal(nil)
			case <-s.sc.CloseSignal():
			}

			// 等待所有关闭处理器完成（包括运行中的备份）
			if err := s.sc.WaitClosed(); err != nil {
				s.logger.Error("Shutdown completed with error", zap.Error(err))
			} else {
				s.logger.Info("Service has been shut down gracefully.")
			}
			_ = s.logger.Sync()
		},
	}

	rootCmd.AddCommand(runCommand)
	fs := runCommand.Flags()
	fs.StringVarP(&runEnv.dir, "dir", "d", "", "run dir")
	fs.StringVarP(&runEnv.port, "port", "p", "", "run port")
	fs.StringVarP(&runEnv.runMode, "mode", "m", "", "run mode")
	fs.StringVarP(&runEnv.config, "config", "c", "", "config file")
}

// watchConfig 监听配置文件写入，热加载日志级别
// 其他配置项需要重启服务后生效
func watchConfig(s *Server, path string) *watcher.Watcher {
	w := watcher.New()

	// 每个监听周期至多接收 1 个事件
	w.SetMaxEvents(1)
	w.FilterOps(watcher.Write)

	go func() {
		for {
			select {
			case event := <-w.Event:
				s.logger.Info("config watcher change", zap.String("event", event.Op.String()), zap.String("file", event.Path))
				cfg, _, err := internalApp.LoadConfig(path)
				if err != nil {
					s.logger.Error("config reload failed", zap.Error(err))
					continue
				}
				level := logger.ParseLevel(cfg.Log.Level)
				if level != s.level.Level() {
					s.level.SetLevel(level)
					s.logger.Warn("log level changed", zap.String("level", level.String()))
				}
			case err := <-w.Error:
				s.logger.Error("config watcher error", zap.Error(err))
			case <-w.Closed:
				return
			}
		}
	}()

	if err := w.Add(path); err != nil {
		s.logger.Error("config watcher file error", zap.Error(err))
		return w
	}

	go func() {
		if err := w.Start(time.Second * 5); err != nil {
			s.logger.Error("config watcher start error", zap.Error(err))
		}
	}()
	return w
}
