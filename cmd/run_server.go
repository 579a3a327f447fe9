package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	internalApp "github.com/haierkeys/db-backup-service/internal/app"
	"github.com/haierkeys/db-backup-service/internal/dao"
	"github.com/haierkeys/db-backup-service/internal/routers"
	"github.com/haierkeys/db-backup-service/pkg/logger"
	"github.com/haierkeys/db-backup-service/pkg/safe_close"
	"github.com/haierkeys/db-backup-service/pkg/validator"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
	"go.uber.org/zap"
)

// DefaultShutdownTimeout 默认关闭超时时间
const DefaultShutdownTimeout = 30 * time.Second

type Server struct {
	logger            *zap.Logger
	level             zap.AtomicLevel // 配置热加载时调整
	config            *internalApp.AppConfig
	ut                *ut.UniversalTranslator
	httpServer        *http.Server
	privateHttpServer *http.Server
	sc                *safe_close.SafeClose
	app               *internalApp.App
}

// checkSecurityConfig 未设置或仍为占位 token 时输出警告
func checkSecurityConfig(cfg *internalApp.AppConfig, lg *zap.Logger) {
	switch cfg.Security.AuthToken {
	case "":
		lg.Warn("security.auth-token is empty, API authentication is disabled")
	case placeholderAuthToken:
		fmt.Println()
		fmt.Println(strings.Repeat("=", 60))
		fmt.Println("SECURITY WARNING: Using the default auth token!")
		fmt.Println()
		fmt.Println("Please modify 'security.auth-token' in config.yaml")
		fmt.Println("Generate a secure token with:")
		fmt.Println("  openssl rand -hex 16")
		fmt.Println(strings.Repeat("=", 60))
		fmt.Println()
		lg.Warn("Using default auth token - please change security.auth-token in config.yaml")
	}
}

// openApp loads the config and builds a ready App. Every command goes through it.
// openApp 加载配置，初始化日志、存储目录、数据库与 App Container
func openApp(configPath string) (*internalApp.App, zap.AtomicLevel, error) {
	appConfig, configRealpath, err := internalApp.LoadConfig(configPath)
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to load config: %w", err)
	}

	lg, level, err := logger.NewAtomicLogger(logger.Config{
		Level:      appConfig.Log.Level,
		File:       appConfig.Log.File,
		Production: appConfig.Log.Production,
	})
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("initLogger: %w", err)
	}
	lg.Info("config loaded", zap.String("path", configRealpath))

	if err := initStorageWithConfig(appConfig); err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("initStorage: %w", err)
	}

	db, err := dao.NewDBEngineWithConfig(appConfig.GetDatabaseConfig(), lg)
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("initDatabase: %w", err)
	}

	a, err := internalApp.NewApp(appConfig, lg, db)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to create app container: %w", err)
	}
	return a, level, nil
}

func NewServer(runEnv *runFlags) (*Server, error) {

	a, level, err := openApp(runEnv.config)
	if err != nil {
		return nil, err
	}
	appConfig := a.Config()

	// 确定运行模式
	runMode := runEnv.runMode
	if len(runMode) <= 0 {
		runMode = appConfig.Server.RunMode
	}
	if len(runMode) > 0 {
		gin.SetMode(runMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if len(runEnv.port) > 0 {
		appConfig.Server.HttpPort = runEnv.port
	}

	s := &Server{
		logger: a.Logger(),
		level:  level,
		config: appConfig,
		sc:     safe_close.NewSafeClose(),
		app:    a,
	}

	checkSecurityConfig(appConfig, s.logger)

	_, uni, err := validator.Setup(routers.ValidationRules()...)
	if err != nil {
		return nil, fmt.Errorf("initValidator: %w", err)
	}
	s.ut = uni

	// 写入默认设置，按设置自动启动调度引擎
	if err := a.Bootstrap(context.Background()); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	// 维护任务：历史清理、僵尸记录对账
	manager := a.NewMaintenanceManager(s.sc)
	if err := manager.RegisterTasks(); err != nil {
		s.logger.Error("failed to register tasks", zap.Error(err))
	} else {
		manager.Start()
	}

	s.logger.Warn(fmt.Sprintf("%s v%s\nGit: %s\nBuildTime: %s\n", internalApp.Name, internalApp.Version, internalApp.GitTag, internalApp.BuildTime))

	if httpAddr := appConfig.Server.HttpPort; len(httpAddr) > 0 {
		s.logger.Warn("api_router", zap.String("config.server.HttpPort", httpAddr))
		s.httpServer = &http.Server{
			Addr:           httpAddr,
			Handler:        routers.NewRouter(s.app, s.ut),
			ReadTimeout:    time.Duration(appConfig.Server.ReadTimeout) * time.Second,
			WriteTimeout:   time.Duration(appConfig.Server.WriteTimeout) * time.Second,
			MaxHeaderBytes: 1 << 20,
		}
		s.serve("api service", s.httpServer)
	}

	if httpAddr := appConfig.Server.PrivateHttpListen; len(httpAddr) > 0 {
		s.logger.Info("api_router", zap.String("config.server.PrivateHttpListen", httpAddr))
		s.privateHttpServer = &http.Server{
			Addr:           httpAddr,
			Handler:        routers.NewPrivateRouterWithLogger(runMode, a.Registry, s.logger),
			ReadTimeout:    time.Duration(appConfig.Server.ReadTimeout) * time.Second,
			WriteTimeout:   time.Duration(appConfig.Server.WriteTimeout) * time.Second,
			MaxHeaderBytes: 1 << 20,
		}
		s.serve("private api service", s.privateHttpServer)
	}

	// App Container 的优雅关闭：停止调度、等待运行中的备份、关闭数据库
	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()
		<-closeSignal
		ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()

		if err := s.app.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown app container", zap.Error(err))
		} else {
			s.logger.Info("App container shutdown gracefully")
		}
	})

	return s, nil
}

func (s *Server) serve(name string, srv *http.Server) {
	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()
		errChan := make(chan error, 1)
		go func() {
			errChan <- srv.ListenAndServe()
		}()
		select {
		case err := <-errChan:
			s.logger.Error(name+" err", zap.Error(err))
			s.sc.SendCloseSignal(err)
		case <-closeSignal:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				s.logger.Error(name+" shutdown error", zap.Error(err))
			}
		}
	})
}

// initStorageWithConfig 创建日志、数据库、密钥与默认备份目录
func initStorageWithConfig(cfg *internalApp.AppConfig) error {
	dirs := []string{
		cfg.Backup.DefaultPath,
		filepath.Dir(cfg.Security.KeyFile),
	}
	if cfg.Log.File != "" {
		dirs = append(dirs, filepath.Dir(cfg.Log.File))
	}
	if cfg.Database.Type == "" || cfg.Database.Type == "sqlite" {
		dirs = append(dirs, filepath.Dir(cfg.Database.Path))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0754); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetApp gets App Container
func (s *Server) GetApp() *internalApp.App {
	return s.app
}

// GetConfig gets app configuration
func (s *Server) GetConfig() *internalApp.AppConfig {
	return s.config
}
