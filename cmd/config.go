package cmd

import (
	"os"
	"strings"

	"github.com/haierkeys/db-backup-service/pkg/fileurl"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// placeholderAuthToken 默认配置中的占位 token，自动创建配置时替换为随机值
const placeholderAuthToken = "db-backup-Auth-Token"

// configCandidates 未指定 -c 时依次查找
var configCandidates = []string{
	"config/config-dev.yaml",
	"config.yaml",
	"config/config.yaml",
}

// resolveConfig returns the config file to use. When none exists and create is
// true it writes the embedded default with a random auth token.
// resolveConfig 查找配置文件，create 为 true 且不存在时写入默认配置
func resolveConfig(path string, create bool) (string, error) {
	if path != "" {
		return path, nil
	}
	for _, p := range configCandidates {
		if fileurl.IsExist(p) {
			return p, nil
		}
	}
	if !create {
		return "", errors.New("config file not found, use -c to specify one")
	}

	bootstrapLogger.Warn("config file not found, creating default config")
	path = "config/config.yaml"

	content := strings.Replace(configDefault, placeholderAuthToken, strings.ReplaceAll(uuid.NewString(), "-", ""), 1)

	if err := fileurl.CreatePath(path, os.ModePerm); err != nil {
		return "", errors.Wrap(err, "config file auto create")
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", errors.Wrap(err, "config file auto create writing")
	}
	bootstrapLogger.Info("config file auto create successfully", zap.String("path", path))
	return path, nil
}
