// components/logging/config.go
package logging

import (
	"fmt"
	"time"
)

// LoggingConfig 日志组件配置。Output 可取 stdout/stderr/file, 也可以直接写一个文件路径。
type LoggingConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	Level        string        `yaml:"level" json:"level"`
	Format       string        `yaml:"format" json:"format"`
	Output       string        `yaml:"output" json:"output"`
	FileConfig   *FileConfig   `yaml:"file_config,omitempty" json:"file_config,omitempty"`
	RotateConfig *RotateConfig `yaml:"rotate_config,omitempty" json:"rotate_config,omitempty"`
}

// FileConfig Output=file 时的落盘位置; Filename 是前缀, 实际文件名还会拼 .log 与轮转戳。
type FileConfig struct {
	Dir      string `yaml:"dir" json:"dir"`
	Filename string `yaml:"filename" json:"filename"`
}

// RotateConfig 日志轮转配置
// RotateInterval > 0 时使用按时间间隔轮转; 否则退回 lumberjack 按大小轮转。
type RotateConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	RotateInterval time.Duration `yaml:"rotate_interval" json:"rotate_interval"`
	MaxAge         time.Duration `yaml:"max_age" json:"max_age"`
	CleanupEnabled bool          `yaml:"cleanup_enabled" json:"cleanup_enabled"`
}

func (cfg *LoggingConfig) applyDefaults() {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	switch cfg.Output {
	case "":
		cfg.Output = "stdout"
	case "stdout", "stderr":
	default:
		// file 或自定义路径都需要落盘位置
		if cfg.FileConfig == nil {
			cfg.FileConfig = &FileConfig{Dir: "./logs", Filename: "app"}
		}
	}
}

func (cfg *LoggingConfig) validate() error {
	rc := cfg.RotateConfig
	if rc == nil || !rc.Enabled {
		return nil
	}
	if rc.MaxAge < 0 {
		return fmt.Errorf("logging.rotate_config.max_age must be >= 0")
	}
	return nil
}
