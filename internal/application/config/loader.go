// config/loader.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
)

// Loader 从单个 yaml/json 文件加载 AppConfig。biz_config 小节走二次解码:
// 先落进 interface{}, 再 marshal 回去灌进业务指针, 业务结构体里的默认值
// 只会被文件里出现的键覆盖。
type Loader struct {
	env        string
	configPath string
	bizConfig  any
}

func NewLoader(env string, configPath string) *Loader {
	l := &Loader{env: env, configPath: configPath}
	if l.env == "" {
		l.env = consts.ENV_DEVELOPMENT
	}
	if l.configPath == "" {
		l.configPath = consts.DEFAULT_CONFIG_PATH
	}
	return l
}

// SetBizConfig 注入业务配置指针 (例如 &BizConfig{}), 必须在 LoadConfig 之前。
// 直接把指针提前塞进 interface{} 字段在 yaml.v3 下不生效, 子树会被换成 map,
// 所以这里单独存一份, 解析完再二次解码。
func (l *Loader) SetBizConfig(b any) {
	if b == nil {
		return
	}
	if reflect.TypeOf(b).Kind() != reflect.Ptr {
		panic("SetBizConfig expects a pointer, e.g. &BizConfig{}")
	}
	l.bizConfig = b
}

func (l *Loader) LoadConfig() (*AppConfig, error) {
	raw, err := os.ReadFile(l.configPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.configPath, err)
	}

	ext := strings.ToLower(filepath.Ext(l.configPath))
	var cfg AppConfig
	if err := unmarshalByExt(ext, raw, &cfg); err != nil {
		return nil, err
	}

	switch {
	case l.bizConfig != nil && cfg.BizConfig != nil:
		if err := l.decodeBizSection(ext, cfg.BizConfig, l.bizConfig); err != nil {
			return nil, fmt.Errorf("decode biz_config: %w", err)
		}
		cfg.BizConfig = l.bizConfig
	case l.bizConfig != nil:
		// 文件里没有 biz_config, 业务默认值原样生效
		cfg.BizConfig = l.bizConfig
	}

	return &cfg, nil
}

func (l *Loader) decodeBizSection(ext string, raw any, target any) error {
	marshal := json.Marshal
	if ext == ".yaml" || ext == ".yml" {
		marshal = yaml.Marshal
	}
	buf, err := marshal(raw)
	if err != nil {
		return fmt.Errorf("re-encode biz_config: %w", err)
	}
	return unmarshalByExt(ext, buf, target)
}

func unmarshalByExt(ext string, data []byte, target any) error {
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("parse json config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q, want .yaml/.yml/.json", ext)
	}
	return nil
}
