package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/redis"
	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
)

type bizStub struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Workers  int    `yaml:"workers" json:"workers"`
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestNewLoaderDefaults(t *testing.T) {
	l := NewLoader("", "")
	if l.env != consts.ENV_DEVELOPMENT {
		t.Fatalf("env = %q, want %q", l.env, consts.ENV_DEVELOPMENT)
	}
	if l.configPath != consts.DEFAULT_CONFIG_PATH {
		t.Fatalf("configPath = %q, want %q", l.configPath, consts.DEFAULT_CONFIG_PATH)
	}
}

func TestLoadConfigYAMLFillsBizPointer(t *testing.T) {
	path := writeConfig(t, "app.yaml", `
app_info:
  app_name: demo
  env: test
biz_config:
  endpoint: https://api.example.com
`)
	l := NewLoader(consts.ENV_TEST, path)
	biz := &bizStub{Workers: 4}
	l.SetBizConfig(biz)

	cfg, err := l.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.APPInfo == nil || cfg.APPInfo.APPName != "demo" {
		t.Fatalf("app_info not parsed: %+v", cfg.APPInfo)
	}
	if cfg.BizConfig != any(biz) {
		t.Fatalf("BizConfig should be replaced with the injected pointer")
	}
	if biz.Endpoint != "https://api.example.com" {
		t.Fatalf("endpoint = %q", biz.Endpoint)
	}
	// 文件里没写 workers, 默认值要保留
	if biz.Workers != 4 {
		t.Fatalf("workers = %d, want default 4", biz.Workers)
	}
}

func TestLoadConfigWithoutBizSectionKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "app.yaml", "app_info:\n  app_name: demo\n")
	l := NewLoader(consts.ENV_TEST, path)
	biz := &bizStub{Endpoint: "fallback", Workers: 2}
	l.SetBizConfig(biz)

	cfg, err := l.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	got, ok := cfg.BizConfig.(*bizStub)
	if !ok {
		t.Fatalf("BizConfig type = %T", cfg.BizConfig)
	}
	if got.Endpoint != "fallback" || got.Workers != 2 {
		t.Fatalf("defaults clobbered: %+v", got)
	}
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, "app.json", `{"app_info":{"app_name":"demo"},"biz_config":{"workers":9}}`)
	l := NewLoader(consts.ENV_TEST, path)
	biz := &bizStub{}
	l.SetBizConfig(biz)

	if _, err := l.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if biz.Workers != 9 {
		t.Fatalf("workers = %d, want 9", biz.Workers)
	}
}

func TestLoadConfigRejectsUnknownExtension(t *testing.T) {
	path := writeConfig(t, "app.toml", "app_name = \"demo\"\n")
	_, err := NewLoader(consts.ENV_TEST, path).LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "unsupported config format") {
		t.Fatalf("err = %v", err)
	}
}

func TestSetBizConfigRejectsNonPointer(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for non-pointer biz config")
		}
	}()
	NewLoader(consts.ENV_TEST, "x.yaml").SetBizConfig(bizStub{})
}

func TestValidateEnabledSectionPrerequisites(t *testing.T) {
	base := func() *AppConfig {
		return &AppConfig{APPInfo: &APPInfo{APPName: "demo"}}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("minimal config should pass: %v", err)
	}
	if err := (&AppConfig{}).Validate(); err == nil {
		t.Fatalf("missing app_name should fail")
	}

	bad := base()
	bad.Redis = &redis.Config{Enabled: true}
	if err := bad.Validate(); err == nil {
		t.Fatalf("enabled redis without addresses should fail")
	}

	var nilCfg *AppConfig
	if err := nilCfg.Validate(); err == nil {
		t.Fatalf("nil config should fail")
	}
}

func TestCheckConfigPath(t *testing.T) {
	path := writeConfig(t, "app.yaml", "app_info:\n  app_name: demo\n")

	if err := checkConfigPath(consts.ENV_TEST, path); err != nil {
		t.Fatalf("valid path rejected: %v", err)
	}
	if err := checkConfigPath(consts.ENV_TEST, ""); err == nil {
		t.Fatalf("empty path should fail")
	}
	if err := checkConfigPath(consts.ENV_TEST, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file should fail")
	}
	if err := checkConfigPath("staging", path); err == nil {
		t.Fatalf("unknown env should fail")
	}
}

func TestConfigManagerLoadAndQuery(t *testing.T) {
	path := writeConfig(t, "app.yaml", "app_info:\n  app_name: demo\n  env: test\n")
	cm := NewConfigManager(consts.ENV_TEST, path)
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cm.GetConfig() == nil || cm.GetConfig().APPInfo.APPName != "demo" {
		t.Fatalf("GetConfig did not return the loaded config")
	}
}
