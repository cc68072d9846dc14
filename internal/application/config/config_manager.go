package config

// ConfigManager 串起加载与校验, 持有加载后的配置供 App 查询。
type ConfigManager struct {
	loader    *Loader
	appConfig *AppConfig
}

func NewConfigManager(env string, configPath string) *ConfigManager {
	return &ConfigManager{loader: NewLoader(env, configPath)}
}

// SetBizConfig 透传业务配置指针给 loader, 必须在 LoadConfig 之前调用。
func (cm *ConfigManager) SetBizConfig(b any) {
	if cm != nil && cm.loader != nil {
		cm.loader.SetBizConfig(b)
	}
}

func (cm *ConfigManager) GetConfig() *AppConfig {
	return cm.appConfig
}

func (cm *ConfigManager) LoadConfig() error {
	if err := checkConfigPath(cm.loader.env, cm.loader.configPath); err != nil {
		return err
	}

	cfg, err := cm.loader.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cm.appConfig = cfg
	return nil
}
