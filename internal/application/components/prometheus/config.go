package prometheus

// Config prometheus 组件配置
type Config struct {
	Enabled          bool   `json:"enabled" yaml:"enabled"`
	Address          string `json:"address" yaml:"address"` // 监听地址, 如 :9090
	Path             string `json:"path" yaml:"path"`       // 暴露路径, 如 /metrics
	Namespace        string `json:"namespace" yaml:"namespace"`
	Subsystem        string `json:"subsystem" yaml:"subsystem"`
	CollectGoMetrics bool   `json:"collect_go_metrics" yaml:"collect_go_metrics"`
	CollectProcess   bool   `json:"collect_process" yaml:"collect_process"`
}
