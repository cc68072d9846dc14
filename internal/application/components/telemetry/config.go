// file: internal/application/components/telemetry/config.go
package telemetry

import "time"

type ExporterType string

const (
	ExporterStdout ExporterType = "stdout"
	ExporterOTLP   ExporterType = "otlp"
)

type OTLPConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Insecure bool          `yaml:"insecure" json:"insecure"`
	Timeout  time.Duration `yaml:"timeout"  json:"timeout"`
}

// Config 遥测配置。ServiceName 与 Environment 留空时由 registry 从 app_info 注入。
type Config struct {
	Enabled     bool         `yaml:"enabled"      json:"enabled"`
	ServiceName string       `yaml:"service_name" json:"service_name"`
	Environment string       `yaml:"environment"  json:"environment"`
	Exporter    ExporterType `yaml:"exporter"     json:"exporter"` // stdout|otlp
	SampleRatio float64      `yaml:"sample_ratio" json:"sample_ratio"`
	OTLP        *OTLPConfig  `yaml:"otlp"         json:"otlp"`

	// ExportInterval paces the metric reader; spans batch on the SDK default.
	ExportInterval time.Duration `yaml:"export_interval" json:"export_interval"`

	StdoutPretty bool   `yaml:"stdout_pretty" json:"stdout_pretty"`
	StdoutFile   string `yaml:"stdout_file"   json:"stdout_file"` // if set, write exporter output here
}

func (c *Config) applyDefaults() {
	// ServiceName is never auto-defaulted; the registry injects app_info.app_name.
	if c.SampleRatio <= 0 || c.SampleRatio > 1 {
		c.SampleRatio = 1.0
	}
	if c.Exporter == "" {
		c.Exporter = ExporterStdout
	}
	if c.ExportInterval <= 0 {
		c.ExportInterval = 15 * time.Second
	}
	if c.OTLP != nil && c.OTLP.Timeout <= 0 {
		c.OTLP.Timeout = 5 * time.Second
	}
}
