package prometheus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

const (
	headerReadBudget = 5 * time.Second
	drainBudget      = 5 * time.Second
)

// Component 在独立端口上暴露 /metrics。业务指标 (批量运行计数、调度延迟、
// 熔断状态) 通过 NewCounter/NewGauge/NewHistogram 挂进私有 registry,
// 和默认全局 registry 隔离, 测试里可以起多个实例互不串。
type Component struct {
	*core.BaseComponent
	cfg      *Config
	server   *http.Server
	registry *prometheus.Registry
}

func NewComponent(cfg *Config) *Component {
	return &Component{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_PROMETHEUS, consts.COMPONENT_LOGGING),
		cfg:           cfg,
	}
}

func (c *Component) Start(ctx context.Context) error {
	if err := c.BaseComponent.Start(ctx); err != nil {
		return err
	}

	c.registry = prometheus.NewRegistry()
	if c.cfg.CollectGoMetrics {
		_ = c.registry.Register(collectors.NewGoCollector())
	}
	if c.cfg.CollectProcess {
		_ = c.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	// 先绑端口再起 goroutine, 端口被占在 Start 里就报出来
	ln, err := net.Listen("tcp", c.cfg.Address)
	if err != nil {
		return fmt.Errorf("prometheus listen %s: %w", c.cfg.Address, err)
	}

	mux := http.NewServeMux()
	mux.Handle(c.cfg.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	c.server = &http.Server{Handler: mux, ReadHeaderTimeout: headerReadBudget}

	go func() {
		logging.Infof(ctx, "metrics endpoint on %s%s", c.cfg.Address, c.cfg.Path)
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf(ctx, "prometheus serve: %v", err)
		}
	}()

	registerGlobal(c)
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	defer c.BaseComponent.Stop(ctx)
	if c.server == nil {
		return nil
	}

	drainCtx, cancel := context.WithTimeout(ctx, drainBudget)
	defer cancel()
	if err := c.server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("prometheus server shutdown: %w", err)
	}
	logging.Info(ctx, "prometheus component stopped")
	return nil
}

func (c *Component) fqName(name string) string {
	return prometheus.BuildFQName(c.cfg.Namespace, c.cfg.Subsystem, name)
}

// 注册失败 (重复指标名) 这里吞掉, 返回的 vec 仍可用, 只是数据进不了 registry。
func (c *Component) NewCounter(name, help string, labels []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: c.fqName(name), Help: help}, labels)
	_ = c.registry.Register(cv)
	return cv
}

func (c *Component) NewHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: c.fqName(name), Help: help, Buckets: buckets}, labels)
	_ = c.registry.Register(hv)
	return hv
}

func (c *Component) NewGauge(name, help string, labels []string) *prometheus.GaugeVec {
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: c.fqName(name), Help: help}, labels)
	_ = c.registry.Register(gv)
	return gv
}
