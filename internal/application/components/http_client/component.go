package http_client

import (
	"context"
	"fmt"
	"maps"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

const (
	dialTimeout        = 5 * time.Second
	dialKeepAlive      = 30 * time.Second
	tlsHandshakeBudget = 5 * time.Second
)

// HTTPClientsComponent 按名字构建一组出站客户端。业务侧通过 provider.client_name
// 指到其中一个, 名字对不上会在取用时报错而不是启动时, 所以启动日志要把名单打出来。
type HTTPClientsComponent struct {
	*core.BaseComponent
	cfg     *HTTPClientsConfig
	mu      sync.RWMutex
	clients map[string]*InstrumentedClient
	defName string
}

func NewHTTPClientsComponent(cfg *HTTPClientsConfig) *HTTPClientsComponent {
	return &HTTPClientsComponent{
		BaseComponent: core.NewBaseComponent(
			consts.COMPONENT_HTTP_CLIENTS,
			consts.COMPONENT_LOGGING,
			consts.COMPONENT_TELEMETRY, // otelhttp 在 provider 缺席时自动退化为 no-op
		),
		cfg:     cfg,
		clients: map[string]*InstrumentedClient{},
	}
}

func (hc *HTTPClientsComponent) Start(ctx context.Context) error {
	if err := hc.BaseComponent.Start(ctx); err != nil {
		return err
	}
	hc.cfg.applyDefaults()
	hc.defName = hc.cfg.Default

	for name, cCfg := range hc.cfg.Clients {
		hc.clients[name] = buildClient(name, cCfg)
	}

	logging.Info(ctx, fmt.Sprintf("http_clients component started. clients=%v default=%s", hc.Names(), hc.defName))
	return nil
}

func buildClient(name string, cCfg *HTTPClientConfig) *InstrumentedClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: dialTimeout, KeepAlive: dialKeepAlive}).DialContext,
		MaxIdleConns:        cCfg.MaxIdleConns,
		MaxIdleConnsPerHost: cCfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cCfg.IdleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeBudget,
	}

	return &InstrumentedClient{
		Name:           name,
		BaseURL:        cCfg.BaseURL,
		DefaultHeaders: cCfg.DefaultHeaders,
		Client: &http.Client{
			Timeout:   cCfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		Retry:      cCfg.Retry,
		Underlying: transport,
	}
}

func (hc *HTTPClientsComponent) Stop(ctx context.Context) error {
	defer hc.BaseComponent.Stop(ctx)
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	for _, cli := range hc.clients {
		if cli == nil || cli.Underlying == nil {
			continue
		}
		cli.Underlying.CloseIdleConnections()
	}
	logging.Info(ctx, "http_clients component stopped")
	return nil
}

func (hc *HTTPClientsComponent) HealthCheck() error {
	if err := hc.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	if len(hc.clients) == 0 {
		return fmt.Errorf("no outbound clients built")
	}
	return nil
}

// Names 返回已构建的客户端名, 排序后输出方便日志比对。
func (hc *HTTPClientsComponent) Names() []string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return slices.Sorted(maps.Keys(hc.clients))
}

func (hc *HTTPClientsComponent) Client(name string) (*InstrumentedClient, error) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	if name == "" {
		name = hc.defName
	}
	if cli := hc.clients[name]; cli != nil {
		return cli, nil
	}
	return nil, fmt.Errorf("http client %q not configured", name)
}

func (hc *HTTPClientsComponent) Default() (*InstrumentedClient, error) {
	return hc.Client(hc.defName)
}
