package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

// HTTPServerComponent 持有 chi 路由和监听器。业务路由由 controller 在 init()
// 里通过 RegisterRoutes 登记, Start 时统一挂载。
type HTTPServerComponent struct {
	*core.BaseComponent
	cfg       *HTTPServerConfig
	container *core.Container
	server    *http.Server
}

func NewHTTPServerComponent(cfg *HTTPServerConfig, c *core.Container) *HTTPServerComponent {
	return &HTTPServerComponent{
		BaseComponent: core.NewBaseComponent(
			consts.COMPONENT_HTTP_SERVER,
			consts.COMPONENT_LOGGING,
			consts.COMPONENT_TELEMETRY,
		),
		cfg:       cfg,
		container: c,
	}
}

func (hc *HTTPServerComponent) Start(ctx context.Context) error {
	if err := hc.BaseComponent.Start(ctx); err != nil {
		return err
	}
	handler, err := hc.buildHandler()
	if err != nil {
		return err
	}
	// 端口被占用要在启动阶段报出来, 不能进 goroutine 里只剩一行错误日志
	ln, err := net.Listen("tcp", hc.cfg.Address)
	if err != nil {
		return fmt.Errorf("http_server listen %s: %w", hc.cfg.Address, err)
	}
	hc.server = &http.Server{
		ReadTimeout:  hc.cfg.ReadTimeout,
		WriteTimeout: hc.cfg.WriteTimeout,
		IdleTimeout:  hc.cfg.IdleTimeout,
		Handler:      handler,
	}
	go func() {
		logging.Infof(ctx, "http_server listening on %s", ln.Addr())
		if err := hc.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf(ctx, "http_server serve: %v", err)
		}
	}()
	return nil
}

func (hc *HTTPServerComponent) Stop(ctx context.Context) error {
	defer hc.BaseComponent.Stop(ctx)
	if hc.server == nil {
		return nil
	}
	stopCtx, cancel := context.WithTimeout(ctx, hc.cfg.GracefulTimeout)
	defer cancel()
	if err := hc.server.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("http_server graceful shutdown: %w", err)
	}
	logging.Infof(ctx, "http_server stopped")
	return nil
}

// buildHandler 组装路由: 通用中间件, 内建端点, 最后挂 controller 登记的业务路由。
func (hc *HTTPServerComponent) buildHandler() (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(hc.cfg.RequestTimeout))
	// otelchi 解析 W3C traceparent/tracestate 并开 server span
	r.Use(otelchi.Middleware(hc.serviceName()))
	r.Use(hc.accessLog)

	if hc.cfg.EnableHealth {
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
	}
	if hc.cfg.EnablePprof {
		r.Mount("/debug", middleware.Profiler())
	}
	for _, fn := range snapshot() {
		if err := fn(r, hc.container); err != nil {
			return nil, fmt.Errorf("route register failed: %w", err)
		}
	}
	return r, nil
}

func (hc *HTTPServerComponent) serviceName() string {
	if hc.cfg.ServiceName != "" {
		return hc.cfg.ServiceName
	}
	return hc.cfg.Address
}

// accessLog 每个请求记一行结构化日志, 并把活动 span 以标准 traceparent 头回写
// 给客户端。头要在 handler 写出 body 之前设好, 否则发不出去。
func (hc *HTTPServerComponent) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		sc := trace.SpanContextFromContext(r.Context())
		if sc.IsValid() {
			w.Header().Set("traceparent", fmt.Sprintf("00-%s-%s-01", sc.TraceID(), sc.SpanID()))
		}
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("dur", time.Since(start)),
		}
		if sc.IsValid() {
			fields = append(fields,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()))
		}
		logging.Info(r.Context(), "http_access", fields...)
	})
}
