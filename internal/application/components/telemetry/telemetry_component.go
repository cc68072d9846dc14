package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

// TelemetryComponent 装配全局 OTel tracer/meter provider。span 来自 chi 中间件、
// 埋点过的 HTTP client 和批量执行器; exporter 的选择和节奏走配置, 开发环境落 stdout 文件。
type TelemetryComponent struct {
	*core.BaseComponent
	cfg      *Config
	tp       *sdktrace.TracerProvider
	mp       *sdkmetric.MeterProvider
	cleanups []func(context.Context) error
}

func NewTelemetryComponent(cfg *Config) *TelemetryComponent {
	return &TelemetryComponent{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_TELEMETRY, consts.COMPONENT_LOGGING),
		cfg:           cfg,
	}
}

func (tc *TelemetryComponent) Start(ctx context.Context) error {
	if err := tc.BaseComponent.Start(ctx); err != nil {
		return err
	}
	tc.cfg.applyDefaults()
	if tc.cfg.ServiceName == "" {
		return errors.New("telemetry service_name must be set (injected from app_info.app_name)")
	}

	res, err := tc.buildResource(ctx)
	if err != nil {
		return err
	}
	traceExp, metricExp, err := tc.buildExporters(ctx)
	if err != nil {
		return err
	}

	tc.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tc.cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
	tc.deferCleanup(tc.tp.Shutdown)
	tc.mp = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(tc.cfg.ExportInterval))),
	)
	tc.deferCleanup(tc.mp.Shutdown)

	otel.SetTracerProvider(tc.tp)
	otel.SetMeterProvider(tc.mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logging.Info(ctx, "telemetry component started",
		zap.String("exporter", string(tc.cfg.Exporter)),
		zap.Float64("sample_ratio", tc.cfg.SampleRatio),
		zap.String("service_name", tc.cfg.ServiceName),
		zap.String("environment", tc.cfg.Environment),
	)
	return nil
}

// buildResource 给每条 span/metric 打上身份与环境, 下游才能按环境切网关延迟。
func (tc *TelemetryComponent) buildResource(ctx context.Context) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(tc.cfg.ServiceName)}
	if tc.cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", tc.cfg.Environment))
	}
	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("resource init: %w", err)
	}
	return res, nil
}

// buildExporters 一次产出 trace/metric 两个方向的 exporter, 两边永远走同一种后端。
func (tc *TelemetryComponent) buildExporters(ctx context.Context) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	switch tc.cfg.Exporter {
	case ExporterStdout:
		return tc.stdoutExporters()
	case ExporterOTLP:
		return tc.otlpExporters(ctx)
	default:
		return nil, nil, fmt.Errorf("unsupported exporter: %s", tc.cfg.Exporter)
	}
}

func (tc *TelemetryComponent) stdoutExporters() (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	w, err := tc.exportWriter()
	if err != nil {
		return nil, nil, err
	}
	topts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if tc.cfg.StdoutPretty {
		topts = append(topts, stdouttrace.WithPrettyPrint())
	}
	traceExp, err := stdouttrace.New(topts...)
	if err != nil {
		return nil, nil, fmt.Errorf("stdout trace exporter: %w", err)
	}
	metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, nil, fmt.Errorf("stdout metric exporter: %w", err)
	}
	return traceExp, metricExp, nil
}

func (tc *TelemetryComponent) otlpExporters(ctx context.Context) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	if tc.cfg.OTLP == nil || tc.cfg.OTLP.Endpoint == "" {
		return nil, nil, errors.New("otlp exporter selected but otlp.endpoint empty")
	}
	o := tc.cfg.OTLP
	topts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(o.Endpoint),
		otlptracegrpc.WithTimeout(o.Timeout),
	}
	mopts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(o.Endpoint),
		otlpmetricgrpc.WithTimeout(o.Timeout),
	}
	if o.Insecure {
		topts = append(topts, otlptracegrpc.WithInsecure())
		mopts = append(mopts, otlpmetricgrpc.WithInsecure())
	} else {
		// 握手失败要在启动时暴露, 不让 exporter 在后台静默重连
		topts = append(topts, otlptracegrpc.WithDialOption(grpc.WithBlock()))
		mopts = append(mopts, otlpmetricgrpc.WithDialOption(grpc.WithBlock()))
	}
	traceExp, err := otlptracegrpc.New(ctx, topts...)
	if err != nil {
		return nil, nil, fmt.Errorf("otlp trace exporter: %w", err)
	}
	metricExp, err := otlpmetricgrpc.New(ctx, mopts...)
	if err != nil {
		return nil, nil, fmt.Errorf("otlp metric exporter: %w", err)
	}
	return traceExp, metricExp, nil
}

// exportWriter 返回 stdout exporter 的落点: os.Stdout 或配置的文件, 文件随关停关闭。
func (tc *TelemetryComponent) exportWriter() (io.Writer, error) {
	if tc.cfg.StdoutFile == "" {
		return os.Stdout, nil
	}
	f, err := os.OpenFile(tc.cfg.StdoutFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open telemetry output file: %w", err)
	}
	tc.deferCleanup(func(context.Context) error { return f.Close() })
	return f, nil
}

// deferCleanup 排队一个关停动作; Stop 按 LIFO 执行, 每步单独限时,
// 卡死的 exporter 拖不垮整个优雅关停。
func (tc *TelemetryComponent) deferCleanup(fn func(context.Context) error) {
	tc.cleanups = append(tc.cleanups, func(c context.Context) error {
		c2, cancel := context.WithTimeout(c, 5*time.Second)
		defer cancel()
		return fn(c2)
	})
}

func (tc *TelemetryComponent) Stop(ctx context.Context) error {
	defer tc.BaseComponent.Stop(ctx)
	var errs []error
	for i := len(tc.cleanups) - 1; i >= 0; i-- {
		if err := tc.cleanups[i](ctx); err != nil {
			errs = append(errs, err)
			logging.Warn(ctx, "telemetry shutdown step failed", zap.Error(err))
		}
	}
	tc.cleanups = nil
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logging.Info(ctx, "telemetry stopped gracefully")
	return nil
}

func (tc *TelemetryComponent) HealthCheck() error {
	if err := tc.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	if tc.tp == nil || tc.mp == nil {
		return errors.New("telemetry providers not initialized")
	}
	return nil
}
