// components/logging/logger_component.go
package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

// 包装层数: 全局函数 + 组件方法 + logWithContext
const callerSkip = 3

type traceIDKey struct{}

// WithTraceID 给 ctx 挂一个关联 id, 没有活跃 span 时日志仍能串起来。
// 后台任务从请求 ctx 脱离后用它续上关联。
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// Logger ctx 优先的日志接口。trace id 从 ctx 自动带出, 调用方不用手动塞。
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...zap.Field)
	Info(ctx context.Context, msg string, fields ...zap.Field)
	Warn(ctx context.Context, msg string, fields ...zap.Field)
	Error(ctx context.Context, msg string, fields ...zap.Field)
	Fatal(ctx context.Context, msg string, fields ...zap.Field)
	Sync() error
}

type LoggerComponent struct {
	*core.BaseComponent
	config *LoggingConfig
	lg     *zap.Logger
}

func NewLoggerComponent(cfg *LoggingConfig) *LoggerComponent {
	return &LoggerComponent{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_LOGGING),
		config:        cfg,
	}
}

func (lc *LoggerComponent) Start(ctx context.Context) error {
	if err := lc.BaseComponent.Start(ctx); err != nil {
		return err
	}

	ws, err := newWriteSyncer(lc.config)
	if err != nil {
		return fmt.Errorf("build write syncer: %w", err)
	}

	lc.lg = zap.New(
		zapcore.NewCore(newEncoder(lc.config.Format), ws, parseLevel(lc.config.Level)),
		zap.AddCaller(),
		zap.AddCallerSkip(callerSkip),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	lc.lg.Info("logger component started",
		zap.String("level", lc.config.Level),
		zap.String("format", lc.config.Format),
		zap.String("output", lc.config.Output),
	)

	SetGlobalLogger(lc)
	return nil
}

func (lc *LoggerComponent) Stop(ctx context.Context) error {
	if lc.lg != nil {
		Info(ctx, "logger component stopping")
		_ = lc.lg.Sync()
	}
	return lc.BaseComponent.Stop(ctx)
}

func (lc *LoggerComponent) HealthCheck() error {
	if err := lc.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	if lc.lg == nil {
		return fmt.Errorf("zap logger is not initialized")
	}
	return nil
}

func (lc *LoggerComponent) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	lc.logWithContext(ctx, zapcore.DebugLevel, msg, fields...)
}

func (lc *LoggerComponent) Info(ctx context.Context, msg string, fields ...zap.Field) {
	lc.logWithContext(ctx, zapcore.InfoLevel, msg, fields...)
}

func (lc *LoggerComponent) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	lc.logWithContext(ctx, zapcore.WarnLevel, msg, fields...)
}

func (lc *LoggerComponent) Error(ctx context.Context, msg string, fields ...zap.Field) {
	lc.logWithContext(ctx, zapcore.ErrorLevel, msg, fields...)
}

// Fatal 走 zap 的 Fatal 钩子, 写完即退出进程。
func (lc *LoggerComponent) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	lc.logWithContext(ctx, zapcore.FatalLevel, msg, fields...)
}

func (lc *LoggerComponent) Sync() error {
	if lc.lg != nil {
		return lc.lg.Sync()
	}
	return nil
}

func (lc *LoggerComponent) logWithContext(ctx context.Context, level zapcore.Level, msg string, fields ...zap.Field) {
	if lc.lg == nil {
		return
	}
	if traceID := extractTraceID(ctx); traceID != "" && !hasTraceField(fields) {
		fields = append([]zap.Field{zap.String(consts.KEY_TraceID, traceID)}, fields...)
	}
	lc.lg.Log(level, msg, fields...)
}

func hasTraceField(fields []zap.Field) bool {
	return slices.ContainsFunc(fields, func(f zap.Field) bool {
		return f.Key == "trace_id" || f.Key == "trace-id"
	})
}

// extractTraceID 优先取 OTel span 的 trace id, 其次 WithTraceID 挂的值。
// 都没有返回空串, 不合成假 id。
func extractTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() && sc.TraceID().IsValid() {
		return sc.TraceID().String()
	}
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// newEncoder 在 zap 生产预设上改键名和时间格式, 其余沿用预设。
func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	return zapcore.NewConsoleEncoder(ec)
}

func newWriteSyncer(cfg *LoggingConfig) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	case "file":
		return newFileWriteSyncer(cfg)
	default:
		// 不是关键字就当文件路径用
		return openAppendSyncer(cfg.Output)
	}
}

func newFileWriteSyncer(cfg *LoggingConfig) (zapcore.WriteSyncer, error) {
	if cfg.FileConfig == nil {
		return nil, fmt.Errorf("file config is required when output is 'file'")
	}
	if err := os.MkdirAll(cfg.FileConfig.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rc := cfg.RotateConfig
	if rc != nil && rc.Enabled {
		// 配了间隔走时间轮转, 否则 lumberjack 按大小
		if rc.RotateInterval > 0 {
			w, err := newIntervalWriter(cfg.FileConfig.Dir, cfg.FileConfig.Filename, rc)
			if err != nil {
				return nil, err
			}
			return zapcore.AddSync(w), nil
		}
		lumber := &lumberjack.Logger{
			Filename:  filepath.Join(cfg.FileConfig.Dir, cfg.FileConfig.Filename+".log"),
			MaxSize:   100, // MB
			MaxAge:    int(rc.MaxAge.Hours() / 24),
			Compress:  true,
			LocalTime: true,
		}
		return zapcore.AddSync(lumber), nil
	}

	return openAppendSyncer(filepath.Join(cfg.FileConfig.Dir, cfg.FileConfig.Filename+".log"))
}

func openAppendSyncer(path string) (zapcore.WriteSyncer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zapcore.AddSync(file), nil
}

// parseLevel 大小写不敏感, 不认识的一律当 info。
func parseLevel(level string) zapcore.Level {
	if strings.EqualFold(level, "warning") {
		level = "warn"
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
