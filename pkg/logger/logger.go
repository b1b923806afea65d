// Package logger 在统一日志组件之上补充请求级字段（request_id、trader_id）
// trace_id/span_id 注入与日志切割由底层 logging 完成
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wyfcoding/pkg/logging"
)

var globalLogger *logging.Logger

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	traderIDKey  ctxKey = "trader_id"
)

func init() {
	logging.RegisterContextExtractor(requestAttrs)
}

// Config 日志配置
type Config struct {
	Service string
	Module  string
	// 日志级别：debug, info, warn, error
	Level string
	// 输出格式：json 或 text
	Format string
	// 输出目标：stdout, stderr, file
	Output string
	// 日志文件路径（当 output 为 file 时）
	FilePath string
	// 最大文件大小（MB）
	MaxSize int
	// 最大备份文件数
	MaxBackups int
	// 最大保留天数
	MaxAge int
	// 是否压缩
	Compress bool
}

// Init 初始化全局日志实例
func Init(cfg Config) error {
	lc := &logging.Config{
		Service:    cfg.Service,
		Module:     cfg.Module,
		Level:      strings.ToLower(cfg.Level),
		Format:     cfg.Format,
		Output:     cfg.Output,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	if cfg.Output == "file" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return err
		}
		lc.File = cfg.FilePath
	}
	globalLogger = logging.NewFromConfig(lc)
	slog.SetDefault(globalLogger.Logger)
	return nil
}

// New 创建写入 output 的 JSON logger，不修改全局实例，主要用于测试
func New(service, level string, output io.Writer) *logging.Logger {
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: parseLevel(level)})
	l := slog.New(&logging.TraceHandler{Handler: handler}).With(slog.String("service", service))
	return &logging.Logger{Logger: l, Service: service}
}

// SetLogger 替换全局实例，主要用于测试
func SetLogger(l *logging.Logger) {
	globalLogger = l
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logging 返回全局 logging 实例，供 Kafka 生产者等组件使用
func Logging() *logging.Logger {
	if globalLogger == nil {
		return logging.Default()
	}
	return globalLogger
}

// Get 获取全局 slog 实例
func Get() *slog.Logger {
	return Logging().Logger
}

// ContextWithRequestID 在 context 中记录请求 ID
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext 读取请求 ID
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithTraderID 在 context 中记录当前操作的交易员
func ContextWithTraderID(ctx context.Context, traderID int64) context.Context {
	return context.WithValue(ctx, traderIDKey, traderID)
}

// requestAttrs 由 TraceHandler 在每条日志上调用
func requestAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if id, ok := ctx.Value(traderIDKey).(int64); ok {
		attrs = append(attrs, slog.Int64("trader_id", id))
	}
	return attrs
}

func logAt(ctx context.Context, level slog.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	Get().Log(ctx, level, msg, args...)
}

// Debug 输出 debug 级别日志
func Debug(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelDebug, msg, args...)
}

// Info 输出 info 级别日志
func Info(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelInfo, msg, args...)
}

// Warn 输出 warn 级别日志
func Warn(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelWarn, msg, args...)
}

// Error 输出 error 级别日志
func Error(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelError, msg, args...)
}

// LogDuration 记录操作耗时，返回一个函数用于在 defer 中调用
func LogDuration(ctx context.Context, msg string, args ...any) func() {
	start := time.Now()
	return func() {
		args = append(args, slog.Duration("duration", time.Since(start)))
		Info(ctx, msg, args...)
	}
}
