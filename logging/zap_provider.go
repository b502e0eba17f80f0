package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLoggerProvider 将日志转发给 zap
type ZapLoggerProvider struct {
	base         *zap.Logger
	minimumLevel LogLevel
	mu           sync.RWMutex

	// level 只在 NewZapProvider 创建的 zap 上存在，跟随最小级别调整
	level *zap.AtomicLevel
}

// NewZapLoggerProvider 使用现有的 zap.Logger 创建提供者
func NewZapLoggerProvider(base *zap.Logger) *ZapLoggerProvider {
	if base == nil {
		base = zap.NewNop()
	}
	return &ZapLoggerProvider{base: base, minimumLevel: LogLevelInfo}
}

// NewZapProvider 按环境创建 zap：production 使用 JSON 编码，否则使用开发模式。
// zap 自身的级别随 SetMinimumLevel 调整，不会滤掉工厂放行的日志。
func NewZapProvider(production bool) (*ZapLoggerProvider, error) {
	cfg := zap.NewDevelopmentConfig()
	if production {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(LogLevelInfo))

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	p := NewZapLoggerProvider(base)
	level := cfg.Level
	p.level = &level
	return p, nil
}

func (p *ZapLoggerProvider) CreateLogger(category string) Logger {
	z := p.base
	if category != "" {
		z = z.Named(category)
	}
	return &zapLogger{provider: p, z: z, category: category}
}

func (p *ZapLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minimumLevel = level
	if p.level != nil {
		p.level.SetLevel(zapLevel(level))
	}
}

// Sync 刷新 zap 缓冲
func (p *ZapLoggerProvider) Sync() error {
	return p.base.Sync()
}

func (p *ZapLoggerProvider) enabled(level LogLevel) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return level >= p.minimumLevel
}

type zapLogger struct {
	provider *ZapLoggerProvider
	z        *zap.Logger
	category string
}

func (l *zapLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *zapLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

func (l *zapLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	_ = l.z.Sync()
	os.Exit(1)
}

func (l *zapLogger) Log(level LogLevel, msg string, fields ...Field) {
	if !l.provider.enabled(level) {
		return
	}
	if ce := l.z.Check(zapLevel(level), msg); ce != nil {
		ce.Write(zapFields(fields)...)
	}
}

func (l *zapLogger) WithFields(fields ...Field) Logger {
	return &zapLogger{provider: l.provider, z: l.z.With(zapFields(fields)...), category: l.category}
}

func (l *zapLogger) WithCategory(category string) Logger {
	return l.provider.CreateLogger(category)
}

// zapLevel 映射日志级别；Fatal 映射为 Error，退出由 Fatal 方法自己处理
func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelTrace, LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}
