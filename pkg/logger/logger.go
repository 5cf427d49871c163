package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/attr-sampler/pkg/config"
	"github.com/attr-sampler/pkg/goid"
)

type Logger = zap.Logger

var (
	baseLogger    *zap.Logger
	defaultFields = struct {
		Component string
	}{}
	mu sync.RWMutex
)

// ParseLevel 解析日志级别，未知级别按 info 处理
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "dbg", "debug":
		return zapcore.DebugLevel
	case "war", "warn":
		return zapcore.WarnLevel
	case "err", "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "pan", "panic":
		return zapcore.PanicLevel
	case "fat", "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger 初始化全局日志：控制台彩色输出 + 按天切割的 JSON 文件
func InitLogger(cfg *config.ZapLogConfig) (*zap.Logger, error) {
	level := ParseLevel(cfg.Level)

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", cfg.Path, err)
	}

	options := []rotatelogs.Option{
		rotatelogs.WithRotationTime(24 * time.Hour),
	}
	if cfg.MaxAge > 0 {
		options = append(options, rotatelogs.WithMaxAge(time.Duration(cfg.MaxAge)*24*time.Hour))
	} else if cfg.MaxBackup > 0 {
		options = append(options, rotatelogs.WithMaxAge(-1), rotatelogs.WithRotationCount(uint(cfg.MaxBackup)))
	}
	if cfg.MaxSize > 0 {
		options = append(options, rotatelogs.WithRotationSize(int64(cfg.MaxSize)*1024*1024))
	}
	writer, err := rotatelogs.New(filepath.Join(cfg.Path, "sampler-%Y%m%d.log"), options...)
	if err != nil {
		return nil, fmt.Errorf("open rotate log: %w", err)
	}

	// 控制台彩色时间
	customTimeEncoderConsole := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(fmt.Sprintf("\033[34m%s\033[0m", t.Format("2006-01-02 15:04:05.000 -07:00")))
	}

	// JSON 日志纯文本时间
	customTimeEncoderJSON := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000 -07:00"))
	}

	consoleEncoderCfg := zap.NewDevelopmentEncoderConfig()
	consoleEncoderCfg.ConsoleSeparator = " "
	consoleEncoderCfg.EncodeLevel = coloredLevelEncoder
	consoleEncoderCfg.EncodeTime = customTimeEncoderConsole
	// Caller 两级路径
	consoleEncoderCfg.EncodeCaller = func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		rel := filepath.Join(filepath.Base(filepath.Dir(c.File)), filepath.Base(c.File))
		enc.AppendString(fmt.Sprintf("%s:%d", rel, c.Line))
	}

	var fileEncoder zapcore.Encoder
	if cfg.Format == "console" {
		plain := zap.NewDevelopmentEncoderConfig()
		plain.ConsoleSeparator = " "
		plain.EncodeTime = customTimeEncoderJSON
		plain.EncodeCaller = consoleEncoderCfg.EncodeCaller
		fileEncoder = zapcore.NewConsoleEncoder(plain)
	} else {
		jsonCfg := zap.NewProductionEncoderConfig()
		jsonCfg.TimeKey = "timestamp"
		jsonCfg.EncodeTime = customTimeEncoderJSON
		jsonCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		fileEncoder = zapcore.NewJSONEncoder(jsonCfg)
	}

	// 控制台输出到 stderr，stdout 留给 once 子命令的 JSON 结果
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderCfg), zapcore.Lock(os.Stderr), level),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(writer), level),
	)

	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	mu.Lock()
	baseLogger = l
	mu.Unlock()
	return l, nil
}

func coloredLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var levelStr string
	switch level {
	case zapcore.DebugLevel:
		levelStr = "\033[36mDEBUG\033[0m"
	case zapcore.InfoLevel:
		levelStr = "\033[32mINFO \033[0m"
	case zapcore.WarnLevel:
		levelStr = "\033[33mWARN \033[0m"
	case zapcore.ErrorLevel:
		levelStr = "\033[31mERROR\033[0m"
	case zapcore.DPanicLevel:
		levelStr = "\033[35mDPANIC\033[0m"
	case zapcore.PanicLevel:
		levelStr = "\033[35mPANIC\033[0m"
	case zapcore.FatalLevel:
		levelStr = "\033[35mFATAL\033[0m"
	default:
		levelStr = "UNK  "
	}
	enc.AppendString(levelStr)
}

// SetDefaultComponent 设置包级日志函数附带的 component 字段
func SetDefaultComponent(component string) {
	mu.Lock()
	defer mu.Unlock()
	defaultFields.Component = component
}

func GetDefaultComponent() string {
	mu.RLock()
	defer mu.RUnlock()
	return defaultFields.Component
}

// GetGlobalLogger 返回 InitLogger 创建的日志实例，未初始化时 panic
func GetGlobalLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if baseLogger == nil {
		panic("logger not initialized: call logger.InitLogger() first")
	}
	return baseLogger
}

// Named 返回带 component 字段的子日志，供注入到各个包
func Named(component string) *zap.Logger {
	return GetGlobalLogger().With(zap.String("component", component))
}

func log(level zapcore.Level, msg string, fields ...zapcore.Field) {
	l := GetGlobalLogger().WithOptions(zap.AddCallerSkip(2))
	merged := make([]zapcore.Field, 0, len(fields)+2)
	if c := GetDefaultComponent(); c != "" {
		merged = append(merged, zap.String("component", c))
	}
	merged = append(merged, goid.Field())
	merged = append(merged, fields...)

	switch level {
	case zap.DebugLevel:
		l.Debug(msg, merged...)
	case zap.InfoLevel:
		l.Info(msg, merged...)
	case zap.WarnLevel:
		l.Warn(msg, merged...)
	case zap.ErrorLevel:
		l.Error(msg, merged...)
	case zap.PanicLevel:
		l.Panic(msg, merged...)
	case zap.FatalLevel:
		l.Fatal(msg, merged...)
	}
}

func Debug(msg string, fields ...zapcore.Field) { log(zap.DebugLevel, msg, fields...) }
func Info(msg string, fields ...zapcore.Field)  { log(zap.InfoLevel, msg, fields...) }
func Warn(msg string, fields ...zapcore.Field)  { log(zap.WarnLevel, msg, fields...) }
func Error(msg string, fields ...zapcore.Field) { log(zap.ErrorLevel, msg, fields...) }
func Panic(msg string, fields ...zapcore.Field) { log(zap.PanicLevel, msg, fields...) }
func Fatal(msg string, fields ...zapcore.Field) { log(zap.FatalLevel, msg, fields...) }

// Sync 刷盘；未初始化时直接返回
func Sync() error {
	mu.RLock()
	l := baseLogger
	mu.RUnlock()
	if l == nil {
		return nil
	}
	err := l.Sync()
	// stderr 在部分终端上不支持 fsync
	if err != nil && (strings.Contains(err.Error(), "invalid argument") || strings.Contains(err.Error(), "bad file descriptor") || strings.Contains(err.Error(), "inappropriate ioctl")) {
		return nil
	}
	return err
}
