package zapLogger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	once sync.Once
	Log  = zap.NewNop().Sugar()

	fileWriter io.Writer = io.Discard
)

// Options controls where and how verbosely the process logs.
type Options struct {
	Path       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init builds the process logger once: console plus a rotating file.
// Later calls return the logger built by the first.
func Init(opts Options) *zap.SugaredLogger {
	once.Do(func() {
		Log = build(opts)
	})
	return Log
}

func build(opts Options) *zap.SugaredLogger {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err == nil {
			rotating := &lumberjack.Logger{
				Filename:   opts.Path,
				MaxSize:    orDefault(opts.MaxSizeMB, 100),
				MaxBackups: orDefault(opts.MaxBackups, 5),
				MaxAge:     orDefault(opts.MaxAgeDays, 28),
				Compress:   true,
			}
			fileWriter = rotating
			writers = append(writers, zapcore.AddSync(rotating))
		}
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.NewMultiWriteSyncer(writers...),
		level,
	)

	return zap.New(core, zap.AddCaller()).Sugar()
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// FiberLoggingMiddleware returns Fiber's request logger writing to stdout and the rotating log file.
func FiberLoggingMiddleware() fiber.Handler {
	return logger.New(logger.Config{
		Output:     io.MultiWriter(os.Stdout, fileWriter),
		Format:     "${time} | ${status} | ${method} | ${path} | ${latency}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	})
}

// Sync flushes buffered entries.
func Sync() {
	_ = Log.Sync()
}
