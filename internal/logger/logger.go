package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger = zap.NewNop()

// Init builds the process-wide JSON logger. Level comes from
// FYNN_LOG_LEVEL so logging works before config is loaded.
func Init() {
	level := zapcore.InfoLevel
	switch os.Getenv("FYNN_LOG_LEVEL") {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	log = zap.New(core)
	log.Info("logger initialized")
}

func toFields(fields map[string]any) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}

func Info(msg string, fields map[string]any) {
	log.Info(msg, toFields(fields)...)
}

func Warn(msg string, fields map[string]any) {
	log.Warn(msg, toFields(fields)...)
}

func Error(msg string, fields map[string]any) {
	log.Error(msg, toFields(fields)...)
}

func Fatal(msg string, fields map[string]any) {
	log.Fatal(msg, toFields(fields)...)
}
