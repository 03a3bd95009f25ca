package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger tags every entry with a component so payment, database, kafka and
// security events can be filtered apart.
type Logger struct {
	zl       *zap.Logger
	colorize bool
}

var (
	componentColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	paymentColor   = color.New(color.FgGreen).SprintFunc()
	securityColor  = color.New(color.FgRed, color.Bold).SprintFunc()
	kafkaColor     = color.New(color.FgMagenta).SprintFunc()
	databaseColor  = color.New(color.FgBlue).SprintFunc()
)

func New(env, level string) *Logger {
	var cfg zap.Config
	production := env == "production"

	if production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	zl, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	color.NoColor = color.NoColor || production
	return &Logger{zl: zl, colorize: !production}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zl: zap.NewNop()}
}

// NewFromZap wraps an existing zap logger without colouring.
func NewFromZap(zl *zap.Logger) *Logger {
	return &Logger{zl: zl}
}

// Zap exposes the underlying logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

func (l *Logger) Close() {
	_ = l.zl.Sync()
}

func (l *Logger) tag(component string, paint func(a ...interface{}) string) string {
	if l.colorize {
		return paint("[" + component + "]")
	}
	return "[" + component + "]"
}

func (l *Logger) log(level zapcore.Level, component, msg string, paint func(a ...interface{}) string, fields ...zap.Field) {
	if ce := l.zl.Check(level, l.tag(component, paint)+" "+msg); ce != nil {
		ce.Write(append(fields, zap.String("component", component))...)
	}
}

func (l *Logger) Info(component, msg string) {
	l.log(zapcore.InfoLevel, component, msg, componentColor)
}

func (l *Logger) Warn(component, msg string) {
	l.log(zapcore.WarnLevel, component, msg, componentColor)
}

func (l *Logger) Error(component, msg string) {
	l.log(zapcore.ErrorLevel, component, msg, componentColor)
}

func (l *Logger) Debug(component, msg string) {
	l.log(zapcore.DebugLevel, component, msg, componentColor)
}

func (l *Logger) Fatal(component, msg string) {
	l.log(zapcore.FatalLevel, component, msg, securityColor)
}

func (l *Logger) LogProcess(component, msg string) {
	l.log(zapcore.InfoLevel, component, msg, componentColor, zap.String("category", "process"))
}

func (l *Logger) LogPayment(action, reference, msg string) {
	l.log(zapcore.InfoLevel, "PAYMENT", msg, paymentColor,
		zap.String("action", action), zap.String("reference", reference))
}

func (l *Logger) LogDatabase(action, db, msg string) {
	l.log(zapcore.DebugLevel, "DATABASE", msg, databaseColor,
		zap.String("action", action), zap.String("db", db))
}

func (l *Logger) LogKafka(action, topic, msg string) {
	l.log(zapcore.InfoLevel, "KAFKA", msg, kafkaColor,
		zap.String("action", action), zap.String("topic", topic))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.log(zapcore.InfoLevel, "API", method+" "+path, componentColor,
		zap.String("status", status), zap.String("duration", duration))
}

func (l *Logger) LogSecurity(event, msg string) {
	l.log(zapcore.WarnLevel, "SECURITY", msg, securityColor, zap.String("event", event))
}
