package wormcore

import (
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logLevel *string
	logJSON  *bool
	logFile  *string
)

func logFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("logging", pflag.ExitOnError)
	logLevel = fs.String("logLevel", "info", "Logging level (debug, info, warn, error, dpanic, panic, fatal)")
	logJSON = fs.Bool("logJSON", false, "Log in JSON format instead of console format")
	logFile = fs.String("logFile", "", "Also write JSON logs to this file, rotated by size")
	return fs
}

// consoleEncoder substitutes control characters other than whitespace in every encoded entry.
type consoleEncoder struct {
	zapcore.Encoder
}

func (e consoleEncoder) Clone() zapcore.Encoder {
	return consoleEncoder{e.Encoder.Clone()}
}

func (e consoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf, err := e.Encoder.EncodeEntry(entry, fields)
	if err != nil {
		if buf != nil {
			buf.Free()
		}
		return nil, err
	}

	b := buf.Bytes()
	for i := range b {
		if unicode.IsControl(rune(b[i])) && !unicode.IsSpace(rune(b[i])) {
			b[i] = '\x1A' // Substitute character
		}
	}
	return buf, nil
}

type logConfig struct {
	Level string
	JSON  bool
	File  string
}

func configuredLogConfig() logConfig {
	return logConfig{Level: *logLevel, JSON: *logJSON, File: *logFile}
}

// newLogger builds the root logger. Console output goes to stderr, the optional file sink is rotated by lumberjack.
func newLogger(cfg logConfig) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEnc zapcore.Encoder
	if cfg.JSON {
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		devCfg := encCfg
		devCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		consoleEnc = consoleEncoder{zapcore.NewConsoleEncoder(devCfg)}
	}
	cores := []zapcore.Core{zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), lvl)}

	if cfg.File != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100, // megabytes
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, lvl))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Named("wormcore"), nil
}
