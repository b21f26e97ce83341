// Package logger provides the common logging setup for the devicemapper-go
// tools. It is a thin wrapper around zap that maps the traditional numeric
// log levels to zap levels and selects the log destination, so individual
// applications only carry a Config.
package logger

import (
	"fmt"
	"log/syslog"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a wrapper around zap.Logger that keeps a handle on the atomic
// level, so the log level can be reconfigured after the application has
// started.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Config represents the configuration for a Logger. The mapstructure tags
// allow it to be unmarshalled directly from viper.
type Config struct {
	Type            supportedLogTypes `mapstructure:"type"`
	File            string            `mapstructure:"file"`
	Level           int8              `mapstructure:"level"`
	MaxSize         int               `mapstructure:"max-size"`
	NumRotatedFiles int               `mapstructure:"num-rotated-files"`
	Developer       bool              `mapstructure:"developer"`
}

type supportedLogTypes string

const (
	StdErr  supportedLogTypes = "stderr"
	LogFile supportedLogTypes = "logfile"
	// The syslog type is the slowest logging option due to how zap log
	// messages need to be translated to syslog messages and severity levels.
	Syslog supportedLogTypes = "syslog"
)

// SupportedLogTypes is a slice of supported log types. Any log types added in
// the future must be added to this slice. It is used for printing help text,
// for example if an invalid type is specified.
var SupportedLogTypes = []supportedLogTypes{
	StdErr,
	LogFile,
	Syslog,
}

// New returns a new logger based on the provided configuration.
func New(newConfig Config) (*Logger, error) {

	logMgr := Logger{}

	// Use the opinionated Zap development configuration. This notably gives
	// us stack traces at warn and error levels.
	if newConfig.Developer {
		// Developer configurations ignore the configured level and always
		// log at debug.
		zapLevel, err := getLevel(5)
		if err != nil {
			return nil, err
		}
		logMgr.level = zap.NewAtomicLevelAt(zapLevel)

		cfg := zap.NewDevelopmentConfig()
		cfg.Level = logMgr.level
		l, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		logMgr.Logger = l
		return &logMgr, nil
	}

	// Otherwise build a production config based on the user settings:
	zapConfig := zap.NewProductionEncoderConfig()
	zapConfig.TimeKey = "timestamp"
	zapConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// Log in plaintext for now. A JSON option could be added later with
	// zapcore.NewJSONEncoder() if needed. IMPORTANT: If the encoding type
	// ever changes then the way we parse levels in SyslogWriteSyncer.Write()
	// MUST be updated accordingly.
	zapEncoder := zapcore.NewConsoleEncoder(zapConfig)

	zapLevel, err := getLevel(newConfig.Level)
	if err != nil {
		return nil, err
	}
	logMgr.level = zap.NewAtomicLevelAt(zapLevel)

	// zapcore.WriteSyncers handle writing the byte slices from the encoder
	// somewhere, so new log destinations only need a new WriteSyncer.
	var logDestination zapcore.WriteSyncer
	switch newConfig.Type {
	case StdErr:
		logDestination = zapcore.AddSync(os.Stderr)
	case LogFile:
		// Just being able to write to the provided log file is not
		// sufficient if we want to rotate log files. Make sure the directory
		// selected for logging exists and we can write to it.
		if err := ensureLogsAreWritable(newConfig.File); err != nil {
			return nil, err
		}

		logDestination = zapcore.AddSync(&lumberjack.Logger{
			Filename:   newConfig.File,
			MaxSize:    newConfig.MaxSize,
			MaxBackups: newConfig.NumRotatedFiles,
		})
	case Syslog:
		// Log at severity info when the actual priority cannot be parsed
		// from the message. The process name is the prefix tag so multiple
		// tools logging to the same syslog stay distinguishable.
		l, err := NewSyslogWriteSyncer(syslog.LOG_INFO|syslog.LOG_LOCAL0, os.Args[0])
		if err != nil {
			return nil, fmt.Errorf("unable to initialize syslog destination: %w", err)
		}
		logDestination = l
	default:
		return nil, fmt.Errorf("unsupported log type: %s", newConfig.Type)
	}

	logMgr.Logger = zap.New(zapcore.NewCore(zapEncoder, logDestination, logMgr.level))
	return &logMgr, nil
}

// SetLevel dynamically updates the log level of a running logger.
func (lm *Logger) SetLevel(newLevel int8) error {
	zapLevel, err := getLevel(newLevel)
	if err != nil {
		return err
	}
	if lm.level.Level() != zapLevel {
		lm.level.SetLevel(zapLevel)
		lm.Logger.Log(zapLevel, "set log level", zap.Any("logLevel", zapLevel))
	}
	return nil
}

// ensureLogsAreWritable verifies the log file's directory exists (creating it
// if needed) and that the file can be opened for appending.
func ensureLogsAreWritable(logFile string) error {
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("unable to write to log file: %w", err)
	}
	return f.Close()
}

// getLevel maps the traditional numeric log levels to Zap log levels.
func getLevel(newLevel int8) (zapcore.Level, error) {
	switch newLevel {
	case 1:
		return zapcore.WarnLevel, nil
	case 3:
		return zapcore.InfoLevel, nil
	case 5:
		return zapcore.DebugLevel, nil
	default:
		// If we used zapcore.InvalidLevel we could cause a panic. So instead
		// return a sane level just in case something decides to ignore the
		// error and use the level we return anyway.
		return zapcore.InfoLevel, fmt.Errorf("the provided log.level (%d) is invalid (must be 1, 3, or 5)", newLevel)
	}
}
