package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
	"github.com/thinkparq/devicemapper-go/dm"
	"github.com/thinkparq/devicemapper-go/logger"
)

// Viper keys for the global config. Should be used when accessing it instead of raw strings.
// Currently these are also used by the frontend for command line flag and env variable names.
const (
	// Tells the command to print additional, normally hidden info. An example would be the
	// kernel event numbers which are mostly useful for debugging udev interaction.
	DebugKey = "debug"
	// Prints values in their raw, base form, without adding units and SI/IEC prefixes.
	RawKey = "raw"
	// Set the log level (0 - least verbosity, 5 - highest verbosity).
	LogLevelKey = "log-level"
	// Sets up a reasonable default development logging configuration. Logging is enabled at
	// DebugLevel and above, and uses a console encoder. Logs are written to standard error.
	// Stacktraces are included on logs of WarnLevel and above. DPanicLevel logs will panic.
	LogDeveloperKey = "log-developer"
	// Print only the given columns of a table. Applied automatically when cmdfmt.NewPrintomatic()
	// is used. "all" prints all available columns, not only the default ones.
	ColumnsKey = "columns"
	// Determines the number of rows to be printed before the header is repeated. Also determines
	// how often output is actually flushed to stdout. If set to 0, should not print a header at
	// all and flush each row automatically.
	PageSizeKey = "page-size"
	OutputKey   = "output"
	// Skip the udev rendezvous on state-changing commands. Use when no device-mapper udev rules
	// are installed, otherwise commands may block waiting for an acknowledgement that never
	// comes.
	NoUdevSyncKey = "no-udev-sync"
)

// OutputType is used to control what type of structured output should be printed.
type OutputType string

const (
	OutputTable      OutputType = "table"
	OutputJSON       OutputType = "json"
	OutputJSONPretty OutputType = "json-pretty"
	OutputNDJSON     OutputType = "ndjson"
)

var (
	OutputOptions = []fmt.Stringer{OutputTable, OutputJSON, OutputJSONPretty, OutputNDJSON}
)

func (t OutputType) String() string {
	switch t {
	case OutputTable:
		return "table"
	case OutputJSON:
		return "json"
	case OutputJSONPretty:
		return "json-pretty"
	case OutputNDJSON:
		return "ndjson"
	default:
		return "unknown"
	}
}

// The global control device handle. Opened lazily because most commands need it but some (like
// version or help) must still work when /dev/mapper/control is not accessible.
var (
	dmMutex  sync.Mutex
	dmClient *dm.DM
)

// Client returns the shared handle on the device-mapper control device, opening it on first use.
// Opening requires CAP_SYS_ADMIN, so commands should return the error as-is to let the user see
// the underlying permission problem.
func Client() (*dm.DM, error) {
	dmMutex.Lock()
	defer dmMutex.Unlock()
	if dmClient != nil {
		return dmClient, nil
	}
	log, err := GetLogger()
	if err != nil {
		return nil, err
	}
	dmClient, err = dm.New(dm.WithLogger(log.Logger))
	if err != nil {
		return nil, err
	}
	return dmClient, nil
}

func Cleanup() {
	dmMutex.Lock()
	defer dmMutex.Unlock()
	if dmClient != nil {
		dmClient.Close()
		dmClient = nil
	}
}

var globalLogger *logger.Logger

// Returns a global logger that logs to stderr. Don't rely solely on the logger to communicate
// important information to the user since all non-fatal log messages may be disabled by default.
// The logger DOES NOT replace the need to return meaningful errors.
func GetLogger() (*logger.Logger, error) {
	var err error
	var invalidLogLevel = false
	if globalLogger == nil {
		logLevel := viper.GetInt(LogLevelKey)
		if logLevel < 0 || logLevel > 5 {
			// If the user gave an invalid log level ignore it and set logging to the highest
			// verbosity. This means we can generally always return a valid logger so most callers
			// don't need to check for an error from GetLogger().
			logLevel = 5
			invalidLogLevel = true
		}
		globalLogger, err = logger.New(logger.Config{
			Level:     int8(logLevel),
			Type:      logger.StdErr,
			Developer: viper.GetBool(LogDeveloperKey),
		})
		if err != nil {
			return nil, err
		}
		if invalidLogLevel {
			globalLogger.Debug("enabling debug logging and ignoring user provided log level (was not in the range 0-5)")
		}
	}
	return globalLogger, nil
}

// UdevFlags derives the per-command udev option set from the global config. State-changing
// commands pass the result so that udev rules are told whether to process the event, and so the
// rendezvous handshake is armed unless disabled.
func UdevFlags() []dm.Option {
	if viper.GetBool(NoUdevSyncKey) {
		// Without UdevPrimarySource no semaphore is created and the cookie stays zero, which
		// tells the udev rules not to signal completion.
		return nil
	}
	return []dm.Option{dm.WithUdevFlags(dm.UdevPrimarySource)}
}
