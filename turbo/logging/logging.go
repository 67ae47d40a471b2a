package logging

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Flag struct {
	Name  string
	Usage string
}

var (
	LogVerbosityFlag        = Flag{Name: "verbosity", Usage: "Set the log level for console logs (deprecated, use --log.console.verbosity)"}
	LogConsoleVerbosityFlag = Flag{Name: "log.console.verbosity", Usage: "Set the log level for console logs"}
	LogDirPathFlag          = Flag{Name: "log.dir.path", Usage: "Path to store user and error logs to disk, defaults to <datadir>/logs"}
	LogDirVerbosityFlag     = Flag{Name: "log.dir.verbosity", Usage: "Set the log verbosity for logs stored to disk"}
	LogJsonFlag             = Flag{Name: "log.json", Usage: "Format console logs with JSON"}
	LogConsoleJsonFlag      = Flag{Name: "log.console.json", Usage: "Format console logs with JSON"}
	LogDirJsonFlag          = Flag{Name: "log.dir.json", Usage: "Format file logs with JSON"}
)

// RegisterFlags adds the logging flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(LogVerbosityFlag.Name, "", LogVerbosityFlag.Usage)
	fs.String(LogConsoleVerbosityFlag.Name, "info", LogConsoleVerbosityFlag.Usage)
	fs.String(LogDirPathFlag.Name, "", LogDirPathFlag.Usage)
	fs.String(LogDirVerbosityFlag.Name, "info", LogDirVerbosityFlag.Usage)
	fs.Bool(LogJsonFlag.Name, false, LogJsonFlag.Usage)
	fs.Bool(LogConsoleJsonFlag.Name, false, LogConsoleJsonFlag.Usage)
	fs.Bool(LogDirJsonFlag.Name, false, LogDirJsonFlag.Usage)
}

func flagString(fs *pflag.FlagSet, name string) string {
	if f := fs.Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}

func flagBool(fs *pflag.FlagSet, name string) bool {
	v, err := fs.GetBool(name)
	return err == nil && v
}

// SetupLoggerCmd configures the root logger from the flags of cmd and returns it.
// The legacy --verbosity flag is used when --log.console.verbosity was not set.
func SetupLoggerCmd(filePrefix string, cmd *cobra.Command) log.Logger {
	fs := cmd.Flags()

	var consoleJson = flagBool(fs, LogJsonFlag.Name) || flagBool(fs, LogConsoleJsonFlag.Name)
	var dirJson = flagBool(fs, LogDirJsonFlag.Name)

	consoleVerbosity := flagString(fs, LogConsoleVerbosityFlag.Name)
	if !fs.Changed(LogConsoleVerbosityFlag.Name) && flagString(fs, LogVerbosityFlag.Name) != "" {
		consoleVerbosity = flagString(fs, LogVerbosityFlag.Name)
	}
	consoleLevel, lErr := tryGetLogLevel(consoleVerbosity)
	if lErr != nil {
		consoleLevel = log.LvlInfo
	}

	dirLevel, dErr := tryGetLogLevel(flagString(fs, LogDirVerbosityFlag.Name))
	if dErr != nil {
		dirLevel = log.LvlInfo
	}

	dirPath := flagString(fs, LogDirPathFlag.Name)
	if dirPath == "" {
		datadir := flagString(fs, "datadir")
		if datadir != "" {
			dirPath = filepath.Join(datadir, "logs")
		}
	}
	initSeparatedLogging(filePrefix, dirPath, consoleLevel, dirLevel, consoleJson, dirJson)
	return log.Root()
}

func initSeparatedLogging(
	filePrefix string,
	dirPath string,
	consoleLevel log.Lvl,
	dirLevel log.Lvl,
	consoleJson bool,
	dirJson bool) {

	logger := log.Root()

	if consoleJson {
		log.Root().SetHandler(log.LvlFilterHandler(consoleLevel, log.StreamHandler(os.Stderr, log.JsonFormat())))
	} else {
		log.Root().SetHandler(log.LvlFilterHandler(consoleLevel, log.StderrHandler))
	}

	if len(dirPath) == 0 {
		logger.Warn("no log dir set, console logging only")
		return
	}

	err := os.MkdirAll(dirPath, 0764)
	if err != nil {
		logger.Warn("failed to create log dir, console logging only")
		return
	}

	dirFormat := log.TerminalFormatNoColor()
	if dirJson {
		dirFormat = log.JsonFormat()
	}

	lumberjack := &lumberjack.Logger{
		Filename:   filepath.Join(dirPath, filePrefix+".log"),
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, //days
	}
	userLog := log.StreamHandler(lumberjack, dirFormat)

	mux := log.MultiHandler(logger.GetHandler(), log.LvlFilterHandler(dirLevel, userLog))
	log.Root().SetHandler(mux)
	logger.Info("logging to file system", "log dir", dirPath, "file prefix", filePrefix, "log level", dirLevel, "json", dirJson)
}

func tryGetLogLevel(s string) (log.Lvl, error) {
	lvl, err := log.LvlFromString(s)
	if err != nil {
		l, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		return log.Lvl(l), nil
	}
	return lvl, nil
}
