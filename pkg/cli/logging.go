package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// writerHook formats entries of the given levels onto w.
type writerHook struct {
	mu        sync.Mutex
	w         io.Writer
	levels    []logrus.Level
	formatter logrus.Formatter
}

func (h *writerHook) Levels() []logrus.Level {
	return h.levels
}

func (h *writerHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(line)
	return err
}

func levelsUpTo(max logrus.Level) []logrus.Level {
	var out []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= max {
			out = append(out, l)
		}
	}
	return out
}

// addLoggingFlags registers the --logfile and -v/--verbose flags both
// commands share.
func addLoggingFlags(flags *pflag.FlagSet, logfile *string, verbose *bool, defaultLogfile, verboseUsage string) {
	flags.StringVar(logfile, "logfile", defaultLogfile, "log file receiving every message")
	flags.BoolVarP(verbose, "verbose", "v", false, verboseUsage)
}

// SetupLogging routes logger output to console at info level, or debug
// when verbose, and appends every entry to logfile when one is given. The
// returned closer releases the log file.
func SetupLogging(logger *logrus.Logger, console io.Writer, verbose bool, logfile string) (io.Closer, error) {
	consoleLevel := logrus.InfoLevel
	if verbose {
		consoleLevel = logrus.DebugLevel
	}
	color := isTerminal(console)

	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	logger.AddHook(&writerHook{
		w:      console,
		levels: levelsUpTo(consoleLevel),
		formatter: &logrus.TextFormatter{
			DisableTimestamp: true,
			ForceColors:      color,
			DisableColors:    !color,
		},
	})

	if logfile == "" {
		return nopCloser{}, nil
	}
	f, err := os.OpenFile(logfile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file: %w", err)
	}
	logger.AddHook(&writerHook{
		w:         f,
		levels:    logrus.AllLevels,
		formatter: &logrus.TextFormatter{FullTimestamp: true, DisableColors: true},
	})
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
