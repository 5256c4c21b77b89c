package commands

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
	"github.com/roasbeef/troupe/actor"
	"github.com/roasbeef/troupe/internal/build"
	"github.com/roasbeef/troupe/transport/quicwire"
)

// setupLogging wires btclog handlers for the console and, when a log
// directory is configured, a rotating log file. The returned closer flushes
// the file stream.
func setupLogging() (func(), error) {
	level, ok := btclog.LevelFromString(logLevel)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", logLevel)
	}

	var handlers []btclogv2.Handler

	consoleHandler := btclogv2.NewDefaultHandler(os.Stderr)
	handlers = append(handlers, consoleHandler)

	closer := func() {}

	if logDir != "" {
		logRotator, err := build.NewRotatingLogWriter(
			build.RotatorConfig{
				LogDir:           logDir,
				MaxLogFiles:      maxLogFiles,
				MaxLogFileSizeMB: maxLogFileSize,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("init log rotation: %w", err)
		}

		fmt.Printf("logging to %s\n", logRotator.Path())

		fileHandler := btclogv2.NewDefaultHandler(logRotator)
		handlers = append(handlers, fileHandler)
		closer = func() { _ = logRotator.Close() }
	}

	// Mirror each record onto every handler (console + file).
	combined := build.NewHandlerSet(level, handlers...)

	logger := btclogv2.NewSLogger(combined)
	actor.UseLogger(logger.WithPrefix(actor.Subsystem))
	quicwire.UseLogger(logger.WithPrefix(quicwire.Subsystem))

	return closer, nil
}
