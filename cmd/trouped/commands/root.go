package commands

import (
	"github.com/spf13/cobra"
)

var (
	// logDir is the directory for rotated log files; empty disables
	// file logging.
	logDir string

	// logLevel is the console and file logging level.
	logLevel string

	// maxLogFiles caps the number of rotated log files kept on disk.
	maxLogFiles int

	// maxLogFileSize caps a single log file's size in MB.
	maxLogFileSize int
)

// rootCmd is the base command for the daemon.
var rootCmd = &cobra.Command{
	Use:   "trouped",
	Short: "Troupe actor runtime demo daemon",
	Long: `Trouped hosts a small actor system reachable over the QUIC wire
transport.

The serve command runs an echo actor and prints its identity; the ping
command asks that actor from a second process and prints the reply.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(
		&logDir, "log-dir", "",
		"Directory for log files (empty to disable file logging)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info",
		"Logging level: trace, debug, info, warn, error",
	)
	rootCmd.PersistentFlags().IntVar(
		&maxLogFiles, "max-log-files", 0,
		"Maximum number of rotated log files to keep (0 for default)",
	)
	rootCmd.PersistentFlags().IntVar(
		&maxLogFileSize, "max-log-file-size", 0,
		"Maximum log file size in MB before rotation (0 for default)",
	)

	// Add subcommands.
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pingCmd)
}
