package main

import (
	"fmt"
	"os"

	"github.com/simbiota/simbiotad/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	background bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "simbiota",
	Short: "On-access antivirus daemon built on fanotify and TLSH similarity matching",
	Long: `simbiota is a lightweight Linux on-access antivirus daemon.

It marks files and directories with fanotify, fingerprints opened content
with TLSH, and compares the fingerprint against a signature database to
allow or deny access in real time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (default: "+config.DefaultConfigPath+")")
	rootCmd.Flags().BoolVar(&background, "bg", false, "daemonize into the background")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "force console logging to debug level")
}

// Execute runs the CLI and returns the process exit code per spec §2.3.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var ec exitError
		if asExitError(err, &ec) {
			return int(ec)
		}
		fmt.Fprintln(os.Stderr, "simbiota:", err)
		return ExitConfigError
	}
	return ExitOK
}

func asExitError(err error, out *exitError) bool {
	ec, ok := err.(exitError)
	if ok {
		*out = ec
	}
	return ok
}
