// Command r2deob recovers a symbolic arithmetic expression reproducing
// a binary function's observed input/output behavior.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "r2deob",
	Short: "Recover an arithmetic expression from emulator traces",
	Long: `r2deob synthesizes a symbolic arithmetic expression (+, -, *, /
over named input registers) that reproduces a binary function's
observed input/output behavior, given a set of traces.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug|info|warn|error")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", level, err)
		}
		logrus.SetLevel(lvl)
		return nil
	}
}

// Execute runs the command tree, printing any error to stderr.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return err
	}
	return nil
}

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
