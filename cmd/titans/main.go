package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	cfg     runConfig
	verbose bool
	logger  zerolog.Logger
)

// rootCmd is the base command for the titans CLI
var rootCmd = &cobra.Command{
	Use:   "titans",
	Short: "TITANS digit cognition over a capsule network",
	Long: `titans trains and runs a capsule network digit classifier and the
five-module cognitive pipeline around it: perception, surprise-gated
memory, abstraction, knowledge-graph reasoning and action selection.
Every cognitive trace can be appended to a hash-chained step log.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
		return loadConfig(cfgPath, &cfg)
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("titans - capsule network digit cognition")
		fmt.Println("Use 'titans train' to train, 'titans trace' to run the cognitive pipeline")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
