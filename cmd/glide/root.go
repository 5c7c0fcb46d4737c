package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rahul/glide/internal/types"
)

// localOwner owns flows created from the command line.
const localOwner = "local"

var (
	configPath string
	verbose    bool
	flowRef    string
)

var rootCmd = &cobra.Command{
	Use:   "glide",
	Short: "Break overwhelming tasks into small, doable steps",
	Long: `Glide turns a task into a flow of short steps with time estimates and
completion cues. Steps that still feel too big can be split in two.

Run 'glide serve' to talk to Glide over Telegram or Discord, or use the
subcommands below to manage flows from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("✗"), types.UserMessage(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.json or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print structured events to stderr")

	for _, cmd := range []*cobra.Command{splitCmd, showCmd, doneCmd, renameCmd, exportCmd} {
		cmd.Flags().StringVarP(&flowRef, "flow", "f", "1", "flow number from 'glide flows' or a flow id")
	}
	doneCmd.Flags().Bool("undo", false, "mark the step as not done")
	exportCmd.Flags().StringP("out", "o", "", "write to a file instead of stdout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(flowsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(chatCmd)
}
