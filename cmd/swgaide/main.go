package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/twistedatrocity/swgaide/internal/config"
	"github.com/twistedatrocity/swgaide/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "swgaide",
	Short: "SWGAide - resource report reconciliation",
	Long: `SWGAide merges a character's survey reports with the galaxy's resource catalog,
submits what the catalog is missing, and collects stats for new resources
through an editable notes file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		if off, _ := cmd.Flags().GetBool("no-interactive"); off {
			cfg.Interactive = false
		}
		logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
		return nil
	},
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	cfgFile string
	cfg     config.Config
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default .swgaide.yaml)")
	flags.String("character", "", "character whose reports are merged")
	flags.String("galaxy", "", "galaxy name")
	flags.String("db", "", "path to the SQLite database")
	flags.String("reports", "", "directory of survey report files")
	flags.String("catalog", "", "catalog backend (local, remote)")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error, off)")
	flags.Bool("no-interactive", false, "answer questions from policy instead of prompting")

	_ = viper.BindPFlag("character", flags.Lookup("character"))
	_ = viper.BindPFlag("galaxy", flags.Lookup("galaxy"))
	_ = viper.BindPFlag("db_path", flags.Lookup("db"))
	_ = viper.BindPFlag("reports_dir", flags.Lookup("reports"))
	_ = viper.BindPFlag("catalog.backend", flags.Lookup("catalog"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))

	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(auditCmd)
}

func initConfig() {
	if err := config.Init(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
