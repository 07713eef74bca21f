package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/norm/focusd/internal/config"
	"github.com/norm/focusd/internal/control"
	"github.com/norm/focusd/internal/controlfile"
)

var rootCmd = &cobra.Command{
	Use:   "focusd",
	Short: "Productivity monitor",
	Long: `focusd samples what is on screen at a fixed interval, asks a language
model whether it looks productive, and escalates from a notification to
blocking prompts to a screen full of warning windows while unproductive
checks keep piling up in the recent window.

Answers to prompts, and the break/disable commands, are delivered to the
running monitor through its control directory.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FOCUSD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ~/.config/focusd/config.toml)")
	rootCmd.PersistentFlags().String("state-dir", "", "state directory (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("state-dir", rootCmd.PersistentFlags().Lookup("state-dir"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(requestCmd("break", "Ask the running monitor to take a break", control.ResponseBreak))
	rootCmd.AddCommand(requestCmd("disable", "Stop the running monitor for good", control.ResponseDisable))
	rootCmd.AddCommand(initConfigCmd())
}

// loadConfig loads the config file named by --config and applies --state-dir.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if dir := viper.GetString("state-dir"); dir != "" && dir != cfg.StateDir {
		if cfg.LogDir == filepath.Join(cfg.StateDir, "log") {
			cfg.LogDir = filepath.Join(dir, "log")
		}
		cfg.StateDir = dir
	}
	return cfg, nil
}

func requestCmd(use, short string, resp control.Response) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := controlfile.Request(cfg.ControlDir(), resp); err != nil {
				return fmt.Errorf("send %s request: %w", resp, err)
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"request": string(resp), "control_dir": cfg.ControlDir()})
			}
			fmt.Printf("%s request sent\n", resp)
			return nil
		},
	}
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a sample config file populated with the defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("config")
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = config.Path()
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
