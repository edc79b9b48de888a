package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/CZERTAINLY/camseeker/internal/log"
	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/service"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var (
	userConfigPath string // /default/config/path/camseeker on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagLogFormat      string // value of --log-format flag

	flagPorts  []int  // value of scan --port flag
	flagYes    bool   // value of scan --yes flag
	flagFormat string // value of scan --format flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "camseeker")
}

func main() {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is camseeker.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format, json or text")

	scanCmd.Flags().IntSliceVarP(&flagPorts, "port", "p", nil, "additional ports to scan")
	scanCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "run extended checks even when no camera indicators are found")
	scanCmd.Flags().StringVar(&flagFormat, "format", "", "report format, text, json or cdx")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initCamseeker

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("camseeker failed", "err", err)
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "camseeker",
	Short:        "Tool discovering IP cameras and auditing their exposure",
	SilenceUsage: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan <ip[:port]>",
	Short: "scan command probes a single host and prints the report",
	Args:  cobra.ExactArgs(1),
	RunE:  doScan,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a camseeker",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("camseeker: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:    %s\n", configPath)
		}
		fmt.Printf("camseeker: %s\n", info.Main.Version)
		fmt.Printf("go:        %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:    %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:      %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:     %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func doScan(cmd *cobra.Command, args []string) error {
	target, err := model.ParseTarget(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	attrs := slog.Group("camseeker",
		slog.String("cmd", "scan"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	if flagFormat != "" {
		config.Service.Format = flagFormat
	}
	opts := service.Options{
		Ports:     flagPorts,
		AssumeYes: flagYes,
		Confirm:   confirm(os.Stdin, os.Stderr),
	}
	return service.Scan(ctx, config, target, opts, os.Stdout)
}

func initCamseeker(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("CAMSEEKERCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, "camseeker.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.DefaultConfig()
		configPath = filepath.Join(userConfigPath, "camseeker.yaml")
		if err := storeConfig(configPath, config); err != nil {
			// read only home directories are fine, defaults are in memory
			slog.Warn("cannot store default configuration", "path", configPath, "error", err)
			configPath = ""
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error(d.Message, d.Attr("detail"))
			}
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	// flags have a precedence over config file
	if flagVerbose {
		config.Service.Verbose = true
	}
	if flagLogFormat != "" {
		config.Service.LogFormat = flagLogFormat
	}

	slog.SetDefault(log.New(os.Stderr, config.Service.Verbose, config.Service.LogFormat))

	slog.Debug("camseeker run", "configPath", configPath)
	slog.Debug("camseeker run", "config", config)
	return nil
}

func storeConfig(path string, cfg model.Config) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return enc.Close()
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
