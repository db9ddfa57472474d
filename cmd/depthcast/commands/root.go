package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "depthcast",
		Short: "depthcast - depth camera RTSP streaming service",
		Long: `depthcast captures the infrared, color and audio streams of a depth
camera and republishes them over RTSP.

The infrared stream is tone-mapped through a runtime-tunable lookup table;
edits to the tuning file are picked up without restarting the service. An
HTTP API exposes tuning, status, Prometheus metrics and an MJPEG preview.`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/depthcast/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "HTTP API port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("tuning-file", "", "infrared tuning file (default is infrared_tuning.json)")

	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("tuning_file", rootCmd.PersistentFlags().Lookup("tuning-file"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
