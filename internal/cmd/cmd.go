// Package cmd defines the quatpipe command tree.
package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/app"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "quatpipe",
	Short: "serial quaternion ingest, drift-suppressing filter and MQTT fan-out",
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug || cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	return cfg, nil
}

var producerCmd = &cobra.Command{
	Use:   "producer",
	Short: "read the serial port and publish filtered samples over MQTT",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return app.RunProducer(cfg)
	},
}

var imuProducerCmd = &cobra.Command{
	Use:   "imu-producer",
	Short: "sample the on-board MPU-9250 and publish fused orientation",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		mock, _ := cmd.Flags().GetBool("mock")
		return app.RunIMUProducer(cfg, mock)
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "subscribe and print pose and rate lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return app.RunConsole(cfg)
	},
}

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "serve the latest pose over HTTP and an interpolated websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return app.RunWeb(cfg)
	},
}

// Execute runs the command tree.
func Execute() {
	rootCmd.PersistentFlags().String("config", "", "configuration file path")
	rootCmd.PersistentFlags().Bool("debug", false, "toggle debug logging")
	imuProducerCmd.Flags().Bool("mock", false, "use the mock IMU source")

	rootCmd.AddCommand(producerCmd)
	rootCmd.AddCommand(imuProducerCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(webCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
