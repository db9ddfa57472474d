package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/depthcast/depthcast/internal/api"
	"github.com/depthcast/depthcast/internal/config"
	"github.com/depthcast/depthcast/internal/logger"
	"github.com/depthcast/depthcast/internal/metrics"
	"github.com/depthcast/depthcast/internal/pipeline"
	"github.com/depthcast/depthcast/internal/preview"
	"github.com/depthcast/depthcast/internal/publish"
	"github.com/depthcast/depthcast/internal/sensor"
	"github.com/depthcast/depthcast/internal/tonemap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the depthcast streaming service",
	Long: `Start capture, tone mapping and RTSP publishing.

The infrared tuning file is polled while the service runs; valid edits take
effect on the next frame without a restart.`,
	Example: `  # Start with the default configuration
  depthcast serve

  # Start with synthetic test sources, no camera needed
  depthcast serve --synthetic

  # Publish to a different RTSP server
  depthcast serve --rtsp-url rtsp://10.0.0.5:8554 --rtsp-username cam --rtsp-password secret`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Bool("synthetic", false, "use generated test sources instead of the camera")
	serveCmd.Flags().Bool("no-publish", false, "disable RTSP publishing, keep the HTTP API and preview")
	serveCmd.Flags().String("rtsp-url", "", "RTSP server base URL (default is rtsp://127.0.0.1:8554)")
	serveCmd.Flags().String("rtsp-username", "", "RTSP basic auth username")
	serveCmd.Flags().String("rtsp-password", "", "RTSP basic auth password")

	viper.BindPFlag("synthetic", serveCmd.Flags().Lookup("synthetic"))
	viper.BindPFlag("rtsp.base_url", serveCmd.Flags().Lookup("rtsp-url"))
	viper.BindPFlag("rtsp.username", serveCmd.Flags().Lookup("rtsp-username"))
	viper.BindPFlag("rtsp.password", serveCmd.Flags().Lookup("rtsp-password"))

	rootCmd.AddCommand(serveCmd)
}

// loadConfig builds the effective configuration from the config file plus
// command-line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	mgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return config.Config{}, fmt.Errorf("load configuration: %w", err)
	}
	cfg := mgr.Get()

	if viper.IsSet("server_port") && viper.GetInt("server_port") > 0 {
		cfg.ServerPort = viper.GetInt("server_port")
	}
	if viper.IsSet("log_level") && viper.GetString("log_level") != "" {
		cfg.LogLevel = viper.GetString("log_level")
	}
	if viper.IsSet("tuning_file") && viper.GetString("tuning_file") != "" {
		cfg.TuningFile = viper.GetString("tuning_file")
	}
	if viper.GetBool("synthetic") {
		cfg.Synthetic = true
	}
	if url := viper.GetString("rtsp.base_url"); url != "" {
		cfg.RTSP.BaseURL = url
	}
	if user := viper.GetString("rtsp.username"); user != "" {
		cfg.RTSP.Username = user
	}
	if pw := viper.GetString("rtsp.password"); pw != "" {
		cfg.RTSP.Password = pw
	}
	if noPublish, _ := cmd.Flags().GetBool("no-publish"); noPublish {
		cfg.Publish = false
	}
	return cfg, nil
}

// authHandoffPath is where the RTSP credentials are written for the RTSP
// server process to pick up.
func authHandoffPath() string {
	return filepath.Join(os.TempDir(), "depthcast-rtsp-auth.json")
}

// writeAuthHandoff publishes the RTSP credentials for a co-located RTSP
// server to read at startup. Returns a cleanup function.
func writeAuthHandoff(username, password string) (func(), error) {
	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal auth handoff: %w", err)
	}
	path := authHandoffPath()
	if err := os.WriteFile(path, payload, 0600); err != nil {
		return nil, fmt.Errorf("write auth handoff: %w", err)
	}
	logger.WithComponent("serve").Info().Str("path", path).Msg("RTSP auth handoff written")
	return func() { os.Remove(path) }, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	log := logger.WithComponent("serve")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := tonemap.NewStore(cfg.TuningFile)
	store.LoadOrDefault()
	m := metrics.New()

	if cfg.Publish && cfg.RTSP.Username != "" && cfg.RTSP.Password != "" {
		cleanup, err := writeAuthHandoff(cfg.RTSP.Username, cfg.RTSP.Password)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	// Capture sources.
	var (
		irSource    sensor.InfraredSource
		colorSource sensor.ColorSource
		audioSource sensor.AudioSource
	)
	if cfg.Synthetic {
		log.Info().Msg("Using synthetic capture sources")
		irSource = sensor.NewSyntheticInfrared(cfg.Infrared.Width, cfg.Infrared.Height, cfg.Infrared.FPS)
		if cfg.Color.Enabled {
			colorSource = sensor.NewSyntheticColor(cfg.Color.Width, cfg.Color.Height, cfg.Color.FPS)
		}
		if cfg.Audio.Enabled {
			audioSource = sensor.NewSyntheticAudio(cfg.Audio.SampleRate)
		}
	} else {
		src, err := sensor.NewGstInfraredSource(cfg.Infrared.Device, cfg.Infrared.Width, cfg.Infrared.Height, cfg.Infrared.FPS)
		if err != nil {
			return err
		}
		irSource = src
		if cfg.Color.Enabled {
			colorSource, err = sensor.NewGstColorSource(cfg.Color.Device, cfg.Color.Width, cfg.Color.Height, cfg.Color.FPS)
			if err != nil {
				irSource.Close()
				return err
			}
		}
		if cfg.Audio.Enabled {
			audioSource, err = sensor.NewGstAudioSource(cfg.Audio.SampleRate)
			if err != nil {
				log.Warn().Err(err).Msg("Audio capture unavailable, continuing without audio")
				audioSource = nil
			}
		}
	}
	if err := sensor.WaitAvailable(ctx, irSource, 10, time.Second); err != nil {
		irSource.Close()
		return fmt.Errorf("infrared device: %w", err)
	}
	irSource = sensor.NewBufferedInfrared(ctx, irSource, 4, func() {
		m.FramesDropped.WithLabelValues("infrared").Inc()
	})

	// Publishing sinks. With publishing disabled the pipelines are driven
	// purely by preview demand.
	var (
		irPrimary  publish.VideoSink = publish.NewNullSink(false)
		colorSink  publish.VideoSink = publish.NewNullSink(false)
		audioSink  publish.AudioSink = publish.NewNullSink(false)
		publishers []*publish.GstPublisher
	)
	if cfg.Publish {
		irPub := publish.NewGstPublisher(publish.GstConfig{
			Name:         "infrared",
			Location:     cfg.RTSP.BaseURL + "/infrared",
			Username:     cfg.RTSP.Username,
			Password:     cfg.RTSP.Password,
			Width:        cfg.Infrared.Width,
			Height:       cfg.Infrared.Height,
			FPS:          cfg.Infrared.FPS,
			VideoBitrate: cfg.Infrared.Bitrate,
		})
		if err := irPub.Start(); err != nil {
			return err
		}
		publishers = append(publishers, irPub)
		irPrimary = irPub

		if cfg.Color.Enabled {
			colorPub := publish.NewGstPublisher(publish.GstConfig{
				Name:         "color",
				Location:     cfg.RTSP.BaseURL + "/color",
				Username:     cfg.RTSP.Username,
				Password:     cfg.RTSP.Password,
				Width:        cfg.Color.Width,
				Height:       cfg.Color.Height,
				FPS:          cfg.Color.FPS,
				VideoBitrate: cfg.Color.Bitrate,
				WithAudio:    audioSource != nil,
				SampleRate:   cfg.Audio.SampleRate,
				AudioBitrate: cfg.Audio.Bitrate,
			})
			if err := colorPub.Start(); err != nil {
				return err
			}
			publishers = append(publishers, colorPub)
			colorSink = colorPub
			if audioSource != nil {
				audioSink = colorPub
			}
		}
	}
	defer func() {
		for _, p := range publishers {
			p.Stop()
		}
	}()

	previewSink := preview.NewMJPEG(cfg.Infrared.Width, cfg.Infrared.Height, store.Snapshot)
	irSink := publish.NewTee(irPrimary, previewSink)

	engine := tonemap.NewEngine(store, time.Duration(cfg.EnginePollIntervalMS)*time.Millisecond)

	sup := pipeline.NewSupervisor(4)
	sup.Start(ctx, "infrared", pipeline.NewInfrared(irSource, irSink, engine, m).Run)
	if colorSource != nil {
		sup.Start(ctx, "color", pipeline.NewColor(colorSource, colorSink, m).Run)
	}
	if audioSource != nil {
		sup.Start(ctx, "audio", pipeline.NewAudio(audioSource, audioSink, m).Run)
	}
	sup.Start(ctx, "tuning", func(ctx context.Context) error {
		return pipeline.WatchTuning(ctx, store, time.Duration(cfg.TuningPollIntervalMS)*time.Millisecond, m)
	})

	server := api.NewServer(store, previewSink, m, version)
	go func() {
		if err := server.Start(cfg.ServerPort); err != nil {
			log.Error().Err(err).Msg("HTTP API failed")
			stop()
		}
	}()

	log.Info().
		Int("port", cfg.ServerPort).
		Str("rtsp", cfg.RTSP.BaseURL).
		Bool("publish", cfg.Publish).
		Msg("depthcast is running")

	// A single pipeline failure is logged and its siblings keep running;
	// only a signal stops the service.
	go func() {
		for r := range sup.Results() {
			if r.Err != nil {
				log.Error().Err(r.Err).Str("pipeline", r.Name).Msg("Pipeline exited with error")
			}
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	irSource.Close()
	if colorSource != nil {
		colorSource.Close()
	}
	if audioSource != nil {
		audioSource.Close()
	}
	sup.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown did not complete cleanly")
	}
	return nil
}
