package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/rafall04/cctv-sub000/server"
	"github.com/rafall04/cctv-sub000/tier"
)

var (
	serveAddr     string
	openViewer    bool
	skipFFmpegChk bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the stream server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides the config")
	serveCmd.Flags().BoolVar(&openViewer, "open", false, "open the viewer page in a browser once listening")
	serveCmd.Flags().BoolVar(&skipFFmpegChk, "skip-ffmpeg-check", false, "start even if ffmpeg is missing")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	source := server.FFmpegSource{Log: logger}
	if !skipFFmpegChk {
		if err := source.Available(); err != nil {
			return err
		}
	}

	hostTier, err := cfg.ResolveTier()
	if err != nil {
		logger.Warn().Err(err).Msg("tier detection failed, using medium")
		hostTier = tier.Medium
	}
	logger.Info().
		Str("tier", hostTier.String()).
		Dur("pause_delay", tier.PauseDelay(hostTier)).
		Msg("device tier")

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(cfg, hostTier, logger, server.WithFrameSource(source))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	if openViewer {
		url := "http://" + localAddr(cfg.Server.Addr) + "/viewer"
		if err := browser.OpenURL(url); err != nil {
			logger.Warn().Err(err).Str("url", url).Msg("open browser")
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server exited")
	return nil
}

// localAddr turns a listen address such as ":8091" into a dialable host:port.
func localAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
