package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wgdzlh/coglib"
	"github.com/wgdzlh/coglib/internal/server"
	"github.com/wgdzlh/coglib/log"
	"github.com/wgdzlh/coglib/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP tile and sampling API",
	Long: `Start an HTTP server exposing rendered overlay tiles and point sampling
for the configured COG data source.

Endpoints:
  GET /health
  GET /api/v1/variables
  GET /api/v1/tiles/{variable}/{depth}/{z}/{x}/{y}.png
  GET /api/v1/sample?variable=&depth=&lat=&lon=
  GET /api/v1/profile?variable=&lat=&lon=
  GET /api/v1/clip?variable=&depth=&bbox=minLon,minLat,maxLon,maxLat`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	serveCmd.Flags().StringP("data-url", "u", "", "base URL of the COG files (required)")
	serveCmd.Flags().IntP("tilesize", "t", coglib.DEFAULT_TILE_SIZE, "tile size in pixels")
	serveCmd.Flags().String("resample", "nearest", "resampling method (nearest|bilinear)")
	serveCmd.Flags().Bool("grey", false, "render greyscale tiles instead of the color ramp")
	serveCmd.Flags().Bool("global-norm", false, "normalize tiles against whole-raster statistics instead of per tile")
	serveCmd.Flags().String("tmp-dir", "", "directory for clip output files (default: system temp)")
	serveCmd.Flags().String("log-level", "info", "log level (debug|info|warn|error)")

	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("data-url", serveCmd.Flags().Lookup("data-url"))
	viper.BindPFlag("tilesize", serveCmd.Flags().Lookup("tilesize"))
	viper.BindPFlag("resample", serveCmd.Flags().Lookup("resample"))
	viper.BindPFlag("grey", serveCmd.Flags().Lookup("grey"))
	viper.BindPFlag("global-norm", serveCmd.Flags().Lookup("global-norm"))
	viper.BindPFlag("tmp-dir", serveCmd.Flags().Lookup("tmp-dir"))
	viper.BindPFlag("log-level", serveCmd.Flags().Lookup("log-level"))
}

func runServe(cmd *cobra.Command, args []string) error {
	log.SetLevel(viper.GetString("log-level"))

	baseURL := viper.GetString("data-url")
	if baseURL == "" {
		return fmt.Errorf("base URL of the COG files is required (use --data-url)")
	}
	alg, err := coglib.ParseResampleAlg(viper.GetString("resample"))
	if err != nil {
		return fmt.Errorf("invalid resample method: %s", viper.GetString("resample"))
	}
	tmpDir := viper.GetString("tmp-dir")
	if tmpDir == "" {
		if tmpDir, err = utils.GetUniqSubDir(os.TempDir()); err != nil {
			return err
		}
	}

	apiServer := server.New(server.Config{
		BaseURL:    baseURL,
		TileSize:   viper.GetInt("tilesize"),
		Alg:        alg,
		Grey:       viper.GetBool("grey"),
		GlobalNorm: viper.GetBool("global-norm"),
		TmpDir:     tmpDir,
	}, version)
	defer apiServer.Close()

	timeout := viper.GetDuration("server.timeout")
	addr := fmt.Sprintf("%s:%d", viper.GetString("server.bind"), viper.GetInt("server.port"))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))

	// CORS middleware so map front-ends on other origins can load tiles
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if req.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, req)
		})
	})

	r.Mount("/", apiServer.Routes())

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: timeout,
		// 瓦片与剪切响应可能较大，写超时放宽
		WriteTimeout: 2 * timeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		fmt.Fprintf(cmd.ErrOrStderr(), "\nShutting down server...\n")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Server shutdown error: %v\n", err)
		}
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "Starting cogserve on %s\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Data source: %s\n", baseURL)
	fmt.Fprintf(cmd.ErrOrStderr(), "Tile endpoint: http://%s/api/v1/tiles/{variable}/{depth}/{z}/{x}/{y}.png\n", addr)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}

	return nil
}
