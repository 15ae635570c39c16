package main

import (
	"bufio"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	httpadapter "github.com/cubebuddy/cubebuddy/internal/adapters/http"
	"github.com/cubebuddy/cubebuddy/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		logger := newLogger(os.Stdout, cfg.Log)
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		uc, ho, err := newService(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer ho.Close()

		h := httpadapter.New(uc, logger)
		h.MaxUploadBytes = cfg.Server.MaxUploadBytes
		tmpl := web.Templates()

		mux := http.NewServeMux()
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(web.StaticFS())))
		mux.Handle("GET /metrics", promhttp.Handler())
		mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			data := map[string]any{
				"Puzzles":    uc.Puzzles.All(),
				"Categories": uc.Categories(),
				"Reference":  uc.Reference(),
			}
			if err := tmpl.ExecuteTemplate(w, "index.tmpl", data); err != nil {
				http.Error(w, template.HTMLEscapeString(err.Error()), http.StatusInternalServerError)
			}
		})
		h.Register(mux)

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           requestLogger(logger, mux),
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logger.Info("listening", "addr", cfg.Server.Addr, "solver", cfg.Solver.Kind, "handoff", ho.Backend())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
}

// statusWriter captures HTTP status and bytes written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack hands the connection to the webcam websocket.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// requestLogger logs method, path, status, bytes, and duration in a human-readable format.
func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		dur := time.Since(start)
		logger.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"bytes", sw.bytes,
			"dur", dur.Round(time.Millisecond),
		)
	})
}
