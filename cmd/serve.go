package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/internal/resolve"
	"github.com/sells-group/contacts-cli/internal/store"
	"github.com/sells-group/contacts-cli/pkg/anthropic"
)

var servePort int

// personResolver is the subset of the resolver the HTTP layer needs.
type personResolver interface {
	Resolve(ctx context.Context, name, profileURL, remoteIP string) (*resolve.Resolution, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		resolver := resolve.New(
			newExaClient(cfg.Exa),
			newIPAPIClient(cfg.IPAPI),
			anthropic.NewClient(cfg.Anthropic.Key),
			cfg.Resolve,
			cfg.Anthropic.ScoringModel,
		)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st, resolver, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func newRouter(st store.Store, resolver personResolver, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/resolve", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Name       string `json:"name"`
			ProfileURL string `json:"profile_url"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(body.Name) == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		res, err := resolver.Resolve(req.Context(), body.Name, body.ProfileURL, clientIP(req))
		if err != nil {
			zap.L().Error("resolve failed", zap.String("name", body.Name), zap.Error(err))
			writeError(w, http.StatusBadGateway, "resolution failed")
			return
		}
		if res.RequireProfileURL {
			writeJSON(w, http.StatusOK, map[string]any{
				"require_profile_url": true,
				"location":            res.Location,
				"message":             "could not narrow the search to a single person; provide a profile URL",
			})
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Post("/api/connections", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			FullName   string `json:"full_name"`
			ProfileURL string `json:"profile_url"`
			Location   string `json:"location"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.FullName == "" || body.ProfileURL == "" {
			writeError(w, http.StatusBadRequest, "full_name and profile_url are required")
			return
		}

		conn, err := st.CreateConnection(req.Context(), &model.Connection{
			FullName:   body.FullName,
			ProfileURL: body.ProfileURL,
			Location:   body.Location,
		})
		if err != nil {
			zap.L().Error("create connection failed", zap.String("profile_url", body.ProfileURL), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "create connection failed")
			return
		}
		writeJSON(w, http.StatusCreated, conn)
	})

	r.Get("/api/connections/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")

		conn, err := st.GetConnection(req.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "connection not found")
				return
			}
			zap.L().Error("get connection failed", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get connection failed")
			return
		}

		history, err := st.ListEnrichments(req.Context(), id)
		if err != nil {
			zap.L().Error("list enrichments failed", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list enrichments failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"connection":  conn,
			"enrichments": history,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// clientIP prefers the first X-Forwarded-For hop so resolution keeps
// working behind a reverse proxy.
func clientIP(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(ip)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
