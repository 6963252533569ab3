package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Plugin is what the API exposes.
type Plugin interface {
	Trigger()
	Running(ctx context.Context) (bool, error)
	Phase() string
}

type statusResponse struct {
	Plugin  string `json:"plugin"`
	Running bool   `json:"running"`
	Phase   string `json:"phase"`
}

// Api serves the plugin's assets to the host and a small control surface.
type Api struct {
	addr      string
	assetsDir string
	pluginID  string
	plugin    Plugin
	log       *slog.Logger
}

// NewApi creates an instance of an Api.
func NewApi(addr, assetsDir, pluginID string, plugin Plugin, log *slog.Logger) *Api {
	a := new(Api)
	a.addr = addr
	a.assetsDir = assetsDir
	a.pluginID = pluginID
	a.plugin = plugin
	a.log = log
	return a
}

// Handler returns the API's routes.
func (a *Api) Handler() http.Handler {
	mux := http.NewServeMux()
	fs := http.FileServer(http.Dir(a.assetsDir))
	mux.Handle("/assets/", http.StripPrefix("/assets/", fs))
	mux.HandleFunc("/status", a.handleStatus)
	mux.HandleFunc("/press", a.handlePress)
	return mux
}

func (a *Api) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	running, err := a.plugin.Running(r.Context())
	if err != nil {
		a.log.Error("Failed to read status", "error", err)
		http.Error(w, "status unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(statusResponse{
		Plugin:  a.pluginID,
		Running: running,
		Phase:   a.plugin.Phase(),
	})
	if err != nil {
		a.log.Warn("Failed to write status", "error", err)
	}
}

func (a *Api) handlePress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.plugin.Trigger()
	w.WriteHeader(http.StatusAccepted)
}

// Serve listens until ctx is cancelled.
func (a *Api) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("Shutdown incomplete", "error", err)
		}
	}()

	a.log.Info("Listening...", "addr", a.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
