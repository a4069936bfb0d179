// Package web exposes the dashboard to a browser: the log download action,
// the latest frame as JSON, and a websocket stream of frames.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/luki/classmon/internal/dashboard"
)

const (
	DownloadName = "log_avicenna.csv"
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// LogFile is the persisted log the download action serves.
type LogFile interface {
	Path() string
	Open() (*os.File, error)
}

// Handler serves the dashboard routes.
type Handler struct {
	log            LogFile
	frames         *dashboard.Publisher
	originPatterns []string
}

// NewHandler returns a handler over the log and frame publisher.
func NewHandler(log LogFile, frames *dashboard.Publisher, originPatterns []string) *Handler {
	return &Handler{log: log, frames: frames, originPatterns: originPatterns}
}

// NewRouter registers the dashboard routes.
func (h *Handler) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/download", h.handleDownload).Methods(http.MethodGet)
	r.HandleFunc("/api/frame", h.handleFrame).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.handleFrameWS).Methods(http.MethodGet)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	f, err := h.log.Open()
	if errors.Is(err, os.ErrNotExist) {
		respondWithError(w, http.StatusNotFound, "no data logged yet")
		return
	}
	if err != nil {
		slog.Error("failed to open log for download", "path", h.log.Path(), "error", err)
		respondWithError(w, http.StatusInternalServerError, "could not open log")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+DownloadName+`"`)
	if _, err := io.Copy(w, f); err != nil {
		slog.Warn("download interrupted", "error", err)
	}
}

func (h *Handler) handleFrame(w http.ResponseWriter, r *http.Request) {
	f, ok := h.frames.Latest()
	if !ok {
		f = dashboard.Frame{Waiting: true, Built: time.Now()}
	}
	respondWithJSON(w, http.StatusOK, f)
}

func (h *Handler) handleFrameWS(w http.ResponseWriter, r *http.Request) {
	slog.Info(">>handleFrameWS: new incoming connection", "remote", r.RemoteAddr)
	defer slog.Info("<<handleFrameWS", "remote", r.RemoteAddr)

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "unexpected connection close")

	ctx := c.CloseRead(r.Context())

	if err := h.streamFrames(ctx, c); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("frame stream ended", "error", err)
		return
	}
	c.Close(websocket.StatusNormalClosure, "connection closed")
}

func (h *Handler) streamFrames(ctx context.Context, c *websocket.Conn) error {
	frames, cancel := h.frames.Subscribe()
	defer cancel()

	if f, ok := h.frames.Latest(); ok {
		if err := writeFrame(ctx, c, f); err != nil {
			return err
		}
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case f, ok := <-frames:
			if !ok {
				return nil
			}
			if err := writeFrame(ctx, c, f); err != nil {
				return err
			}

		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pctx)
			pcancel()
			if err != nil {
				return err
			}
		}
	}
}

func writeFrame(ctx context.Context, c *websocket.Conn, f dashboard.Frame) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, c, f)
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func respondWithError(w http.ResponseWriter, code int, msg string) {
	respondWithJSON(w, code, map[string]string{"error": msg})
}

// Server runs the dashboard routes behind an access log.
type Server struct {
	srv *http.Server
}

// NewServer wires the handler into an http.Server on addr. Access logs go
// to accessLog in combined log format.
func NewServer(addr string, h *Handler, accessLog io.Writer) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handlers.CombinedLoggingHandler(accessLog, h.NewRouter()),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start listens in the background. Listen errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	go func() {
		slog.Info("dashboard http listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("dashboard http server failed", "addr", s.srv.Addr, "error", err)
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
