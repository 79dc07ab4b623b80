package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/satishydv/meshaid-mvp/internal/discovery"
	"github.com/satishydv/meshaid-mvp/internal/engine"
	"github.com/satishydv/meshaid-mvp/internal/protocol"
)

//go:embed static/*
var staticFiles embed.FS

// Engine is the part of the mesh the web uplink drives.
type Engine interface {
	LocalPeerID() string
	Send(kind protocol.Kind, text string, loc *protocol.Location, manualLocation string) (protocol.Message, bool)
	Peers() []discovery.PeerRecord
	History() []protocol.Message
	Stats() engine.Stats
}

type Server struct {
	engine Engine
	port   int
}

func NewServer(eng Engine, port int) *Server {
	return &Server{
		engine: eng,
		port:   port,
	}
}

// Handler builds the route table.
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, err
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/peers", s.handlePeers)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/kinds", s.handleKinds)
	mux.HandleFunc("/api/graph", s.handleGraph)
	mux.Handle("/debug/vars", expvar.Handler())
	return mux, nil
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Web server starting", "port", s.port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	tmpl, err := template.ParseFS(staticFiles, "static/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tmpl.Execute(w, map[string]any{
		"PeerID": s.engine.LocalPeerID(),
		"Kinds":  protocol.Kinds(),
	})
}

// handleMessages serves the feed in canonical order: SOS first, then newest.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, protocol.Canonical(s.engine.History()))
	case http.MethodPost:
		s.handlePostMessage(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type postRequest struct {
	Type           string             `json:"type"`
	Text           string             `json:"text"`
	Location       *protocol.Location `json:"location,omitempty"`
	ManualLocation string             `json:"manualLocation,omitempty"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		req.Type = r.FormValue("type")
		req.Text = r.FormValue("text")
		req.ManualLocation = r.FormValue("manualLocation")
	}

	kind := protocol.KindInfo
	if req.Type != "" {
		k, err := protocol.ParseKind(req.Type)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		kind = k
	}

	msg, ok := s.engine.Send(kind, req.Text, req.Location, req.ManualLocation)
	if !ok {
		http.Error(w, "text required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Peers())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.Kinds())
}

// handleGraph returns the local peer and every known peer as a star graph.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	type Node struct {
		ID    string `json:"id"`
		Label string `json:"label"`
		Color string `json:"color"`
		Shape string `json:"shape"`
	}
	type Link struct {
		From string `json:"from"`
		To   string `json:"to"`
	}

	myID := s.engine.LocalPeerID()
	nodes := []Node{{ID: myID, Label: "ME", Color: "#00FF00", Shape: "box"}}
	links := []Link{}

	for _, p := range s.engine.Peers() {
		color := "#008800"
		if !p.Online() {
			color = "#555555"
		}
		nodes = append(nodes, Node{ID: p.ID, Label: p.Nickname, Color: color, Shape: "dot"})
		links = append(links, Link{From: myID, To: p.ID})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"links": links,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
