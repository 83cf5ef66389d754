// Package web serves a live view of an RBM training run: the latest model
// samples and weight filters, training curves, and epoch updates pushed over
// a websocket. It also accepts plot documents posted by a
// training.PlottingService.
package web

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/tsawler/go-boltzmann/training"
	"github.com/tsawler/go-boltzmann/visualization"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// EpochMessage is pushed to websocket clients after every epoch.
type EpochMessage struct {
	Epoch   int                   `json:"epoch"`
	Metrics training.EpochMetrics `json:"metrics"`
}

// Server holds the state of the run being displayed. It is safe for
// concurrent use; the trainer calls ObserveEpoch while handlers read.
type Server struct {
	sync.Mutex
	Title  string
	Layout visualization.GridLayout

	collector *training.VisualizationCollector
	history   training.History
	latest    *training.EpochSummary
	plots     map[string]training.PlotData
	clients   map[*websocket.Conn]bool
	router    *mux.Router
	http      *http.Server
}

// NewServer creates a server whose sample images are tiled with layout.
// collector may be nil, in which case plots are only available once posted
// to /api/plot.
func NewServer(title string, layout visualization.GridLayout, collector *training.VisualizationCollector) *Server {
	s := &Server{
		Title:     title,
		Layout:    layout,
		collector: collector,
		plots:     make(map[string]training.PlotData),
		clients:   make(map[*websocket.Conn]bool),
	}
	r := mux.NewRouter()
	r.HandleFunc("/", s.Index())
	r.HandleFunc("/health", s.Health())
	r.HandleFunc("/stats", s.Stats())
	r.HandleFunc("/samples.png", s.Samples())
	r.HandleFunc("/filters.png", s.Filters())
	r.HandleFunc("/curve.{format:(?:svg|png)}", s.Curve())
	r.HandleFunc("/api/plot", s.ReceivePlot()).Methods("POST")
	r.HandleFunc("/api/plots", s.ListPlots()).Methods("GET")
	r.HandleFunc("/api/plots/{id}", s.GetPlot()).Methods("GET")
	r.HandleFunc("/ws", s.Websocket())
	s.router = r
	return s
}

// Handler returns the router with every route registered.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ObserveEpoch records the summary and notifies websocket clients.
func (s *Server) ObserveEpoch(summary training.EpochSummary) error {
	s.Lock()
	defer s.Unlock()
	s.history.Add(summary.Metrics)
	s.latest = &summary

	msg := EpochMessage{Epoch: summary.Metrics.Epoch + 1, Metrics: summary.Metrics}
	for conn := range s.clients {
		if err := conn.WriteJSON(msg); err != nil {
			log.Println("ObserveEpoch: error writing to websocket", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
	return nil
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.Lock()
	s.http = &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	srv := s.http
	s.Unlock()
	log.Printf("serving web page at http://%s", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the listener and closes every websocket connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Lock()
	for conn := range s.clients {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "training finished"))
		conn.Close()
		delete(s.clients, conn)
	}
	srv := s.http
	s.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.Lock()
	defer s.Unlock()
	return len(s.clients)
}

// reads until the client goes away so close frames are processed
func (s *Server) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.Lock()
	if s.clients[conn] {
		conn.Close()
		delete(s.clients, conn)
	}
	s.Unlock()
}
