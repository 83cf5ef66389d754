package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"image"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"github.com/tsawler/go-boltzmann/training"
	"github.com/tsawler/go-boltzmann/visualization"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}: epoch <span id="epoch">{{.Epoch}}</span></h1>
<table>
<tr><th>epoch</th><th>recon error</th><th>free energy gap</th><th>saturation</th><th>lr</th></tr>
{{range .Latest}}<tr><td>{{.Epoch}}</td><td>{{printf "%.4f" .ReconstructionError}}</td><td>{{printf "%.3f" .FreeEnergyGap}}</td><td>{{printf "%.3f" .HiddenSaturation}}</td><td>{{printf "%.4g" .LearningRate}}</td></tr>
{{end}}</table>
<img id="curve" src="/curve.svg">
<img id="samples" src="/samples.png">
<img id="filters" src="/filters.png">
<script>
var ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = function(e) {
  var msg = JSON.parse(e.data);
  document.getElementById("epoch").textContent = msg.epoch;
  var t = "?t=" + Date.now();
  ["curve", "samples", "filters"].forEach(function(id) {
    var img = document.getElementById(id);
    img.src = img.src.split("?")[0] + t;
  });
};
</script>
</body>
</html>
`))

type indexRow struct {
	Epoch               int
	ReconstructionError float64
	FreeEnergyGap       float64
	HiddenSaturation    float64
	LearningRate        float64
}

type indexPage struct {
	Title  string
	Epoch  int
	Latest []indexRow
}

// Index renders the main page with the ten most recent epochs.
func (s *Server) Index() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		page := indexPage{Title: s.Title, Epoch: s.history.Len()}
		for i := s.history.Len() - 1; i >= 0 && i >= s.history.Len()-10; i-- {
			m := s.history.Epochs[i]
			page.Latest = append(page.Latest, indexRow{
				Epoch:               m.Epoch + 1,
				ReconstructionError: m.ReconstructionError,
				FreeEnergyGap:       m.Get(training.FreeEnergyGap),
				HiddenSaturation:    m.HiddenSaturation,
				LearningRate:        m.LearningRate,
			})
		}
		s.Unlock()
		if err := indexTemplate.Execute(w, page); err != nil {
			logError(w, err)
		}
	}
}

func (s *Server) Health() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}
}

// StatsResponse is the body served by /stats
type StatsResponse struct {
	Title   string                    `json:"title"`
	Epochs  int                       `json:"epochs"`
	Latest  *training.EpochMetrics    `json:"latest,omitempty"`
	Best    *training.EpochMetrics    `json:"best,omitempty"`
	Params  []training.ParameterStats `json:"params,omitempty"`
	History []training.EpochMetrics   `json:"history"`
}

// Stats serves the metric history as JSON.
func (s *Server) Stats() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		resp := StatsResponse{
			Title:   s.Title,
			Epochs:  s.history.Len(),
			History: append([]training.EpochMetrics{}, s.history.Epochs...),
		}
		if m, ok := s.history.Last(); ok {
			resp.Latest = &m
		}
		if m, ok := s.history.Best(); ok {
			resp.Best = &m
		}
		if s.latest != nil && s.latest.Params != nil {
			resp.Params = training.ComputeParameterStats(s.latest.Params, 20)
		}
		s.Unlock()
		writeJSON(w, http.StatusOK, resp)
	}
}

// Samples serves the latest model samples as a PNG grid.
func (s *Server) Samples() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		var summary *training.EpochSummary
		if s.latest != nil && s.latest.ModelSample != nil {
			summary = s.latest
		}
		layout := s.Layout
		s.Unlock()
		if summary == nil {
			http.Error(w, "no samples yet", http.StatusNotFound)
			return
		}
		img, err := visualization.SampleGrid(summary.ModelSample, layout)
		if err != nil {
			logError(w, err)
			return
		}
		writePNG(w, img)
	}
}

// Filters serves the latest weights as a PNG grid of per-unit filters.
func (s *Server) Filters() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		var summary *training.EpochSummary
		if s.latest != nil && s.latest.Params != nil {
			summary = s.latest
		}
		layout := s.Layout
		s.Unlock()
		if summary == nil {
			http.Error(w, "no parameters yet", http.StatusNotFound)
			return
		}
		img, err := visualization.WeightFilters(summary.Params, layout)
		if err != nil {
			logError(w, err)
			return
		}
		writePNG(w, img)
	}
}

// Curve plots training metrics. The metrics query parameter takes a comma
// separated list of metric names; reconstruction error is the default.
func (s *Server) Curve() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		format := mux.Vars(r)["format"]
		var metrics []training.MetricType
		if q := r.URL.Query().Get("metrics"); q != "" {
			for _, name := range strings.Split(q, ",") {
				mt, ok := metricByName(name)
				if !ok {
					http.Error(w, fmt.Sprintf("unknown metric %q", name), http.StatusBadRequest)
					return
				}
				metrics = append(metrics, mt)
			}
		}
		s.Lock()
		history := training.History{Epochs: append([]training.EpochMetrics{}, s.history.Epochs...)}
		s.Unlock()

		var buf bytes.Buffer
		if err := visualization.WriteCurves(&buf, &history, format, 600, 300, metrics...); err != nil {
			logError(w, err)
			return
		}
		if format == "svg" {
			w.Header().Set("Content-Type", "image/svg+xml")
		} else {
			w.Header().Set("Content-Type", "image/png")
		}
		w.Write(buf.Bytes())
	}
}

// ReceivePlot stores a plot document posted by a PlottingService.
func (s *Server) ReceivePlot() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var pd training.PlotData
		if err := json.NewDecoder(r.Body).Decode(&pd); err != nil {
			writeJSON(w, http.StatusBadRequest, training.PlottingResponse{
				Message: err.Error(), ErrorCode: "invalid_json"})
			return
		}
		if pd.PlotType == "" {
			writeJSON(w, http.StatusBadRequest, training.PlottingResponse{
				Message: "missing plot_type", ErrorCode: "invalid_plot"})
			return
		}
		id := string(pd.PlotType)
		s.Lock()
		s.plots[id] = pd
		s.Unlock()
		writeJSON(w, http.StatusOK, training.PlottingResponse{
			Success: true,
			Message: "plot stored",
			PlotID:  id,
			PlotURL: "/api/plots/" + id,
		})
	}
}

// ListPlots returns the ids of every plot that can be fetched.
func (s *Server) ListPlots() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		seen := make(map[string]bool)
		for id := range s.plots {
			seen[id] = true
		}
		if s.collector != nil {
			for _, pt := range training.AllPlotTypes {
				seen[string(pt)] = true
			}
		}
		s.Unlock()
		ids := make([]string, 0, len(seen))
		for id := range seen {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		writeJSON(w, http.StatusOK, ids)
	}
}

// GetPlot serves a posted plot, or generates it from the collector.
func (s *Server) GetPlot() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		s.Lock()
		pd, ok := s.plots[id]
		collector := s.collector
		s.Unlock()
		if !ok {
			if collector == nil {
				http.Error(w, "plot not found", http.StatusNotFound)
				return
			}
			var err error
			if pd, err = training.GeneratePlot(collector, training.PlotType(id)); err != nil {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
		}
		writeJSON(w, http.StatusOK, pd)
	}
}

// Websocket upgrades the connection and registers it for epoch updates.
func (s *Server) Websocket() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("websocket upgrade:", err)
			return
		}
		s.Lock()
		s.clients[conn] = true
		s.Unlock()
		go s.readLoop(conn)
	}
}

func metricByName(name string) (training.MetricType, bool) {
	for mt := training.ReconstructionError; mt <= training.LearningRate; mt++ {
		if mt.String() == strings.TrimSpace(name) {
			return mt, true
		}
	}
	return 0, false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("writeJSON:", err)
	}
}

func writePNG(w http.ResponseWriter, img image.Image) {
	var buf bytes.Buffer
	if err := visualization.WritePNG(&buf, img); err != nil {
		logError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func logError(w http.ResponseWriter, err error) {
	log.Println(err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
