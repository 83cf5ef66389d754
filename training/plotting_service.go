package training

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// PlottingService publishes the plots of a VisualizationCollector to a plot
// server that accepts POST /api/plot and answers GET /health, such as the
// live view in package web. A new service is disabled; nothing leaves the
// process until Enable is called.
type PlottingService struct {
	config  PlottingServiceConfig
	client  *http.Client
	enabled bool
}

// PlottingServiceConfig contains configuration for the plotting service.
// RetryDelay doubles after every failed attempt.
type PlottingServiceConfig struct {
	BaseURL       string        `json:"base_url"`
	Timeout       time.Duration `json:"timeout"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay"`
}

// PlottingResponse is the body a plot server answers with
type PlottingResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PlotURL   string `json:"plot_url,omitempty"`
	PlotID    string `json:"plot_id,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// RejectedError is returned when the server refuses a plot with a 4xx
// status. Sending the same document again cannot succeed, so it is not
// retried.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("plot rejected with status %d: %s", e.Status, e.Message)
}

// DefaultPlottingServiceConfig targets a live view on localhost:8080
func DefaultPlottingServiceConfig() PlottingServiceConfig {
	return PlottingServiceConfig{
		BaseURL:       "http://localhost:8080",
		Timeout:       10 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    500 * time.Millisecond,
	}
}

func NewPlottingService(config PlottingServiceConfig) *PlottingService {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &PlottingService{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (ps *PlottingService) Enable()         { ps.enabled = true }
func (ps *PlottingService) Disable()        { ps.enabled = false }
func (ps *PlottingService) IsEnabled() bool { return ps.enabled }

func notSent(format string, args ...interface{}) *PlottingResponse {
	return &PlottingResponse{Message: fmt.Sprintf(format, args...)}
}

// SendPlotData posts one plot document. A disabled service answers with an
// unsuccessful response and no error.
func (ps *PlottingService) SendPlotData(plotData PlotData) (*PlottingResponse, error) {
	if !ps.enabled {
		return notSent("plotting service is disabled"), nil
	}
	body, err := json.Marshal(plotData)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s plot", plotData.PlotType)
	}

	req, err := http.NewRequest(http.MethodPost, ps.config.BaseURL+"/api/plot", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build plot request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "go-boltzmann-training")

	resp, err := ps.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to post %s plot", plotData.PlotType)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read plot server response")
	}

	var out PlottingResponse
	if jerr := json.Unmarshal(raw, &out); jerr != nil {
		if resp.StatusCode == http.StatusOK {
			return nil, errors.Wrap(jerr, "plot server answered with invalid JSON")
		}
		// plain text error pages
		out.Message = strings.TrimSpace(string(raw))
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return &out, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &out, &RejectedError{Status: resp.StatusCode, Message: out.Message}
	default:
		return &out, errors.Errorf("plot server failed with status %d: %s", resp.StatusCode, out.Message)
	}
}

// SendPlotDataWithRetry posts a plot, retrying transport failures and 5xx
// answers up to RetryAttempts times in total. A rejected plot is returned
// at once.
func (ps *PlottingService) SendPlotDataWithRetry(plotData PlotData) (*PlottingResponse, error) {
	if !ps.enabled {
		return notSent("plotting service is disabled"), nil
	}
	attempts := ps.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := ps.config.RetryDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := ps.SendPlotData(plotData)
		if err == nil {
			return resp, nil
		}
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			return resp, err
		}
		lastErr = err
		if attempt < attempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return nil, errors.Wrapf(lastErr, "giving up after %d attempts", attempts)
}

// CheckHealth reports whether the plot server answers /health
func (ps *PlottingService) CheckHealth() error {
	if !ps.enabled {
		return errors.New("plotting service is disabled")
	}
	resp, err := ps.client.Get(ps.config.BaseURL + "/health")
	if err != nil {
		return errors.Wrap(err, "plot server unreachable")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("plot server health check returned %d", resp.StatusCode)
	}
	return nil
}

// GeneratePlot builds the plot of the given type from collector
func GeneratePlot(collector *VisualizationCollector, plotType PlotType) (PlotData, error) {
	switch plotType {
	case TrainingCurves:
		return collector.GenerateTrainingCurvesPlot(), nil
	case FreeEnergyCurves:
		return collector.GenerateFreeEnergyPlot(), nil
	case LearningRateSchedule:
		return collector.GenerateLearningRateSchedulePlot(), nil
	case GradientMagnitude:
		return collector.GenerateGradientPlot(), nil
	case ParameterDistribution:
		return collector.GenerateParameterDistributionPlot(), nil
	}
	return PlotData{}, errors.Errorf("unsupported plot type: %s", plotType)
}

// GenerateAndSendPlot builds one plot from collector and posts it. Nothing
// is sent before the collector has seen an epoch.
func (ps *PlottingService) GenerateAndSendPlot(collector *VisualizationCollector, plotType PlotType) (*PlottingResponse, error) {
	if !ps.enabled {
		return notSent("plotting service is disabled"), nil
	}
	plotData, err := GeneratePlot(collector, plotType)
	if err != nil {
		return nil, err
	}
	if len(collector.History()) == 0 || len(plotData.Series) == 0 {
		return notSent("no epochs recorded for %s", plotType), nil
	}
	return ps.SendPlotDataWithRetry(plotData)
}

// AllPlotTypes lists the plots a VisualizationCollector can produce
var AllPlotTypes = []PlotType{
	TrainingCurves,
	FreeEnergyCurves,
	LearningRateSchedule,
	GradientMagnitude,
	ParameterDistribution,
}

// GenerateAndSendAllPlots checks the server once and then posts every plot
// type. When the server is down each plot reports the health error and no
// retries are spent.
func (ps *PlottingService) GenerateAndSendAllPlots(collector *VisualizationCollector) map[PlotType]*PlottingResponse {
	results := make(map[PlotType]*PlottingResponse, len(AllPlotTypes))
	if !ps.enabled {
		return results
	}
	if err := ps.CheckHealth(); err != nil {
		for _, pt := range AllPlotTypes {
			results[pt] = &PlottingResponse{Message: err.Error(), ErrorCode: "unavailable"}
		}
		return results
	}
	for _, pt := range AllPlotTypes {
		resp, err := ps.GenerateAndSendPlot(collector, pt)
		if err != nil {
			resp = &PlottingResponse{Message: err.Error()}
		}
		results[pt] = resp
	}
	return results
}
