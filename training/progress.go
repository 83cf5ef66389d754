package training

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tsawler/go-boltzmann/rbm"
)

const barWidth = 40

// stats shown as percentages rather than raw fractions
var percentStats = map[string]bool{
	"saturation":        true,
	"hidden_saturation": true,
}

// ProgressBar redraws a one-line batch counter for an epoch in place:
//
//	Epoch 2/10:  40%|████████            | 4/10 [00:03<00:04, 1.33batch/s, recon=0.0912]
type ProgressBar struct {
	label   string
	total   int
	done    int
	started time.Time
	stats   map[string]float64
	out     io.Writer
}

// NewProgressBarTo creates a bar for total batches that draws to out
func NewProgressBarTo(out io.Writer, label string, total int) *ProgressBar {
	return &ProgressBar{
		label:   label,
		total:   total,
		started: time.Now(),
		stats:   make(map[string]float64),
		out:     out,
	}
}

// Update sets the number of finished batches and replaces the shown stats.
func (pb *ProgressBar) Update(done int, stats map[string]float64) {
	pb.done = done
	pb.stats = make(map[string]float64, len(stats))
	pb.UpdateMetrics(stats)
}

// UpdateMetrics merges stats into the shown ones without advancing.
func (pb *ProgressBar) UpdateMetrics(stats map[string]float64) {
	for k, v := range stats {
		pb.stats[k] = v
	}
	fmt.Fprint(pb.out, pb.line(time.Since(pb.started)))
}

// Finish draws the full bar and ends the line.
func (pb *ProgressBar) Finish() {
	pb.done = pb.total
	fmt.Fprintln(pb.out, pb.line(time.Since(pb.started)))
}

func (pb *ProgressBar) fraction() float64 {
	if pb.total <= 0 || pb.done <= 0 {
		return 0
	}
	return minFloat(float64(pb.done)/float64(pb.total), 1)
}

func (pb *ProgressBar) line(elapsed time.Duration) string {
	frac := pb.fraction()
	filled := int(frac * barWidth)

	var b strings.Builder
	fmt.Fprintf(&b, "\r%s: %3.0f%%|%s%s| %d/%d [%s<", pb.label, frac*100,
		strings.Repeat("█", filled), strings.Repeat(" ", barWidth-filled), pb.done, pb.total, clock(elapsed))

	// remaining time extrapolated from the batches done so far
	var remaining time.Duration
	if frac > 0 && frac < 1 {
		remaining = time.Duration(float64(elapsed)/frac) - elapsed
	}
	b.WriteString(clock(remaining))
	if pb.done > 0 && elapsed > 0 {
		fmt.Fprintf(&b, ", %.2fbatch/s", float64(pb.done)/elapsed.Seconds())
	}

	names := make([]string, 0, len(pb.stats))
	for name := range pb.stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if percentStats[name] {
			fmt.Fprintf(&b, ", %s=%.1f%%", name, pb.stats[name]*100)
		} else {
			fmt.Fprintf(&b, ", %s=%.4f", name, pb.stats[name])
		}
	}
	b.WriteString("]")
	return b.String()
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// clock formats d as MM:SS, or H:MM:SS from one hour on
func clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	if secs >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// countString abbreviates n with a K or M suffix
func countString(n int) string {
	switch {
	case n >= 1e6:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	}
	return fmt.Sprint(n)
}

// PrintModelSummary writes the RBM's shape and the estimator and schedule
// cfg will train it with
func PrintModelSummary(out io.Writer, p *rbm.Params, cfg Config) {
	nv, nh := p.NumVisible(), p.NumHidden()
	total := nv*nh + nv + nh

	estimator := fmt.Sprintf("CD-%d", cfg.ChainLength)
	if cfg.Persistent {
		estimator = "P" + estimator
		if cfg.CarryAcrossEpochs {
			estimator += ", chains kept across epochs"
		}
	}
	schedule := cfg.Scheduler
	if s, err := cfg.NewScheduler(); err == nil {
		schedule = s.String()
	}

	fmt.Fprintln(out, "Restricted Boltzmann machine")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  visible\tBernoulli(units=%d)\n", nv)
	fmt.Fprintf(tw, "  hidden\tBernoulli(units=%d)\n", nh)
	fmt.Fprintf(tw, "  weights\t%d x %d\n", nv, nh)
	fmt.Fprintf(tw, "  parameters\t%s (%.3f MB as float64)\n", countString(total), float64(total*8)/(1<<20))
	fmt.Fprintf(tw, "  estimator\t%s, batch size %d\n", estimator, cfg.BatchSize)
	fmt.Fprintf(tw, "  learning rate\t%g, schedule %s\n", cfg.LearningRate, schedule)
	fmt.Fprintf(tw, "  seed\t%d\n", cfg.Seed)
	tw.Flush()
	fmt.Fprintln(out)
}
