package common

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
)

const (
	progressBarWidth       = 20
	progressBarChar        = "■"
	progressBarPlaceholder = "·"
)

var (
	statusIconMap map[api.Status]string
)

func init() {
	statusIconMap = map[api.Status]string{
		api.StatusPending:   "◷",
		api.StatusQueued:    "◷",
		api.StatusRunning:   "●",
		api.StatusCancelled: "ǁ",
		api.StatusSucceeded: "✔",
		api.StatusFailed:    "✖",
		api.StatusSkipped:   "○",
	}
}

// PrintOptions defines print options
type PrintOptions struct{}

// PrintRunList prints the run list in the given writer
func PrintRunList(w io.Writer, runs []api.RunInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "RUN\tPIPELINE\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\n", r.ID, r.Pipeline, statusIconMap[r.Status], r.Status)
	}
	tw.Flush()
}

// PrintRun prints the run state in the given writer
func PrintRun(w io.Writer, run api.RunState, opts PrintOptions) {
	fmt.Fprintln(w)

	// Header
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "Pipeline:\t%s\n", run.Pipeline)
	fmt.Fprintf(tw, "RunID:\t%s\n", run.ID)
	fmt.Fprintf(tw, "Status:\t%s\n", run.Status)
	fmt.Fprintf(tw, "Created:\t%s\n", date(run.CreateTime))
	fmt.Fprintf(tw, "Started:\t%s\n", date(run.StartTime))
	fmt.Fprintf(tw, "Finished:\t%s\n", date(run.EndTime))
	fmt.Fprintf(tw, "Duration:\t%s\n", duration(run.StartTime, run.EndTime))
	tw.Flush()
	fmt.Fprintln(w)

	tw.Init(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tDURATION\tSTEPS\tMESSAGE")
	fmt.Fprintf(tw, "%s %s\t\t\t\n", statusIconMap[run.Status], run.Pipeline)

	for i, task := range run.Tasks {
		prefix := "├"
		if i == len(run.Tasks)-1 {
			prefix = "└"
		}
		printTask(tw, task, prefix, opts)
	}
	tw.Flush()
}

func printTask(w io.Writer, task api.TaskRunState, prefix string, opts PrintOptions) {
	fmt.Fprintf(w, "%s %s %s\t%s\t%s\t%s\n", prefix, statusIconMap[task.Status], task.Name, duration(task.StartTime, task.EndTime), stepProgression(task.Steps), task.Message)
}

// stepProgression returns a string to be printed for step progression
func stepProgression(steps []api.StepState) string {
	total := len(steps)
	switch total {
	case 0:
		return ""
	case 1:
		if steps[0].Status.Finished() {
			return "1/1"
		}
		return "0/1"
	default:
		finished := 0
		for _, s := range steps {
			if s.Status.Finished() {
				finished++
			}
		}
		if finished == total {
			return fmt.Sprintf("%d/%d", finished, total)
		}
		return fmt.Sprintf("%s %d/%d", progressBar(finished, total), finished, total)
	}
}

func progressBar(current, total int) string {
	value := (current * progressBarWidth) / total
	buf := bytes.NewBuffer(make([]byte, 0, progressBarWidth))
	for i := 0; i < progressBarWidth; i++ {
		if i < value {
			fmt.Fprint(buf, progressBarChar)
		} else {
			fmt.Fprint(buf, progressBarPlaceholder)
		}
	}
	return buf.String()
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2 Jan 2006 15:04:05.000")
}

func duration(start, end *time.Time) string {
	var d time.Duration
	if start == nil {
		return ""
	}
	if end == nil {
		d = time.Since(*start)
	} else {
		d = end.Sub(*start)
	}

	// Print
	if d.Seconds() <= 60.0 {
		return fmt.Sprintf("%0.0fs", d.Seconds())
	} else if d.Minutes() <= 60.0 {
		m := int64(d.Minutes())
		s := math.Mod(d.Seconds(), 60)
		return fmt.Sprintf("%0.dm %0.0fs", m, s)
	} else {
		h := int64(d.Hours())
		m := int64(math.Mod(d.Minutes(), 60))
		s := math.Mod(d.Seconds(), 60)
		return fmt.Sprintf("%0.dh %0.dm %0.0fs", h, m, s)
	}
}
