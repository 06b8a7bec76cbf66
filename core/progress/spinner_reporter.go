package progress

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/alessio/shellescape"
	"github.com/chelnak/ysmrr"

	"github.com/pkgforge/pkgforge/common/models"
)

// SpinnerReporter renders one terminal spinner per job via chelnak/ysmrr, in the style of
// buildbeaver's BBSpinnerManager (bb/cmd/bb/local_backend/bb_spinner_manager.go). Job names are
// padded to a common width across all active spinners so the status text lines up in a column;
// unlike BBSpinnerManager this width is fixed at construction from the full job set rather than
// grown incrementally, since the orchestrator knows every job up front.
type SpinnerReporter struct {
	manager   ysmrr.SpinnerManager
	nameWidth int
	mu        sync.Mutex
	started   bool
}

// NewSpinnerReporter builds a reporter sized for the given set of job names.
func NewSpinnerReporter(jobNames []string) *SpinnerReporter {
	width := 0
	for _, n := range jobNames {
		if l := utf8.RuneCountInString(n); l > width {
			width = l
		}
	}
	return &SpinnerReporter{manager: ysmrr.NewSpinnerManager(), nameWidth: width}
}

func (r *SpinnerReporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		r.manager.Start()
		r.started = true
	}
}

func (r *SpinnerReporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		r.manager.Stop()
		r.started = false
	}
}

func (r *SpinnerReporter) NewTask(jobID models.JobID, name string) TaskHandle {
	displayName := padOrTruncate(name, r.nameWidth)
	spinner := r.manager.AddSpinner(displayName + " waiting")
	return &spinnerHandle{spinner: spinner, name: displayName}
}

type spinnerHandle struct {
	spinner  *ysmrr.Spinner
	name     string
	mu       sync.Mutex
	finished bool
}

func (h *spinnerHandle) SetStatus(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	h.spinner.UpdateMessage(h.name + " " + sanitizeSpinnerText(text))
}

func (h *spinnerHandle) Finish(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	h.spinner.UpdateMessage(h.name + " " + sanitizeSpinnerText(message))
	h.spinner.Complete()
	h.finished = true
}

func (h *spinnerHandle) FinishError(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	h.spinner.UpdateMessage(h.name + " " + sanitizeSpinnerText(message))
	h.spinner.Error()
	h.finished = true
}

// sanitizeSpinnerText strips unsafe terminal control sequences from text before it is drawn on
// a spinner line. Status and finish/error messages often echo a driver's raw log-sink or error
// text verbatim (e.g. a container's stderr tail), which is not trusted output.
func sanitizeSpinnerText(text string) string {
	return shellescape.StripUnsafe(strings.Trim(text, " \r\n\t"))
}

// Release implements the scoped-release cleanup: if the task never called Finish/FinishError,
// the bar is finished now with the abandonment message.
func (h *spinnerHandle) Release() {
	h.mu.Lock()
	already := h.finished
	h.mu.Unlock()
	if !already {
		h.FinishError(AbandonedMessage)
	}
}

func padOrTruncate(s string, length int) string {
	n := utf8.RuneCountInString(s)
	if n == length {
		return s
	}
	if n < length {
		return s + strings.Repeat(" ", length-n)
	}
	runes := []rune(s)
	return string(runes[:length])
}
