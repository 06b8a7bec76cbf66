package api

import (
	"encoding/json"
	"sync"

	"github.com/r3labs/sse"

	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/progress"
)

// SSEReporter is a progress.Reporter that publishes job-status transitions as server-sent
// events on one r3labs/sse stream per submit, so GET /submits/{id}/events can expose the same
// transitions a SpinnerReporter would draw, to any number of HTTP subscribers.
type SSEReporter struct {
	server   *sse.Server
	streamID string
}

func NewSSEReporter(server *sse.Server, streamID string) *SSEReporter {
	server.CreateStream(streamID)
	return &SSEReporter{server: server, streamID: streamID}
}

// jobEvent is the JSON payload published on the stream for every status/finish transition.
type jobEvent struct {
	JobID   string `json:"job_id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (r *SSEReporter) NewTask(jobID models.JobID, name string) progress.TaskHandle {
	return &sseHandle{reporter: r, jobID: jobID, name: name}
}

type sseHandle struct {
	reporter *SSEReporter
	jobID    models.JobID
	name     string

	mu       sync.Mutex
	finished bool
}

func (h *sseHandle) publish(status, message string) {
	payload, err := json.Marshal(jobEvent{JobID: h.jobID.String(), Name: h.name, Status: status, Message: message})
	if err != nil {
		return
	}
	h.reporter.server.Publish(h.reporter.streamID, &sse.Event{Event: []byte(status), Data: payload})
}

func (h *sseHandle) SetStatus(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	h.publish("status", text)
}

func (h *sseHandle) Finish(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	h.finished = true
	h.publish("finished", message)
}

func (h *sseHandle) FinishError(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	h.finished = true
	h.publish("error", message)
}

func (h *sseHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	h.finished = true
	h.publish("error", progress.AbandonedMessage)
}
