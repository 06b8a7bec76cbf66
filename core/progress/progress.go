// Package progress implements the per-JobTask progress bar and its cleanup-on-abandonment
// behaviour (spec.md section 4.3 and section 9's "Shared mutable progress-bar with cleanup on
// abandonment" design note).
package progress

import "github.com/pkgforge/pkgforge/common/models"

// Reporter creates one TaskHandle per JobTask. Implementations must be safe for concurrent use
// since every JobTask creates its handle independently.
type Reporter interface {
	NewTask(jobID models.JobID, name string) TaskHandle
}

// TaskHandle is the scoped-release mechanism described in spec.md section 9: a JobTask obtains
// one at construction and is responsible for calling Release exactly once when it exits,
// however it exits. If neither Finish nor FinishError was called first, Release finishes the
// bar with the abandonment message, which is how a sibling's failure becomes visible in the UI
// without any explicit cancellation signal.
type TaskHandle interface {
	SetStatus(text string)
	Finish(message string)
	FinishError(message string)
	Release()
}

// AbandonedMessage is the text shown when a task's bar is finished by Release without the task
// having called Finish/FinishError itself (spec.md section 7, "unaffected subtrees ... finish
// with 'Stopped, error on other task'").
const AbandonedMessage = "Stopped, error on other task"

// NoOpReporter discards all progress updates; used when progress display is disabled
// (spec.md section 6 configuration) or in tests.
type NoOpReporter struct{}

func (NoOpReporter) NewTask(models.JobID, string) TaskHandle { return noOpHandle{} }

type noOpHandle struct{}

func (noOpHandle) SetStatus(string)   {}
func (noOpHandle) Finish(string)      {}
func (noOpHandle) FinishError(string) {}
func (noOpHandle) Release()           {}
