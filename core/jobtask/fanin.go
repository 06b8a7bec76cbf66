package jobtask

import (
	"sync"

	"github.com/pkgforge/pkgforge/common/models"
)

// inboundCapacity bounds fan-in congestion per job (spec.md section 4.4, step 1): generous
// enough that no well-behaved upstream blocks on send, without risking unbounded memory use.
const inboundCapacity = 100

// FanIn is one JobTask's inbound channel together with the close-on-last-sender bookkeeping
// that lets it behave like a Rust mpsc channel, which closes once every Sender clone has been
// dropped (spec.md section 3, "Channels are created once ... and closed implicitly when the
// upstream JobTask completes"). Go channels with multiple writers cannot safely be closed by
// any one of them, so FanIn centralizes that decision behind a counter.
type FanIn struct {
	ch chan models.JobResult

	mu        sync.Mutex
	remaining int
}

// NewFanIn allocates a FanIn expecting exactly expectedSenders distinct Sender values to each
// call Close once. A job with zero dependencies gets a FanIn that is already closed, which is
// how the "READY immediately" case (spec.md section 4.3) falls out of the ordinary receive loop
// without a special case.
func NewFanIn(expectedSenders int) *FanIn {
	f := &FanIn{ch: make(chan models.JobResult, inboundCapacity), remaining: expectedSenders}
	if expectedSenders == 0 {
		close(f.ch)
	}
	return f
}

// Recv is the receiving half used by the owning JobTask.
func (f *FanIn) Recv() <-chan models.JobResult { return f.ch }

// Sender allocates one of the expectedSenders handles. Callers must call exactly one of
// Send-then-Close, or Close alone, per handle - never Send more than once.
func (f *FanIn) Sender() *Sender { return &Sender{fanin: f} }

// Sender is a cloneable value-like handle distributed to one upstream JobTask (spec.md
// section 3, "Ownership"). It is not literally cloned in this Go translation - the orchestrator
// allocates one Sender per (upstream, downstream) edge at wiring time - but it plays the same
// role.
type Sender struct {
	fanin *FanIn
	used  bool
}

// Send delivers msg to the downstream FanIn. The spec's ordering guarantee ("within a single
// upstream->downstream channel, messages are received in send order") holds trivially since
// exactly one message is ever sent per Sender.
func (s *Sender) Send(msg models.JobResult) {
	s.used = true
	s.fanin.ch <- msg
}

// Close marks this sender done. Once every Sender for a FanIn has called Close, the channel is
// closed, letting the downstream's receive loop terminate (spec.md section 4.3, the "Closed"
// transition).
func (s *Sender) Close() {
	f := s.fanin
	f.mu.Lock()
	f.remaining--
	done := f.remaining == 0
	f.mu.Unlock()
	if done {
		close(f.ch)
	}
}
