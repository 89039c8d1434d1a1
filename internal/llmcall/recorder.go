package llmcall

import (
	"github.com/jackzampolin/vbpl/internal/providers"
	"github.com/jackzampolin/vbpl/internal/store"
)

// Table is the llm_calls table name.
const Table = "llm_calls"

// Sender queues rows for batched insertion. *store.Sink implements it.
type Sender interface {
	Send(op store.WriteOp)
}

// Recorder handles fire-and-forget LLM call recording via a Sender.
// A nil Recorder, or one without a sender, records nothing.
type Recorder struct {
	sink Sender
}

// NewRecorder creates a new LLM call recorder.
func NewRecorder(sink Sender) *Recorder {
	return &Recorder{sink: sink}
}

// Record captures an LLM call asynchronously.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	if r == nil || r.sink == nil {
		return
	}
	r.RecordCall(FromChatResult(result, opts))
}

// RecordCall captures an already-constructed Call asynchronously.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || r.sink == nil || call == nil {
		return
	}
	r.sink.Send(store.WriteOp{Table: Table, Values: call.ToMap()})
}
