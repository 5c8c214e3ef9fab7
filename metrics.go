package signalz

// Metrics provides observability data for a Signal.
// Counters are cumulative since creation; the registry sizes are read
// under the registry locks when the snapshot is taken.
type Metrics struct {
	// Registry Sizes
	Unconditional int64 // Handles in the unconditional index
	SenderEntries int64 // Distinct senders with at least one handle
	SenderLocks   int64 // Per-sender locks allocated (tracks SenderEntries)
	KeyEntries    int64 // Distinct keys with at least one handle
	KeyLocks      int64 // Per-key locks allocated (tracks KeyEntries)

	// Throughput Counters (atomic operations required)
	Sends     int64 // Successful Send calls
	Scheduled int64 // Callbacks handed to the scheduler
	Pruned    int64 // Expired weak handles removed during collection
}

// LoopMetrics provides observability data for a Loop.
// All fields are updated with atomic operations.
type LoopMetrics struct {
	QueueDepth     int64 // Deferred calls waiting to run
	CallsSubmitted int64 // CallSoon submissions accepted
	TasksSubmitted int64 // Go submissions accepted
	Processed      int64 // Calls and tasks that returned nil
	Failed         int64 // Calls and tasks that returned an error or panicked
	Panicked       int64 // Subset of Failed that panicked
}
