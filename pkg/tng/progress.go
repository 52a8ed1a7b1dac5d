package tng

// Progress reports the advance of long-running transfers. Implementations
// must be safe for concurrent use.
type Progress interface {
	// Start begins a task. total is the expected byte count, or -1 when
	// unknown.
	Start(label string, total int64) ProgressTask
}

// ProgressTask is one running transfer.
type ProgressTask interface {
	Add(n int64)
	Finish()
}

// NopProgress discards all progress.
type NopProgress struct{}

func (NopProgress) Start(string, int64) ProgressTask { return nopTask{} }

type nopTask struct{}

func (nopTask) Add(int64) {}
func (nopTask) Finish()   {}

// countingWriter feeds written byte counts into a task and keeps a total.
type countingWriter struct {
	task ProgressTask
	n    int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	w.task.Add(int64(len(p)))
	return len(p), nil
}
