package device

// Stream is a FIFO work queue executed by one dedicated goroutine,
// simulating a CUDA stream: kernels submitted to a Stream execute in issue
// order, and Sync blocks until every previously submitted kernel has run
// (spec.md §5: "kernels within a stream execute in issue order... only
// [suspend] at the end-of-call stream synchronization").
type Stream struct {
	work chan func()
}

// NewStream starts a Stream's execution goroutine.
func NewStream() *Stream {
	s := &Stream{work: make(chan func(), 64)}
	go func() {
		for fn := range s.work {
			fn()
		}
	}()
	return s
}

// Submit enqueues a kernel for issue-ordered execution; it returns
// immediately, matching a real launch's asynchronous-after-enqueue
// semantics.
func (s *Stream) Submit(fn func()) {
	s.work <- fn
}

// Sync blocks until every kernel submitted so far has completed.
func (s *Stream) Sync() {
	done := make(chan struct{})
	s.work <- func() { close(done) }
	<-done
}

// Close stops the Stream's goroutine. Callers must Sync before Close to
// avoid dropping queued work.
func (s *Stream) Close() {
	close(s.work)
}

// Context is the small device-context object the spec's design notes call
// for (§9: "Global stream handles: the original keeps the primary and
// secondary streams in process-wide state. Model this as a small
// device-context object owned by the transformer handle."). The secondary
// stream only runs work for Phi's parallel attention/MLP branches
// (spec.md §5).
type Context struct {
	Primary   *Stream
	Secondary *Stream
}

// NewContext starts both streams.
func NewContext() *Context {
	return &Context{Primary: NewStream(), Secondary: NewStream()}
}

// Close stops both streams. Callers must have Sync'd both first.
func (c *Context) Close() {
	c.Primary.Close()
	c.Secondary.Close()
}
