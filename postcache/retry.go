package postcache

// retryQueue is a bounded FIFO of failed purges. push never blocks.
type retryQueue struct {
	jobs chan purge
}

func newRetryQueue(size int) *retryQueue {
	return &retryQueue{jobs: make(chan purge, size)}
}

func (q *retryQueue) push(p purge) bool {
	select {
	case q.jobs <- p:
		return true
	default:
		return false
	}
}

func (q *retryQueue) len() int {
	return len(q.jobs)
}
