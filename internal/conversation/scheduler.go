package conversation

import (
	"log"

	"github.com/ajramos/convview/internal/content"
	"golang.org/x/net/html"
)

// ScopeQueue is an insertion-ordered set of regions awaiting renormalization
type ScopeQueue struct {
	order []*html.Node
	seen  map[*html.Node]struct{}
}

// NewScopeQueue creates an empty queue
func NewScopeQueue() *ScopeQueue {
	return &ScopeQueue{seen: make(map[*html.Node]struct{})}
}

// Add inserts n unless it is already queued. It reports whether n was added.
func (q *ScopeQueue) Add(n *html.Node) bool {
	if _, ok := q.seen[n]; ok {
		return false
	}
	q.seen[n] = struct{}{}
	q.order = append(q.order, n)
	return true
}

// Len returns the number of queued regions
func (q *ScopeQueue) Len() int { return len(q.order) }

// Items returns the queued regions in insertion order
func (q *ScopeQueue) Items() []*html.Node {
	out := make([]*html.Node, len(q.order))
	copy(out, q.order)
	return out
}

// Clear empties the queue
func (q *ScopeQueue) Clear() {
	q.order = nil
	q.seen = make(map[*html.Node]struct{})
}

// Scheduler collapses bursts of image-load completions into one renormalization pass.
// The first enqueue into an empty queue posts a batch for the next idle cycle; later enqueues
// before it runs only join the queue.
type Scheduler struct {
	dispatcher content.Dispatcher
	queue      *ScopeQueue
	normalize  func([]*html.Node)
	report     func()
	logger     *log.Logger
	batches    int
}

// NewScheduler creates a scheduler that owns queue
func NewScheduler(dispatcher content.Dispatcher, queue *ScopeQueue, normalize func([]*html.Node), report func(), logger *log.Logger) *Scheduler {
	if queue == nil {
		queue = NewScopeQueue()
	}
	return &Scheduler{
		dispatcher: dispatcher,
		queue:      queue,
		normalize:  normalize,
		report:     report,
		logger:     logger,
	}
}

// Enqueue adds scope to the pending batch, posting the batch if none is pending
func (s *Scheduler) Enqueue(scope *html.Node) {
	if scope == nil {
		return
	}
	if s.queue.Len() == 0 {
		if s.dispatcher == nil || !s.dispatcher.Post(s.runBatch) {
			if s.logger != nil {
				s.logger.Printf("conversation: cannot schedule renormalization, dispatcher unavailable")
			}
			return
		}
	}
	s.queue.Add(scope)
}

// Pending returns the number of regions waiting for the next batch
func (s *Scheduler) Pending() int { return s.queue.Len() }

// Batches returns how many batches have run
func (s *Scheduler) Batches() int { return s.batches }

// The queue is emptied before the pass runs; a panic in normalize or report must not block later bursts.
func (s *Scheduler) runBatch() {
	scopes := s.queue.Items()
	s.queue.Clear()
	s.batches++
	if s.normalize != nil {
		s.normalize(scopes)
	}
	if s.report != nil {
		s.report()
	}
}
