package webapp

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TaskType names the kind of work a task performs.
type TaskType string

const (
	TaskValidatePullRequest TaskType = "validate_pull_request"
	TaskApplyChanges        TaskType = "apply_changes"
	TaskCheckFile           TaskType = "check_file"
	TaskDriftDetection      TaskType = "drift_detection"
)

// TaskStatus represents the current status of a task.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCanceled  TaskStatus = "canceled"
)

// Task is one unit of work processed by the queue.
type Task struct {
	ID          string        `json:"id"`
	Type        TaskType      `json:"type"`
	Org         string        `json:"org"`
	Repo        string        `json:"repo,omitempty"`
	Status      TaskStatus    `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Result      string        `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`

	run    func(ctx context.Context) (string, error)
	cancel context.CancelFunc
}

// NewTask creates a task with a fresh id. The run function returns a short
// human readable result for the task listing.
func NewTask(taskType TaskType, org, repo string, run func(ctx context.Context) (string, error)) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Type:      taskType,
		Org:       org,
		Repo:      repo,
		Status:    TaskStatusQueued,
		CreatedAt: time.Now(),
		run:       run,
	}
}

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
var ErrQueueFull = errors.New("task queue is full")

// TaskQueue processes tasks with a bounded buffer and a fixed worker pool.
type TaskQueue struct {
	tasks       chan *Task
	workers     int
	stopChan    chan struct{}
	wg          sync.WaitGroup
	mu          sync.RWMutex
	active      map[string]*Task
	history     []*Task
	historySize int

	journal *Journal
	events  *EventPublisher
	logger  zerolog.Logger
}

// NewTaskQueue creates a queue holding up to size tasks, processed by the
// given number of workers.
func NewTaskQueue(size, workers int, logger zerolog.Logger) *TaskQueue {
	if size <= 0 {
		size = 100
	}
	if workers <= 0 {
		workers = 2
	}

	return &TaskQueue{
		tasks:       make(chan *Task, size),
		workers:     workers,
		stopChan:    make(chan struct{}),
		active:      make(map[string]*Task),
		historySize: 50,
		logger:      logger.With().Str("component", "queue").Logger(),
	}
}

// SetJournal injects the persistent task journal.
func (q *TaskQueue) SetJournal(journal *Journal) { q.journal = journal }

// SetEventPublisher injects the optional task event publisher.
func (q *TaskQueue) SetEventPublisher(events *EventPublisher) { q.events = events }

// Start launches the worker pool. Workers exit when ctx is canceled or the
// queue is stopped.
func (q *TaskQueue) Start(ctx context.Context) {
	q.logger.Info().Int("workers", q.workers).Int("size", cap(q.tasks)).Msg("starting task queue")
	for range q.workers {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Stop cancels all running tasks and waits for the workers to drain. It
// must be called at most once.
func (q *TaskQueue) Stop() {
	close(q.stopChan)

	q.mu.Lock()
	for _, task := range q.active {
		if task.cancel != nil {
			task.cancel()
		}
	}
	q.mu.Unlock()

	q.wg.Wait()
}

// Length returns the number of queued tasks waiting for a worker.
func (q *TaskQueue) Length() int {
	return len(q.tasks)
}

// Enqueue adds a task without blocking, ErrQueueFull when at capacity.
func (q *TaskQueue) Enqueue(task *Task) error {
	if task == nil || task.run == nil {
		return errors.New("task with a run function is required")
	}

	task.Status = TaskStatusQueued
	// The snapshot is taken before the send, a worker may pick the task up
	// immediately and start mutating it.
	snapshot := *task

	select {
	case q.tasks <- task:
		tasksQueued.Inc()
		q.publish(snapshot)
		return nil
	default:
		return ErrQueueFull
	}
}

// Snapshot returns a copy of the task with the given id, active tasks
// first, then the history.
func (q *TaskQueue) Snapshot(id string) (*Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if task, ok := q.active[id]; ok {
		cp := *task
		return &cp, true
	}
	for _, task := range q.history {
		if task.ID == id {
			cp := *task
			return &cp, true
		}
	}
	return nil, false
}

// Recent returns copies of the known tasks, newest first.
func (q *TaskQueue) Recent(limit int) []*Task {
	q.mu.RLock()
	tasks := make([]*Task, 0, len(q.active)+len(q.history))
	for _, task := range q.active {
		cp := *task
		tasks = append(tasks, &cp)
	}
	for _, task := range q.history {
		cp := *task
		tasks = append(tasks, &cp)
	}
	q.mu.RUnlock()

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks
}

func (q *TaskQueue) worker(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case task := <-q.tasks:
			if task != nil {
				q.processTask(ctx, task)
			}
		}
	}
}

func (q *TaskQueue) processTask(ctx context.Context, task *Task) {
	tasksQueued.Dec()

	taskCtx, cancel := context.WithCancel(ctx)
	task.cancel = cancel
	defer cancel()

	started := time.Now()
	q.mu.Lock()
	task.StartedAt = &started
	task.Status = TaskStatusRunning
	q.active[task.ID] = task
	q.mu.Unlock()

	tasksInFlight.Inc()
	q.record(task)
	q.publish(*task)
	q.logger.Info().Str("task", task.ID).Str("type", string(task.Type)).Str("org", task.Org).Msg("task started")

	result, err := task.run(taskCtx)

	completed := time.Now()
	q.mu.Lock()
	task.CompletedAt = &completed
	task.Duration = completed.Sub(started)
	task.Result = result
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		task.Status = TaskStatusCanceled
	case err != nil:
		task.Status = TaskStatusFailed
		task.Error = err.Error()
	default:
		task.Status = TaskStatusCompleted
	}
	delete(q.active, task.ID)
	q.addToHistory(task)
	q.mu.Unlock()

	tasksInFlight.Dec()
	tasksTotal.WithLabelValues(string(task.Type), string(task.Status)).Inc()
	taskDuration.WithLabelValues(string(task.Type)).Observe(task.Duration.Seconds())
	q.record(task)
	q.publish(*task)

	event := q.logger.Info()
	if task.Status == TaskStatusFailed {
		event = q.logger.Warn()
	}
	event.Str("task", task.ID).Str("type", string(task.Type)).Str("org", task.Org).
		Str("status", string(task.Status)).Dur("duration", task.Duration).
		Str("result", task.Result).Str("error", task.Error).Msg("task finished")
}

// addToHistory appends under q.mu, keeping the ring bounded.
func (q *TaskQueue) addToHistory(task *Task) {
	q.history = append(q.history, task)
	if len(q.history) > q.historySize {
		copy(q.history, q.history[len(q.history)-q.historySize:])
		q.history = q.history[:q.historySize]
	}
}

// record writes the task state to the journal. Journal failures only log,
// they never fail the task.
func (q *TaskQueue) record(task *Task) {
	if q.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.journal.Record(ctx, task); err != nil {
		q.logger.Warn().Err(err).Str("task", task.ID).Msg("failed to journal task")
	}
}

func (q *TaskQueue) publish(task Task) {
	if q.events == nil {
		return
	}
	q.events.Publish(task)
}
