package analysis

import (
	"time"

	"interview-analyzer/pkg/interview"
)

// Priority decides where a task enters the queue
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

// ParsePriority maps free text to a priority, defaulting to normal
func ParsePriority(s string) Priority {
	if Priority(s) == PriorityHigh {
		return PriorityHigh
	}
	return PriorityNormal
}

// Task is a pending comprehensive analysis
type Task struct {
	Response   interview.Response
	Question   interview.Question
	Priority   Priority
	EnqueuedAt time.Time

	key        string
	inputs     DigestInputs
	generation uint64
}

func (t Task) ResponseID() string {
	return t.Response.ID
}

// TaskQueue holds at most one task per response id. High priority tasks
// enter at the head, normal ones at the tail, and the tail is dropped once
// capacity is exceeded. It is not safe for concurrent use; the orchestrator
// owns it under its own lock.
type TaskQueue struct {
	tasks    []Task
	capacity int
}

// NewTaskQueue creates a queue bounded to capacity tasks
func NewTaskQueue(capacity int) *TaskQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &TaskQueue{capacity: capacity}
}

// Push adds task, replacing any queued task for the same response, and
// returns the tasks that fell off the tail
func (q *TaskQueue) Push(task Task) []Task {
	q.Remove(task.ResponseID())

	if task.Priority == PriorityHigh {
		q.tasks = append([]Task{task}, q.tasks...)
	} else {
		q.tasks = append(q.tasks, task)
	}

	if len(q.tasks) <= q.capacity {
		return nil
	}
	dropped := append([]Task(nil), q.tasks[q.capacity:]...)
	q.tasks = q.tasks[:q.capacity]
	return dropped
}

// Pop removes and returns the head of the queue
func (q *TaskQueue) Pop() (Task, bool) {
	if len(q.tasks) == 0 {
		return Task{}, false
	}
	task := q.tasks[0]
	q.tasks[0] = Task{}
	q.tasks = q.tasks[1:]
	return task, true
}

// Remove drops the queued task for responseID, reporting whether one existed
func (q *TaskQueue) Remove(responseID string) bool {
	for i, t := range q.tasks {
		if t.ResponseID() == responseID {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return true
		}
	}
	return false
}

func (q *TaskQueue) Contains(responseID string) bool {
	for _, t := range q.tasks {
		if t.ResponseID() == responseID {
			return true
		}
	}
	return false
}

func (q *TaskQueue) Len() int {
	return len(q.tasks)
}

// ResponseIDs lists queued response ids from head to tail
func (q *TaskQueue) ResponseIDs() []string {
	ids := make([]string, len(q.tasks))
	for i, t := range q.tasks {
		ids[i] = t.ResponseID()
	}
	return ids
}
