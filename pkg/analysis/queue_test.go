package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-analyzer/pkg/interview"
)

func task(id string, p Priority) Task {
	return Task{Response: interview.Response{ID: id}, Priority: p}
}

func TestTaskQueuePriorities(t *testing.T) {
	q := NewTaskQueue(10)
	q.Push(task("n1", PriorityNormal))
	q.Push(task("n2", PriorityNormal))
	q.Push(task("h1", PriorityHigh))

	assert.Equal(t, []string{"h1", "n1", "n2"}, q.ResponseIDs())

	head, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "h1", head.ResponseID())
	assert.Equal(t, 2, q.Len())
}

func TestTaskQueueReplacesSameResponse(t *testing.T) {
	q := NewTaskQueue(10)
	first := task("r1", PriorityNormal)
	first.Response.Content = "first"
	second := task("r1", PriorityNormal)
	second.Response.Content = "second"

	q.Push(task("other", PriorityNormal))
	q.Push(first)
	q.Push(second)

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []string{"other", "r1"}, q.ResponseIDs())

	q.Pop()
	got, _ := q.Pop()
	assert.Equal(t, "second", got.Response.Content)

	q.Push(task("r2", PriorityNormal))
	q.Push(task("r2", PriorityHigh))
	assert.Equal(t, []string{"r2"}, q.ResponseIDs(), "a replacement may change position")
}

func TestTaskQueueDropsFromTail(t *testing.T) {
	q := NewTaskQueue(2)
	assert.Empty(t, q.Push(task("a", PriorityNormal)))
	assert.Empty(t, q.Push(task("b", PriorityNormal)))

	dropped := q.Push(task("c", PriorityNormal))
	require.Len(t, dropped, 1)
	assert.Equal(t, "c", dropped[0].ResponseID())

	dropped = q.Push(task("h", PriorityHigh))
	require.Len(t, dropped, 1)
	assert.Equal(t, "b", dropped[0].ResponseID())
	assert.Equal(t, []string{"h", "a"}, q.ResponseIDs())
}

func TestTaskQueuePopEmpty(t *testing.T) {
	q := NewTaskQueue(1)
	_, ok := q.Pop()
	assert.False(t, ok)
	assert.False(t, q.Remove("x"))
	assert.False(t, q.Contains("x"))
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, ParsePriority("high"))
	assert.Equal(t, PriorityNormal, ParsePriority("normal"))
	assert.Equal(t, PriorityNormal, ParsePriority("urgent"))
}
