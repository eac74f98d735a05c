// ABOUTME: Tests for the serialized task runner
// ABOUTME: Verifies in-order execution and shutdown draining
package decrypt

import (
	"testing"
	"time"
)

func TestRunnerExecutesInOrder(t *testing.T) {
	r := newTaskRunner()
	defer r.Shutdown()

	var got []int
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		i := i
		r.Post(func() { got = append(got, i) })
	}
	r.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tasks")
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("tasks ran out of order: %v", got)
		}
	}
}

func TestRunnerDropsAfterShutdown(t *testing.T) {
	r := newTaskRunner()
	r.Shutdown()

	if r.TryPost(func() { t.Error("task ran after shutdown") }) {
		t.Fatal("TryPost accepted a task after shutdown")
	}
	time.Sleep(20 * time.Millisecond)
}

func TestRunnerDrainsQueuedTasksOnShutdown(t *testing.T) {
	r := newTaskRunner()

	// Hold the loop inside a task so more work queues up behind it,
	// then shut down while that work is still pending.
	block := make(chan struct{})
	ran := make(chan struct{})
	r.Post(func() { <-block })
	r.Post(func() { close(ran) })
	r.Shutdown()
	close(block)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task accepted before shutdown was dropped")
	}
}

func TestRunnerShutdownFromTask(t *testing.T) {
	r := newTaskRunner()

	done := make(chan struct{})
	r.Post(func() {
		r.Shutdown()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for self-shutdown task")
	}

	if r.TryPost(func() {}) {
		t.Fatal("runner accepted work after self-shutdown")
	}
}
