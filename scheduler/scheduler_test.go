package scheduler_test

import (
	"testing"

	"github.com/nullboot/kernel/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleWithNoTasksReturnsInputUnchanged(t *testing.T) {
	s := scheduler.New()
	var saved scheduler.CPUState
	got := s.Schedule(&saved)
	assert.Same(t, &saved, got)
}

func TestScheduleCyclesThroughEachTaskOnceBeforeRepeating(t *testing.T) {
	s := scheduler.New()
	a := scheduler.NewTask(0x1000, 0x10, 0x18, "A")
	b := scheduler.NewTask(0x2000, 0x10, 0x18, "B")
	c := scheduler.NewTask(0x3000, 0x10, 0x18, "C")
	require.True(t, s.AddTask(a))
	require.True(t, s.AddTask(b))
	require.True(t, s.AddTask(c))

	var seen []string
	frame := a.CPUState
	for i := 0; i < 9; i++ {
		frame = s.Schedule(frame)
		seen = append(seen, s.CurrentTask().EntryName)
	}
	assert.Equal(t, []string{"A", "B", "C", "A", "B", "C", "A", "B", "C"}, seen)
}

func TestNewTaskFrameInvariants(t *testing.T) {
	task := scheduler.NewTask(0xCAFEBABE, 0x10, 0x18, "init")
	assert.EqualValues(t, 0xCAFEBABE, task.CPUState.EIP)
	assert.EqualValues(t, 0x10, task.CPUState.CS)
	assert.EqualValues(t, 0x18, task.CPUState.SS)
	assert.EqualValues(t, 0x202, task.CPUState.EFlags)
	assert.EqualValues(t, scheduler.StackSize, task.CPUState.ESP)
}

func TestAddTaskFailsWhenTableFull(t *testing.T) {
	s := scheduler.New()
	for i := 0; i < scheduler.MaxTasks; i++ {
		require.True(t, s.AddTask(scheduler.NewTask(0, 0x10, 0x18, "t")))
	}
	assert.False(t, s.AddTask(scheduler.NewTask(0, 0x10, 0x18, "overflow")))
}

func TestScheduleSavesOutgoingFrameBeforeAdvancing(t *testing.T) {
	s := scheduler.New()
	a := scheduler.NewTask(0x1000, 0x10, 0x18, "A")
	b := scheduler.NewTask(0x2000, 0x10, 0x18, "B")
	s.AddTask(a)
	s.AddTask(b)

	_ = s.Schedule(a.CPUState) // first tick: nothing outgoing yet, switches to A
	mutated := &scheduler.CPUState{EIP: 0xDEAD}
	_ = s.Schedule(mutated) // second tick: saves mutated into A, switches to B
	assert.Same(t, mutated, a.CPUState)
}

// ABCABCABC: three tasks print their name each time they're scheduled,
// driven by simulated timer ticks.
func TestThreeTaskRoundRobinProducesABCInterleaving(t *testing.T) {
	s := scheduler.New()
	var output []byte
	names := []byte{'A', 'B', 'C'}
	for _, n := range names {
		s.AddTask(scheduler.NewTask(0, 0x10, 0x18, string(n)))
	}

	frame := &scheduler.CPUState{}
	for i := 0; i < 9; i++ {
		frame = s.Schedule(frame)
		output = append(output, s.CurrentTask().EntryName[0])
	}
	assert.Equal(t, "ABCABCABC", string(output))
}
