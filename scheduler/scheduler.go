// Package scheduler implements cooperative round-robin task switching
// driven by the timer interrupt. There is no preemption within a tick
// handler and no dynamic allocation during dispatch: every task's stack
// and register frame is carved out up front by Task, and Scheduler only
// ever walks a fixed array of pointers to them.
package scheduler

// StackSize is the fixed size of every task's pre-allocated stack buffer.
const StackSize = 4096

// MaxTasks bounds the scheduler's task table, matching the fixed array the
// core keeps rather than a dynamically growing one.
const MaxTasks = 256

// initialEFlags is loaded into every task's frame so IF=1 from its first
// instruction: a task that masked interrupts would never be preempted back
// to the scheduler.
const initialEFlags = 0x202

// CPUState is the register frame saved on a task's stack at every timer
// tick, in the order the simulated interrupt entry path pushes them.
type CPUState struct {
	EAX, EBX, ECX, EDX uint32
	ESI, EDI, EBP      uint32
	ErrorCode          uint32
	EIP                uint32
	CS                 uint16
	EFlags             uint32
	ESP                uint32
	SS                 uint16
}

// Task is one schedulable unit of execution: a stack buffer and a pointer
// to its current register frame. The frame is a separate CPUState value;
// it is not stored inside Stack, and nothing is ever written to Stack.
type Task struct {
	Stack     [StackSize]byte
	CPUState  *CPUState
	EntryName string // diagnostic label, not used by scheduling logic
}

// NewTask builds a task whose frame has ESP set to the top of its stack
// (StackSize), ready to begin executing at entryPoint the first time the
// scheduler switches to it. codeSelector and dataSelector are normally gdt.CodeSelector and
// gdt.DataSelector.
func NewTask(entryPoint uint32, codeSelector, dataSelector uint16, name string) *Task {
	t := &Task{EntryName: name}
	frame := &CPUState{
		EIP:    entryPoint,
		CS:     codeSelector,
		EFlags: initialEFlags,
		ESP:    uint32(StackSize),
		SS:     dataSelector,
	}
	t.CPUState = frame
	return t
}

// Scheduler holds the fixed task table and round-robin cursor. Build one
// with New, which starts the cursor at -1 before the first dispatch; the
// zero value starts it at 0 instead.
type Scheduler struct {
	tasks       [MaxTasks]*Task
	numTasks    int
	currentTask int
}

// New returns a Scheduler with no tasks yet.
func New() *Scheduler {
	return &Scheduler{currentTask: -1}
}

// AddTask appends t to the task table, returning false if the table is
// full.
func (s *Scheduler) AddTask(t *Task) bool {
	if s.numTasks >= MaxTasks {
		return false
	}
	s.tasks[s.numTasks] = t
	s.numTasks++
	return true
}

// NumTasks reports how many tasks are registered.
func (s *Scheduler) NumTasks() int { return s.numTasks }

// CurrentTask returns the task most recently dispatched, or nil before the
// first tick.
func (s *Scheduler) CurrentTask() *Task {
	if s.currentTask < 0 {
		return nil
	}
	return s.tasks[s.currentTask]
}

// Schedule is the timer tick's tail call: it saves the incoming frame into
// the task that was running, advances the round-robin cursor, and returns
// the next task's frame. With no tasks registered, savedState passes
// through unchanged.
func (s *Scheduler) Schedule(savedState *CPUState) *CPUState {
	if s.numTasks == 0 {
		return savedState
	}
	if s.currentTask >= 0 {
		s.tasks[s.currentTask].CPUState = savedState
	}
	s.currentTask = (s.currentTask + 1) % s.numTasks
	return s.tasks[s.currentTask].CPUState
}
