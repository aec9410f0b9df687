// Package job implements job control: the job table, process-group
// bookkeeping and the SIGCHLD-driven reap loop. It mirrors the state
// machine in the reference job_control module, adapted to Go's
// os/signal self-pipe (a channel fed by signal.Notify) instead of a
// hand-rolled pipe pair.
package job

import (
	"fmt"
	"os"
	"sync"

	"github.com/phuslu/log"
	"golang.org/x/sys/unix"
)

// State is a job's run state.
type State int

const (
	Running State = iota
	Stopped
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Job tracks one pipeline the shell launched, foreground or background.
type Job struct {
	ID          int
	Pgid        int
	Pids        []int
	State       State
	Foreground  bool
	CommandLine string
	// LastPid is the pid of the pipeline's rightmost command, fixed at
	// Add time: only its exit may set ExitStatus, regardless of which
	// pid the OS happens to reap last.
	LastPid int
	// ExitStatus is the exit status of the pipeline's last process, valid
	// once State is Done.
	ExitStatus int
}

func (j *Job) String() string {
	marker := "-"
	if j.Foreground {
		marker = "+"
	}
	return fmt.Sprintf("[%d]%s %s\t%s", j.ID, marker, j.State, j.CommandLine)
}

// Table is the shell's job table, safe for concurrent access from the
// REPL goroutine and the SIGCHLD reaper goroutine.
type Table struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   map[int]*Job
	nextID int
}

func NewTable() *Table {
	t := &Table{jobs: map[int]*Job{}, nextID: 1}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Add registers a newly spawned pipeline as a job and returns it. pids
// must be in pipeline order, leftmost command first: the rightmost
// command's pid is the only one allowed to set the job's ExitStatus.
func (t *Table) Add(pgid int, pids []int, foreground bool, commandLine string) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	j := &Job{
		ID:          t.nextID,
		Pgid:        pgid,
		Pids:        pids,
		State:       Running,
		Foreground:  foreground,
		CommandLine: commandLine,
		LastPid:     pids[len(pids)-1],
	}
	t.nextID++
	t.jobs[j.ID] = j
	return j
}

func (t *Table) Get(id int) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	return j, ok
}

// ByPgid finds the job owning the given process group, used by the
// reaper to attribute a Wait4 result.
func (t *Table) ByPgid(pgid int) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.jobs {
		if j.Pgid == pgid {
			return j, true
		}
	}
	return nil, false
}

// List returns every tracked job, sorted by ID.
func (t *Table) List() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].ID > out[j].ID; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Remove drops a Done job from the table, as `jobs` implicitly does the
// next time it's run after reporting a job's completion.
func (t *Table) Remove(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, id)
}

// SetRunning marks j Running again after a SIGCONT, for fg/bg.
func (t *Table) SetRunning(j *Job, foreground bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j.State = Running
	j.Foreground = foreground
}

// Wait blocks until the job leaves the Running state: either every
// process in its group has exited (Done) or the group has been stopped
// (Stopped, e.g. by SIGTSTP), so a foreground wait returns control to
// the REPL either way instead of hanging across a Ctrl-Z.
func (j *Job) Wait(t *Table) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for j.State == Running {
		t.cond.Wait()
	}
}

// markExited updates a job's bookkeeping for one of its pids exiting or
// stopping with status ws, broadcasting to any waiter once the job's
// State has changed.
func (t *Table) markExited(j *Job, pid int, ws unix.WaitStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ws.Stopped() {
		j.State = Stopped
		log.Debug().Int("job", j.ID).Int("pid", pid).Msg("job stopped")
		t.cond.Broadcast()
		return
	}

	remaining := j.Pids[:0]
	for _, p := range j.Pids {
		if p != pid {
			remaining = append(remaining, p)
		}
	}
	j.Pids = remaining

	if pid == j.LastPid {
		switch {
		case ws.Exited():
			j.ExitStatus = ws.ExitStatus()
		case ws.Signaled():
			j.ExitStatus = 128 + int(ws.Signal())
		}
	}

	if len(j.Pids) == 0 {
		j.State = Done
		log.Debug().Int("job", j.ID).Int("pgid", j.Pgid).Int("status", j.ExitStatus).Msg("job done")
		t.cond.Broadcast()
	}
}

// Reaper drains SIGCHLD notifications and reaps exited children,
// attributing each to its job. Go's os/signal channel already
// implements the classic self-pipe trick: signal delivery never runs
// user code directly, it only queues a wakeup on a buffered channel
// that this goroutine drains on its own schedule.
type Reaper struct {
	table *Table
	sigCh chan os.Signal
	stop  chan struct{}
}

func NewReaper(table *Table, sigCh chan os.Signal) *Reaper {
	return &Reaper{table: table, sigCh: sigCh, stop: make(chan struct{})}
}

func (r *Reaper) Run() {
	for {
		select {
		case <-r.stop:
			return
		case <-r.sigCh:
			r.reapAll()
		}
	}
}

func (r *Reaper) Stop() {
	close(r.stop)
}

func (r *Reaper) reapAll() {
	log.Debug().Msg("sigchld wakeup")
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED, nil)
		if err != nil || pid <= 0 {
			return
		}
		j, ok := r.jobByPid(pid)
		if !ok {
			continue
		}
		r.table.markExited(j, pid, ws)
	}
}

func (r *Reaper) jobByPid(pid int) (*Job, bool) {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()
	for _, j := range r.table.jobs {
		for _, p := range j.Pids {
			if p == pid {
				return j, true
			}
		}
	}
	return nil, false
}
