package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// exited builds a WaitStatus as if wait(2) reported a normal exit with
// the given status, without spawning a real process.
func exited(status int) unix.WaitStatus {
	return unix.WaitStatus(status << 8)
}

func TestMarkExitedOnlyRightmostPidSetsStatus(t *testing.T) {
	table := NewTable()
	j := table.Add(100, []int{100, 101, 102}, true, "sleep 1 | true | false")

	// Reaped out of pipeline order: the rightmost command (102) exits
	// first with status 1, then the earlier stages exit later with 0.
	// Only 102's status may stick.
	table.markExited(j, 102, exited(1))
	assert.Equal(t, Running, j.State)
	assert.Equal(t, 1, j.ExitStatus)

	table.markExited(j, 100, exited(0))
	assert.Equal(t, 1, j.ExitStatus, "an earlier stage's exit must not overwrite the rightmost command's status")

	table.markExited(j, 101, exited(0))
	require.Equal(t, Done, j.State)
	assert.Equal(t, 1, j.ExitStatus)
}

func TestMarkExitedLastInTimeDoesNotOverwrite(t *testing.T) {
	table := NewTable()
	j := table.Add(200, []int{200, 201}, true, "sleep 1 | false")

	// false (201, the rightmost command) exits almost immediately...
	table.markExited(j, 201, exited(1))
	// ...but sleep (200) is reaped last in time.
	table.markExited(j, 200, exited(0))

	require.Equal(t, Done, j.State)
	assert.Equal(t, 1, j.ExitStatus)
}

func TestMarkExitedSignaledSetsStatus(t *testing.T) {
	table := NewTable()
	j := table.Add(300, []int{300}, true, "sleep 100")

	signaled := unix.WaitStatus(int(unix.SIGKILL))
	table.markExited(j, 300, signaled)

	require.Equal(t, Done, j.State)
	assert.Equal(t, 128+int(unix.SIGKILL), j.ExitStatus)
}

func TestMarkExitedStoppedDoesNotRemovePid(t *testing.T) {
	table := NewTable()
	j := table.Add(400, []int{400}, true, "sleep 100")

	stopped := unix.WaitStatus(0x7f | (int(unix.SIGTSTP) << 8))
	table.markExited(j, 400, stopped)

	assert.Equal(t, Stopped, j.State)
	assert.Equal(t, []int{400}, j.Pids)
}
