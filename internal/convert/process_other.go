//go:build !unix

package convert

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// terminate kills the process; there is no SIGTERM here.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// exitStatus treats an unknown exit code as termination by the OS.
func exitStatus(state *os.ProcessState) (code int, signaled bool) {
	if state == nil {
		return -1, false
	}
	code = state.ExitCode()
	return code, code == -1
}
