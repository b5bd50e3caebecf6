//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// control stops a running subprocess.
type control struct {
	cmd *exec.Cmd
}

// prepare puts the subprocess in its own process group so a kill reaches
// any children it spawned.
func prepare(cmd *exec.Cmd) (*control, error) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return &control{cmd: cmd}, nil
}

// interrupt sends SIGINT, which ffmpeg treats as a request to finalize and exit.
func (c *control) interrupt() error {
	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Signal(syscall.SIGINT)
}

func (c *control) kill() error {
	if c.cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-c.cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}
