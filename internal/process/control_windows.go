//go:build windows

package process

import (
	"io"
	"os/exec"
	"syscall"
)

// control stops a running subprocess.
type control struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// prepare keeps a stdin pipe open: Windows has no SIGINT for child
// processes, ffmpeg quits cleanly on "q" instead.
func prepare(cmd *exec.Cmd) (*control, error) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	return &control{cmd: cmd, stdin: stdin}, nil
}

func (c *control) interrupt() error {
	if _, err := io.WriteString(c.stdin, "q\n"); err != nil {
		return err
	}
	return c.stdin.Close()
}

func (c *control) kill() error {
	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Kill()
}
