package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

var ErrEmptyCommand = errors.New("shell: empty command")

// Command - exec.Cmd that can be waited from many goroutines and closed
type Command struct {
	*exec.Cmd

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func NewCommand(s string) (*Command, error) {
	return NewCommandContext(context.Background(), s)
}

// NewCommandContext - the process is killed when ctx is done or on Close
func NewCommandContext(ctx context.Context, s string) (*Command, error) {
	args := QuoteSplit(s)
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.SysProcAttr = procAttr

	return &Command{Cmd: cmd, cancel: cancel, done: make(chan struct{})}, nil
}

func (c *Command) Start() error {
	if err := c.Cmd.Start(); err != nil {
		c.cancel()
		return err
	}

	go func() {
		c.err = c.Cmd.Wait()
		c.cancel()
		close(c.done)
	}()

	return nil
}

// Wait - only after a successful Start
func (c *Command) Wait() error {
	<-c.done
	return c.err
}

func (c *Command) Run() error {
	if err := c.Start(); err != nil {
		return err
	}
	return c.Wait()
}

// Output runs the command and returns its stdout
func (c *Command) Output() ([]byte, error) {
	var stdout bytes.Buffer
	c.Stdout = &stdout
	if err := c.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

func (c *Command) Done() <-chan struct{} {
	return c.done
}

func (c *Command) Close() error {
	c.cancel()
	return nil
}
