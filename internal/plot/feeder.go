// Package plot feeds a plotting child process over its stdin: one
// JSON-encoded array of per-sensor sample arrays per frame, newline
// terminated. Fire and forget, no acks and no retries; a plotter that
// falls behind or dies only costs the live view, never the acquisition.
package plot

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// trailing window pushed to the plotter, in seconds
const windowSeconds = 60

// Feeder streams window frames to a plotter.
type Feeder struct {
	w    io.Writer
	cmd  *exec.Cmd
	rate int
}

// NewFeeder wraps an existing writer. Used by tests and anywhere the
// receiving end is not a child process.
func NewFeeder(w io.Writer, rate int) *Feeder {
	return &Feeder{w: w, rate: rate}
}

// StartProcess launches the plotter child with the sampling rate and the
// sensor labels as arguments and connects a feeder to its stdin.
func StartProcess(command string, rate int, labels []string) (*Feeder, error) {
	args := append([]string{strconv.Itoa(rate)}, labels...)
	cmd := exec.Command(command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("plotter stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start plotter %q: %w", command, err)
	}
	slog.Info("Plot window launched", "command", command, "pid", cmd.Process.Pid)
	return &Feeder{w: stdin, cmd: cmd, rate: rate}, nil
}

// WindowSamples returns how many trailing samples per label a frame
// should carry.
func (f *Feeder) WindowSamples() int {
	return windowSeconds * f.rate
}

// Push writes one frame: a JSON array of per-sensor arrays plus newline.
func (f *Feeder) Push(window [][]float64) error {
	buf, err := json.Marshal(window)
	if err != nil {
		return fmt.Errorf("encode plot frame: %w", err)
	}
	buf = append(buf, '\n')
	if _, err := f.w.Write(buf); err != nil {
		return fmt.Errorf("write plot frame: %w", err)
	}
	return nil
}

// Stop interrupts the plotter child, waits briefly for it to exit and
// closes its stdin. A feeder without a child just closes its writer.
func (f *Feeder) Stop() error {
	if c, ok := f.w.(io.Closer); ok {
		defer c.Close()
	}
	if f.cmd == nil || f.cmd.Process == nil {
		return nil
	}
	if err := f.cmd.Process.Signal(os.Interrupt); err != nil {
		return f.cmd.Process.Kill()
	}
	done := make(chan error, 1)
	go func() { done <- f.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		return f.cmd.Process.Kill()
	}
}
