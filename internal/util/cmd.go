package util

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// CmdSpec describes a subprocess to run.
type CmdSpec struct {
	Path string   // Binary path
	Args []string // Arguments
	Env  []string // Extra KEY=VALUE pairs appended to the inherited environment
	Dir  string   // Working directory; empty = inherit

	StdoutLine    func(string) // Called for each stdout line (if non-nil)
	StderrLine    func(string) // Called for each stderr line (if non-nil)
	CaptureStdout bool         // Buffer stdout even when StdoutLine is set
}

// CmdResult contains captured output and exit status.
type CmdResult struct {
	Stdout []byte
	Stderr []byte
	Code   int
	Err    error
}

// CmdRunner runs subprocesses. Tests substitute a fake that plays the binary.
type CmdRunner interface {
	Run(ctx context.Context, spec CmdSpec) (CmdResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewDefaultRunner returns the os/exec backed runner.
func NewDefaultRunner() CmdRunner { return ExecRunner{} }

func (ExecRunner) Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	return Run(ctx, spec)
}

const maxLine = 1024 * 1024

// Run executes the command and always captures stderr. Stdout is buffered
// unless a StdoutLine callback consumes it. Cancelling ctx kills the process.
// On non-zero exit the returned error carries the exit code.
func Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}

	log.Debug().Str("cmd", ShellQuote(spec.Path, spec.Args)).Msg("exec")

	if err := cmd.Start(); err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdoutPipe, func(line string) {
			if spec.StdoutLine != nil {
				spec.StdoutLine(line)
			}
			if spec.CaptureStdout || spec.StdoutLine == nil {
				stdoutBuf.WriteString(line)
				stdoutBuf.WriteByte('\n')
			}
		})
	}()
	go func() {
		defer wg.Done()
		scanLines(stderrPipe, func(line string) {
			if spec.StderrLine != nil {
				spec.StderrLine(line)
			}
			stderrBuf.WriteString(line)
			stderrBuf.WriteByte('\n')
		})
	}()

	// Drain both pipes before Wait closes them.
	wg.Wait()
	waitErr := cmd.Wait()

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	res := CmdResult{
		Stdout: stdoutBuf.Bytes(),
		Stderr: stderrBuf.Bytes(),
		Code:   code,
		Err:    waitErr,
	}
	if ctxErr := ctx.Err(); ctxErr != nil && waitErr != nil {
		return res, fmt.Errorf("command interrupted: %w", ctxErr)
	}
	if waitErr != nil {
		return res, fmt.Errorf("command failed (exit %d): %w", code, waitErr)
	}
	return res, nil
}

func scanLines(r io.Reader, fn func(string)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		fn(sc.Text())
	}
	if err := sc.Err(); err != nil {
		log.Debug().Err(err).Msg("scan subprocess output")
		// keep the pipe draining so the child never blocks on a full buffer
		_, _ = io.Copy(io.Discard, r)
	}
}

// ShellQuote returns a printable shell-like command string for logging.
func ShellQuote(path string, args []string) string {
	b := &strings.Builder{}
	b.WriteString(quote(path))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(quote(a))
	}
	return b.String()
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n\"'\\$`(){}[]*&;|<>?!") {
		return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
	}
	return s
}
