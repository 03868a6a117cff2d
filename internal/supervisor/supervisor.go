package supervisor

import (
	"bufio"
	"errors"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
	"golang.org/x/xerrors"
)

var log = logging.Logger("supervisor")

var (
	ErrBinaryNotFound = errors.New("service binary not found")
	ErrSpawn          = errors.New("failed to spawn service")
)

const maxLineSize = 1 << 20

// LineHandler receives one line of the service output, without the newline
type LineHandler func(line string)

// Options describes how to launch the service
type Options struct {
	BinaryPath    string
	WorkDir       string
	ListenAddress string
	ConfigFile    string

	Stdout LineHandler
	Stderr LineHandler
}

// ExitStatus is how the service ended. Signal is set instead of a
// meaningful Code when the process was terminated by a signal.
type ExitStatus struct {
	Code   int
	Signal string
}

func (s ExitStatus) Success() bool {
	return s.Code == 0 && s.Signal == ""
}

func (s ExitStatus) String() string {
	if s.Signal != "" {
		return "terminated by signal " + s.Signal
	}
	return "exit code " + strconv.Itoa(s.Code)
}

// Service is a running service process together with its output readers
type Service struct {
	cmd     *exec.Cmd
	readers *pool.ErrorPool

	waitOnce sync.Once
	status   ExitStatus
	err      error
}

// Run starts the service and waits for it to exit
func Run(opts Options) (ExitStatus, error) {
	svc, err := Start(opts)
	if err != nil {
		return ExitStatus{}, err
	}
	return svc.Wait()
}

// Start launches the service with `-listen <address> -config <file>` in
// opts.WorkDir and starts relaying its stdout and stderr line by line.
// Output lines are logged at debug only; showing them is up to the handlers.
// Errors match ErrBinaryNotFound or ErrSpawn as well as the underlying OS
// error.
func Start(opts Options) (*Service, error) {
	if _, err := os.Stat(opts.BinaryPath); err != nil {
		return nil, multierr.Combine(ErrBinaryNotFound, xerrors.Errorf("stat %s: %w", opts.BinaryPath, err))
	}

	cmd := exec.Command(opts.BinaryPath, "-listen", opts.ListenAddress, "-config", opts.ConfigFile)
	cmd.Dir = opts.WorkDir
	cmd.Env = withPathPrefix(os.Environ(), opts.WorkDir)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, multierr.Combine(ErrSpawn, xerrors.Errorf("stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, multierr.Combine(ErrSpawn, xerrors.Errorf("stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return nil, multierr.Combine(ErrSpawn, xerrors.Errorf("starting %s: %w", opts.BinaryPath, err))
	}

	pid := cmd.Process.Pid
	log.Infow("service started", "pid", pid, "binary", opts.BinaryPath, "listen", opts.ListenAddress, "dir", opts.WorkDir)

	s := &Service{
		cmd:     cmd,
		readers: pool.New().WithErrors(),
	}
	s.readers.Go(func() error {
		return relayLines(stdout, "stdout", func(line string) {
			log.Debugw("service output", "pid", pid, "line", line)
			if opts.Stdout != nil {
				opts.Stdout(line)
			}
		})
	})
	s.readers.Go(func() error {
		return relayLines(stderr, "stderr", func(line string) {
			log.Debugw("service error output", "pid", pid, "line", line)
			if opts.Stderr != nil {
				opts.Stderr(line)
			}
		})
	})

	return s, nil
}

// PID of the service process
func (s *Service) PID() int {
	return s.cmd.Process.Pid
}

// Kill terminates the service. Killing an exited service is not an error.
func (s *Service) Kill() error {
	err := s.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return xerrors.Errorf("killing service %d: %w", s.PID(), err)
	}
	return nil
}

// Wait blocks until both output streams are drained and the process has
// exited. A non-zero exit is reported in the status, not as an error; the
// error covers reader failures and failures to wait on the process.
// Wait may be called more than once.
func (s *Service) Wait() (ExitStatus, error) {
	s.waitOnce.Do(func() {
		readErr := s.readers.Wait()

		waitErr := s.cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case waitErr == nil:
		case errors.As(waitErr, &exitErr):
			waitErr = nil
		default:
			waitErr = xerrors.Errorf("waiting for service: %w", waitErr)
		}

		s.status = exitStatus(s.cmd.ProcessState)
		s.err = multierr.Combine(readErr, waitErr)

		log.Infow("service exited", "pid", s.PID(), "status", s.status.String())
	})
	return s.status, s.err
}

func exitStatus(ps *os.ProcessState) ExitStatus {
	if ps == nil {
		return ExitStatus{Code: -1}
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitStatus{Code: -1, Signal: ws.Signal().String()}
	}
	return ExitStatus{Code: ps.ExitCode()}
}

// relayLines hands every line of r to handle. After a scan error the rest of
// r is discarded so the child never blocks on a full pipe.
func relayLines(r io.Reader, stream string, handle func(string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		handle(sc.Text())
	}
	if err := sc.Err(); err != nil {
		log.Warnw("reading service output", "stream", stream, "error", err)
		_, _ = io.Copy(io.Discard, r)
		return xerrors.Errorf("reading service %s: %w", stream, err)
	}
	return nil
}

func withPathPrefix(env []string, dir string) []string {
	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.EqualFold(k, "PATH") && !found {
			found = true
			if v != "" {
				dir += string(os.PathListSeparator) + v
			}
			out = append(out, k+"="+dir)
			continue
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, "PATH="+dir)
	}
	return out
}
