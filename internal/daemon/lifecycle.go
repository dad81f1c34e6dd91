package daemon

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrLockHeld = errors.New("triad daemon already running")

// Lifecycle guards one daemon per pid file. The pid file stays under an
// exclusive flock while the daemon runs, so a crashed daemon leaves no lock
// behind, only a file the next daemon overwrites.
type Lifecycle struct {
	pidPath    string
	socketPath string
	file       *os.File
}

func NewLifecycle(pidPath, socketPath string) *Lifecycle {
	return &Lifecycle{pidPath: pidPath, socketPath: socketPath}
}

// Acquire locks the pid file and records our pid in it. When another
// daemon holds it the error wraps ErrLockHeld and names that daemon's pid.
func (l *Lifecycle) Acquire() error {
	if l.file != nil {
		return nil
	}
	if info, err := os.Lstat(l.pidPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("pid file %s is a symlink", l.pidPath)
	}

	f, err := os.OpenFile(l.pidPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open pid file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		if errors.Is(err, ErrLockHeld) {
			if pid, rerr := l.PID(); rerr == nil && pid > 0 {
				return fmt.Errorf("%w: pid %d", err, pid)
			}
		}
		return err
	}

	if err := writePID(f); err != nil {
		unlockFile(f)
		f.Close()
		return fmt.Errorf("write pid file: %w", err)
	}
	l.file = f
	return nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		return err
	}
	return f.Sync()
}

// PID returns the pid recorded in the pid file, 0 when there is none.
func (l *Lifecycle) PID() (int, error) {
	data, err := os.ReadFile(l.pidPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(content)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q in %s", content, l.pidPath)
	}
	return pid, nil
}

// Running reports whether a daemon answers on the socket.
func (l *Lifecycle) Running() bool {
	conn, err := net.DialTimeout("unix", l.socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Cleanup removes the pid file and then drops the lock.
func (l *Lifecycle) Cleanup() {
	if l.file == nil {
		return
	}
	if err := os.Remove(l.pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Debug("pid file cleanup failed", "error", err)
	}
	unlockFile(l.file)
	if err := l.file.Close(); err != nil {
		log.Debug("pid file close failed", "error", err)
	}
	l.file = nil
}
