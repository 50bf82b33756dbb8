package launcher

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/0xADE/ade-launchd/internal/indexer"
	"github.com/0xADE/ade-launchd/internal/indexer/executable"
	"github.com/0xADE/ade-launchd/internal/logging"
)

// Opener hands an entry to the desktop environment.
type Opener interface {
	Open(entry indexer.Entry) error
}

// XDGOpener starts shortcuts with gio, runs executables directly and leaves
// everything else to xdg-open. It does not wait for the program to exit.
type XDGOpener struct {
	Gio     string // defaults to "gio"
	XDGOpen string // defaults to "xdg-open"
}

// Command returns the argv used to open entry.
func (o XDGOpener) Command(entry indexer.Entry) []string {
	gio, xdgOpen := o.Gio, o.XDGOpen
	if gio == "" {
		gio = "gio"
	}
	if xdgOpen == "" {
		xdgOpen = "xdg-open"
	}

	if executable.Ext(entry.Path) == "desktop" {
		return []string{gio, "launch", entry.Path}
	}
	if info, err := os.Stat(entry.Path); err == nil && info.Mode().IsRegular() && executable.IsExecutable(info.Mode()) {
		return []string{entry.Path}
	}
	return []string{xdgOpen, entry.Path}
}

// Open implements Opener.
func (o XDGOpener) Open(entry indexer.Entry) error {
	argv := o.Command(entry)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	logging.Debug("Started %v with PID %d", argv, cmd.Process.Pid)

	go func() {
		if err := cmd.Wait(); err != nil {
			logging.Debug("%s exited: %v", argv[0], err)
		}
	}()
	return nil
}
