package hook

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
)

// PIDPlaceholder is replaced by the target process id in Command.
const PIDPlaceholder = "{pid}"

// ExecInstrumenter runs an external helper (for example a Frida script
// runner) that prints one captured line per stdout line. Command is split on
// whitespace; no shell is involved.
type ExecInstrumenter struct {
	Command string
}

func (e ExecInstrumenter) Subscribe(ctx context.Context, pid int) (<-chan string, func(), error) {
	args := strings.Fields(strings.ReplaceAll(e.Command, PIDPlaceholder, itoa(pid)))
	if len(args) == 0 {
		return nil, nil, apperrors.New(apperrors.HookFailed, "no hook command configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, nil, err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				_ = cmd.Wait()
				return
			}
		}
		_ = cmd.Wait()
	}()
	return lines, cancel, nil
}

func itoa(n int) string { return strconv.Itoa(n) }
