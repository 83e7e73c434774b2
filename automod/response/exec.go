package response

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runs the program with the message content on stdin and message context in the environment. The process is killed once the timeout elapses.
func runExec(ctx context.Context, env *Env, act ExecAction) (string, error) {
	timeout := act.Timeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg := env.Message
	//nolint:gosec // G204: program and arguments come from trusted configuration
	cmd := exec.CommandContext(ctx, act.Program, act.Args...)
	cmd.Env = append(os.Environ(),
		"CHATMOD_RULE="+env.RuleName,
		"CHATMOD_GUILD="+strconv.FormatUint(msg.GuildID, 10),
		"CHATMOD_CHANNEL="+strconv.FormatUint(msg.ChannelID, 10),
		"CHATMOD_USER="+strconv.FormatUint(msg.Author.ID, 10),
		"CHATMOD_MESSAGE="+strconv.FormatUint(msg.ID, 10),
	)
	cmd.Stdin = strings.NewReader(msg.Content)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: %s after %s", ErrExecTimeout, act.Program, timeout)
	}
	if err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("exec %s: %w: %s", act.Program, err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("exec %s: %w", act.Program, err)
	}
	env.logger().Debug("exec response finished", "program", act.Program, "stdout_bytes", stdout.Len())
	return stdout.String(), nil
}
