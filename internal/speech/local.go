package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"phi.ai/agent-console/internal/config"
)

// Local speaks through a synthesis command on this machine, for example
// espeak-ng or say. The text is passed as the final argument.
type Local struct {
	command string
	args    []string
}

// NewLocal splits command on whitespace: "espeak-ng -s 160" is valid.
func NewLocal(command string) *Local {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return &Local{}
	}
	return &Local{command: fields[0], args: fields[1:]}
}

func (l *Local) Name() string { return config.SpeechBackendLocal }

func (l *Local) Synthesize(ctx context.Context, text string) (*Clip, error) {
	if l.command == "" {
		return nil, errors.New("no local speech command configured")
	}
	args := append(append([]string{}, l.args...), text)
	out, err := exec.CommandContext(ctx, l.command, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", l.command, err, strings.TrimSpace(string(out)))
	}
	return &Clip{ID: ClipID(text), Text: text}, nil
}
