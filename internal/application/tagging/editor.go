package tagging

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

// DefaultEditor is used when neither the flag nor $EDITOR names one.
const DefaultEditor = "vim"

const editorHeader = `# edit the tag message of each component below, one "id: message" per line.
# lines starting with "#" are ignored. removing a line keeps its message.
`

// ComponentMessage is the tag message of one component.
type ComponentMessage struct {
	ID      component.ID
	Message string
}

// MessageEditor lets the user edit the tag messages of the direct tags.
type MessageEditor interface {
	EditMessages(ctx context.Context, messages []ComponentMessage) ([]ComponentMessage, error)
}

// ExecEditor edits messages in an external editor on a temp file.
type ExecEditor struct {
	command string
}

// NewExecEditor creates an editor running command, falling back to $EDITOR
// and then DefaultEditor.
func NewExecEditor(command string) *ExecEditor {
	if command == "" {
		command = os.Getenv("EDITOR")
	}
	if command == "" {
		command = DefaultEditor
	}
	return &ExecEditor{command: command}
}

// EditMessages opens the editor and parses the edited file.
func (e *ExecEditor) EditMessages(ctx context.Context, messages []ComponentMessage) ([]ComponentMessage, error) {
	const op = "tagging.ExecEditor.EditMessages"

	f, err := os.CreateTemp("", "bitsmith-tag-*.txt")
	if err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to create message file")
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(FormatMessages(messages)); err != nil {
		_ = f.Close()
		return nil, bserrors.IOWrap(err, op, "failed to write message file")
	}
	if err := f.Close(); err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to write message file")
	}

	fields := strings.Fields(e.command)
	cmd := exec.CommandContext(ctx, fields[0], append(fields[1:], path)...) // #nosec G204 -- editor chosen by the user
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, bserrors.Wrap(err, bserrors.KindIO, op, fmt.Sprintf("editor %q failed", e.command))
	}

	data, err := os.ReadFile(path) // #nosec G304 -- temp file created above
	if err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to read message file")
	}
	return ParseMessages(data, messages)
}

// FormatMessages renders messages in the editable "id: message" format.
func FormatMessages(messages []ComponentMessage) string {
	var b strings.Builder
	b.WriteString(editorHeader)
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.ID.WithoutVersion(), m.Message)
	}
	return b.String()
}

// ParseMessages applies an edited file to messages. Components missing from
// the file keep their message; unknown ids are an error.
func ParseMessages(data []byte, messages []ComponentMessage) ([]ComponentMessage, error) {
	const op = "tagging.ParseMessages"

	out := make([]ComponentMessage, len(messages))
	copy(out, messages)
	index := make(map[string]int, len(out))
	for i, m := range out {
		index[m.ID.FullName()] = i
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rawID, msg, ok := strings.Cut(text, ":")
		if !ok {
			return nil, bserrors.Validation(op, fmt.Sprintf("line %d: expected \"id: message\"", line))
		}
		id, err := component.ParseID(strings.TrimSpace(rawID))
		if err != nil {
			return nil, bserrors.ValidationWrap(err, op, fmt.Sprintf("line %d", line))
		}
		i, ok := index[id.FullName()]
		if !ok {
			return nil, bserrors.Validation(op, fmt.Sprintf("line %d: %s is not being tagged", line, id))
		}
		out[i].Message = strings.TrimSpace(msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to read messages")
	}
	return out, nil
}
