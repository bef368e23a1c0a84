package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"

	"github.com/tripweaver/tripweaver/internal/travel"
)

// Blocked workers exit with this code so the dispatcher can tell a CAPTCHA
// wall apart from an ordinary crash.
const blockedExitCode = 3

// ProcessWorker runs a search by executing a subprocess. Task parameters
// become --flag arguments; the worker prints a JSON body with an "items"
// array (or a bare array) on stdout.
type ProcessWorker struct {
	command string
	args    []string
}

// NewProcessWorker creates a worker that executes command with the given
// base arguments before the per-task flags.
func NewProcessWorker(command string, args ...string) *ProcessWorker {
	return &ProcessWorker{command: command, args: args}
}

// Search executes the subprocess and parses its stdout.
func (w *ProcessWorker) Search(ctx context.Context, task travel.Task) ([]travel.Item, error) {
	args := append(append([]string(nil), w.args...), taskFlags(task)...)

	cmd := exec.CommandContext(ctx, w.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == blockedExitCode {
			return nil, fmt.Errorf("%s worker: %w: %s", task.Domain, ErrBlocked, firstLine(stderr.Bytes()))
		}
		return nil, fmt.Errorf("%s worker: %w: %s", task.Domain, err, firstLine(stderr.Bytes()))
	}

	items, err := parseItems(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s worker: %w: %v", task.Domain, ErrInvalidResponse, err)
	}
	for i := range items {
		items[i].Domain = task.Domain
	}
	return items, nil
}

// taskFlags renders params as sorted --key value pairs. Date keys map onto
// the conventional --depart/--return flag names for flight workers.
func taskFlags(task travel.Task) []string {
	flagNames := map[string]string{
		"start_date": "depart",
		"end_date":   "return",
	}

	keys := make([]string, 0, len(task.Params))
	for k := range task.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var flags []string
	for _, k := range keys {
		name := k
		if mapped, ok := flagNames[k]; ok {
			name = mapped
		}
		flags = append(flags, "--"+name, flagValue(task.Params[k]))
	}
	return flags
}

func flagValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// parseItems accepts either {"items": [...]} or a bare item array.
func parseItems(data []byte) ([]travel.Item, error) {
	var wrapped struct {
		Items []travel.Item `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Items != nil {
		return wrapped.Items, nil
	}

	var items []travel.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	return items, nil
}

func firstLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i]
	}
	return b
}
