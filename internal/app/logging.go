package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
)

// newLogger builds the root logger. With a log file configured, output goes
// there instead of stderr so it never interleaves with CLI output.
func newLogger(level, file string, stderr io.Writer) (hclog.Logger, io.Closer, error) {
	output := stderr
	var closer io.Closer
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		output = f
		closer = f
	}
	if output == nil {
		output = io.Discard
	}

	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Warn
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "reeltrack",
		Level:  lvl,
		Output: output,
	}), closer, nil
}
