// Package doctor runs the environment preflight checks behind
// `genstudio doctor`.
package doctor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// PassMark and FailMark prefix every printed check line.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc reports the version of an external component.
type VersionFunc func() (string, error)

// Config holds the probes for each check. Nil probes are reported as
// skipped.
type Config struct {
	HasCredential bool

	FFmpegVersion  VersionFunc
	FFprobeVersion VersionFunc

	// SkipPocketTTS disables the local speech checks when the gemini
	// backend is selected.
	SkipPocketTTS    bool
	PocketTTSVersion VersionFunc
	// PythonVersion returns a bare version such as "3.11.4".
	PythonVersion VersionFunc

	StateDir   string
	VoiceFiles []string
}

// Result collects failure messages.
type Result struct {
	failures []string
}

func (r *Result) Failed() bool       { return len(r.failures) > 0 }
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure records a failure found outside Run.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

// check is one line of doctor output. A nil probe is printed as skipped.
type check struct {
	name  string
	probe func() (string, error)
}

// Run executes the checks in cfg order and prints one line per check to w.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	for _, c := range checks(cfg) {
		if c.probe == nil {
			fmt.Fprintf(w, "%s %s: skipped\n", PassMark, c.name)
			continue
		}

		detail, err := c.probe()
		if err != nil {
			res.AddFailure(fmt.Sprintf("%s: %v", c.name, err))
			fmt.Fprintf(w, "%s %s: %v\n", FailMark, c.name, err)
			continue
		}
		fmt.Fprintf(w, "%s %s: %s\n", PassMark, c.name, detail)
	}

	return res
}

func checks(cfg Config) []check {
	list := []check{
		{"api key", func() (string, error) {
			if !cfg.HasCredential {
				return "", errors.New("not configured (set GEMINI_API_KEY or run `genstudio key set`)")
			}
			return "configured", nil
		}},
		{"ffmpeg", probe(cfg.FFmpegVersion)},
		{"ffprobe", probe(cfg.FFprobeVersion)},
	}

	if cfg.SkipPocketTTS {
		list = append(list, check{name: "pocket-tts binary"})
	} else {
		list = append(list,
			check{"pocket-tts binary", probe(cfg.PocketTTSVersion)},
			check{"python version", pythonProbe(cfg.PythonVersion)},
		)
	}

	if cfg.StateDir != "" {
		dir := cfg.StateDir
		list = append(list, check{"state dir", func() (string, error) {
			if err := checkWritable(dir); err != nil {
				return "", fmt.Errorf("%s: %w", dir, err)
			}
			return dir, nil
		}})
	}

	for _, path := range cfg.VoiceFiles {
		list = append(list, check{"voice file", func() (string, error) {
			if _, err := os.Stat(path); err != nil {
				return "", fmt.Errorf("%s: not found", path)
			}
			return path, nil
		}})
	}

	return list
}

func probe(fn VersionFunc) func() (string, error) {
	if fn == nil {
		return nil
	}
	return func() (string, error) { return fn() }
}

// pythonProbe checks that the interpreter pocket-tts runs under is supported.
func pythonProbe(fn VersionFunc) func() (string, error) {
	if fn == nil {
		return nil
	}
	return func() (string, error) {
		ver, err := fn()
		if err != nil {
			return "", err
		}
		if err := supportedPython(ver); err != nil {
			return "", fmt.Errorf("%s: %w", ver, err)
		}
		return ver, nil
	}
}

// Supported Python range for pocket-tts, upper bound exclusive.
var (
	minPython = []int{3, 10}
	maxPython = []int{3, 15}
)

func supportedPython(ver string) error {
	v, err := parseVersion(ver)
	if err != nil {
		return err
	}
	if compareVersions(v, minPython) < 0 || compareVersions(v, maxPython) >= 0 {
		return fmt.Errorf("requires Python >=3.10,<3.15")
	}
	return nil
}

// parseVersion reads the numeric major.minor[.patch] prefix of ver.
func parseVersion(ver string) ([]int, error) {
	fields := strings.Split(strings.TrimSpace(ver), ".")
	if len(fields) < 2 {
		return nil, fmt.Errorf("unexpected version format %q", ver)
	}

	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			if len(out) >= 2 {
				break
			}
			return nil, fmt.Errorf("bad version component %q in %q", f, ver)
		}
		out = append(out, n)
	}
	return out, nil
}

// compareVersions compares a and b component-wise; missing components
// count as zero.
func compareVersions(a, b []int) int {
	for i := range max(len(a), len(b)) {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// CommandVersion runs exe with args and returns the first non-empty output
// line, such as "ffmpeg version 6.1.1".
func CommandVersion(exe string, args ...string) VersionFunc {
	return func() (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var out bytes.Buffer
		cmd := exec.CommandContext(ctx, exe, args...)
		cmd.Stdout = &out
		cmd.Stderr = &out
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("%s: %w", filepath.Base(exe), err)
		}
		return firstLine(out.String()), nil
	}
}

// PythonVersion returns the version reported by python3 --version.
func PythonVersion() (string, error) {
	line, err := CommandVersion("python3", "--version")()
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(line, "Python "), nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
