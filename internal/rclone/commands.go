package rclone

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/helixbio/portal-submit/internal/config"
)

// ProgressFunc receives cumulative transferred bytes as rclone reports
// them. Values may repeat; they never need to be monotone on the
// callee side.
type ProgressFunc func(bytes int64)

// Runner invokes the rclone binary. With DryRun set, each command
// returns its command line without executing.
type Runner struct {
	Binary string
	DryRun bool
}

// NewRunner returns a runner bound to the managed rclone binary.
func NewRunner() *Runner {
	return &Runner{Binary: config.RcloneBinaryPath()}
}

var transferredRe = regexp.MustCompile(`Transferred:\s*([\d.]+)\s*(B|KiB|MiB|GiB|TiB|PiB)\b`)

var byteUnits = map[string]int64{
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
	"PiB": 1 << 50,
}

// ParseTransferred extracts cumulative transferred bytes from one line
// of rclone --progress output.
func ParseTransferred(line string) (int64, bool) {
	m := transferredRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return int64(math.Round(value * float64(byteUnits[m[2]]))), true
}

var (
	totalObjectsRe = regexp.MustCompile(`Total objects:\s*([\d.]+)\s*(k|M|G)?\s*$`)
	totalSizeRe    = regexp.MustCompile(`Total size:.*\((\d+) Byte`)
)

// ParseSizeOutput interprets `rclone size` output for a single file.
// The parenthesized byte count on the "Total size" line is the answer;
// anything but exactly one object yields ok false.
func ParseSizeOutput(output string) (int64, bool) {
	objects := int64(-1)
	size := int64(-1)
	for _, line := range strings.Split(output, "\n") {
		if m := totalObjectsRe.FindStringSubmatch(line); m != nil {
			n, err := strconv.ParseFloat(m[1], 64)
			if err != nil || m[2] != "" {
				return 0, false
			}
			objects = int64(n)
		} else if m := totalSizeRe.FindStringSubmatch(line); m != nil {
			n, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return 0, false
			}
			size = n
		}
	}
	if objects != 1 || size < 0 {
		return 0, false
	}
	return size, true
}

// ParseHashsum extracts the checksum from `rclone hashsum md5` output:
// the first whitespace-delimited token of the first nonempty line.
func ParseHashsum(output string) string {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

// commandString renders the command for logging and dry runs.
func (r *Runner) commandString(args []string) string {
	return strings.Join(append([]string{r.Binary}, args...), " ")
}

// run executes rclone and returns its merged stdout+stderr.
func (r *Runner) run(ctx context.Context, args []string) (string, error) {
	if r.DryRun {
		return r.commandString(args), nil
	}
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return buf.String(), fmt.Errorf("rclone %s failed: %w: %s", args[0], err, strings.TrimSpace(buf.String()))
	}
	return buf.String(), nil
}

// scanProgressLines splits on both newline and carriage return, since
// rclone redraws its progress block with \r.
func scanProgressLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// runStreaming executes rclone, feeding every Transferred line through
// the progress callback as it arrives. The subprocess is killed when
// ctx is cancelled; partial destination objects are left for the next
// run.
func (r *Runner) runStreaming(ctx context.Context, args []string, progress ProgressFunc) (string, error) {
	if r.DryRun {
		return r.commandString(args), nil
	}

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return "", fmt.Errorf("cannot start rclone: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitErr <- err
	}()

	scanner := bufio.NewScanner(pr)
	scanner.Split(scanProgressLines)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if progress != nil {
			if n, ok := ParseTransferred(line); ok {
				progress(n)
			}
		}
	}

	if err := <-waitErr; err != nil {
		if ctx.Err() != nil {
			return r.commandString(args), fmt.Errorf("rclone %s interrupted: %w", args[0], ctx.Err())
		}
		return r.commandString(args), fmt.Errorf("rclone %s failed: %w", args[0], err)
	}
	return r.commandString(args), nil
}

// copyArgs builds the argument list shared by Copy and CopyTo.
// --ignore-times forces a re-copy even when rclone considers source
// and destination identical; correctness must not rest on its
// mtime-based short-circuit.
func (r *Runner) copyArgs(verb, configPath, source, destination string) []string {
	return []string{verb, "--progress", "--ignore-times", "--config", configPath, source, destination}
}

// CopyTo copies source to the fully-qualified destination file path.
func (r *Runner) CopyTo(ctx context.Context, configPath, source, destination string, progress ProgressFunc) (string, error) {
	return r.runStreaming(ctx, r.copyArgs("copyto", configPath, source, destination), progress)
}

// Copy copies source into the destination bucket or prefix, keeping
// the source basename.
func (r *Runner) Copy(ctx context.Context, configPath, source, destination string, progress ProgressFunc) (string, error) {
	return r.runStreaming(ctx, r.copyArgs("copy", configPath, source, destination), progress)
}

// Ls lists the target, one entry per returned line.
func (r *Runner) Ls(ctx context.Context, configPath, target string) ([]string, error) {
	out, err := r.run(ctx, []string{"ls", "--config", configPath, target})
	if err != nil {
		return nil, err
	}
	var entries []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			entries = append(entries, line)
		}
	}
	return entries, nil
}

// Lsd lists directories at the remote root; used as a liveness probe.
func (r *Runner) Lsd(ctx context.Context, configPath, target string) error {
	_, err := r.run(ctx, []string{"lsd", "--config", configPath, target})
	return err
}

// Lsl returns the long listing of the target (size, modification time,
// name per line).
func (r *Runner) Lsl(ctx context.Context, configPath, target string) (string, error) {
	return r.run(ctx, []string{"lsl", "--config", configPath, target})
}

// Size returns the byte size of the single file at target; ok is false
// when the target does not name exactly one object.
func (r *Runner) Size(ctx context.Context, configPath, target string) (int64, bool, error) {
	out, err := r.run(ctx, []string{"size", "--config", configPath, target})
	if err != nil {
		return 0, false, err
	}
	if r.DryRun {
		return 0, false, nil
	}
	size, ok := ParseSizeOutput(out)
	return size, ok, nil
}

// HashsumMD5 returns the md5 checksum of the file at target.
func (r *Runner) HashsumMD5(ctx context.Context, configPath, target string) (string, error) {
	out, err := r.run(ctx, []string{"hashsum", "md5", "--config", configPath, target})
	if err != nil {
		return "", err
	}
	if r.DryRun {
		return "", nil
	}
	return ParseHashsum(out), nil
}
