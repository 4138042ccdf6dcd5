package rclone

import (
	"bufio"
	"context"
	"strings"
	"testing"
)

func TestParseTransferred(t *testing.T) {
	tests := []struct {
		line string
		want int64
		ok   bool
	}{
		{"Transferred:        1.5 MiB / 10 MiB, 15%, 512 KiB/s, ETA 17s", 1572864, true},
		{"Transferred:   	  0 B / 68 MiB, 0%, 0 B/s, ETA -", 0, true},
		{"Transferred:        68 MiB / 68 MiB, 100%, 4 MiB/s, ETA 0s", 71303168, true},
		{"Transferred:        2 GiB / 4 GiB, 50%", 2147483648, true},
		{"Transferred:        1 TiB / 2 TiB", 1099511627776, true},
		{"Transferred:        512 B / 512 B, 100%", 512, true},
		{"Checks:             0 / 0, -", 0, false},
		{"Elapsed time:        1.2s", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseTransferred(tt.line)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseTransferred(%q) = (%d, %v), want (%d, %v)", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseSizeOutput(t *testing.T) {
	single := "Total objects: 1\nTotal size: 64.850 MiB (68000001 Byte)\n"
	got, ok := ParseSizeOutput(single)
	if !ok || got != 68000001 {
		t.Errorf("ParseSizeOutput single = (%d, %v), want (68000001, true)", got, ok)
	}

	multi := "Total objects: 2\nTotal size: 128 MiB (134217728 Byte)\n"
	if _, ok := ParseSizeOutput(multi); ok {
		t.Error("two objects must not parse as a single file size")
	}

	none := "Total objects: 0\nTotal size: 0 B (0 Byte)\n"
	if _, ok := ParseSizeOutput(none); ok {
		t.Error("zero objects must not parse as a single file size")
	}

	if _, ok := ParseSizeOutput(""); ok {
		t.Error("empty output must not parse")
	}
}

func TestParseHashsum(t *testing.T) {
	out := "b1946ac92492d2347c6235b4d2611184  data/file.fastq.gz\n"
	if got := ParseHashsum(out); got != "b1946ac92492d2347c6235b4d2611184" {
		t.Errorf("ParseHashsum = %q", got)
	}
	if got := ParseHashsum("\n\n"); got != "" {
		t.Errorf("ParseHashsum of blank output = %q, want empty", got)
	}
}

func TestScanProgressLines(t *testing.T) {
	input := "line one\rline two\nline three"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(scanProgressLines)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	want := []string{"line one", "line two", "line three"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestDryRunCommandStrings(t *testing.T) {
	r := &Runner{Binary: "rclone", DryRun: true}
	ctx := context.Background()

	got, err := r.CopyTo(ctx, "/tmp/c.conf", "/data/a.bam", "remote:bucket/a.bam", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := "rclone copyto --progress --ignore-times --config /tmp/c.conf /data/a.bam remote:bucket/a.bam"
	if got != want {
		t.Errorf("CopyTo dry run = %q, want %q", got, want)
	}

	got, err = r.Copy(ctx, "/tmp/c.conf", "src:bucket/key", "dst:bucket", nil)
	if err != nil {
		t.Fatal(err)
	}
	want = "rclone copy --progress --ignore-times --config /tmp/c.conf src:bucket/key dst:bucket"
	if got != want {
		t.Errorf("Copy dry run = %q, want %q", got, want)
	}
}
