package upload

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Reviewer walks a resolved batch with the operator before any bytes
// move: ambiguous local matches are disambiguated or skipped, and files
// found both locally and in the cloud get an explicit source choice.
type Reviewer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewReviewer reads prompts from stdin and writes to stdout.
func NewReviewer() *Reviewer {
	return &Reviewer{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

// NewReviewerIO builds a reviewer over explicit streams; used by tests.
func NewReviewerIO(in io.Reader, out io.Writer) *Reviewer {
	return &Reviewer{in: bufio.NewReader(in), out: out}
}

// Review settles every file in the batch. Files that stay ambiguous or
// unfound are marked Ignore.
func (r *Reviewer) Review(ctx context.Context, files []*FileForUpload) {
	for _, f := range files {
		r.reviewOne(ctx, f)
	}
}

func (r *Reviewer) reviewOne(ctx context.Context, f *FileForUpload) {
	if f.Ambiguous() {
		if !r.disambiguate(f) {
			f.Ignore = true
			fmt.Fprintf(r.out, "Upload file not found or ambiguous: %s\n", f.DisplayName())
			return
		}
	}

	if !f.Found(ctx) {
		f.Ignore = true
		fmt.Fprintf(r.out, "Upload file not found or ambiguous: %s\n", f.DisplayName())
		return
	}

	if f.FoundLocal() && f.FoundCloud(ctx) && f.Preference == SourceUnresolved {
		r.chooseSource(ctx, f)
	}
}

// disambiguate asks the operator to pick one of several local matches.
// Returns false when the operator skips the file.
func (r *Reviewer) disambiguate(f *FileForUpload) bool {
	fmt.Fprintf(r.out, "Multiple local copies of %s were found:\n", f.Name)
	for i, path := range f.LocalPaths {
		fmt.Fprintf(r.out, "  %d. %s\n", i+1, path)
	}
	fmt.Fprintf(r.out, "Choose one [1-%d] or s to skip: ", len(f.LocalPaths))

	answer, err := r.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.TrimSpace(answer)
	if strings.EqualFold(answer, "s") {
		return false
	}
	choice, err := strconv.Atoi(answer)
	if err != nil || choice < 1 || choice > len(f.LocalPaths) {
		return false
	}
	f.LocalPath = f.LocalPaths[choice-1]
	f.LocalPaths = nil
	return true
}

// chooseSource asks whether to upload the local or the cloud copy.
func (r *Reviewer) chooseSource(ctx context.Context, f *FileForUpload) {
	fmt.Fprintf(r.out, "%s exists in two places:\n", f.Name)
	fmt.Fprintf(r.out, "  1. %s (local)\n", f.LocalPath)
	fmt.Fprintf(r.out, "  2. %s (cloud)\n", f.cloudSource.DisplayPath(f.Name))
	fmt.Fprint(r.out, "Upload which copy? [1/2]: ")

	answer, err := r.in.ReadString('\n')
	if err != nil {
		f.Preference = SourceLocal
		return
	}
	if strings.TrimSpace(answer) == "2" {
		f.Preference = SourceCloud
		return
	}
	f.Preference = SourceLocal
}

// AskYesNo prompts with a y/n question on the given streams.
func AskYesNo(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/n]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y")
}
