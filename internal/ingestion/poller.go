// Package ingestion polls the Portal for server-side processing of a
// submission until it finishes, fails, or the attempt budget runs out.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/helixbio/portal-submit/internal/api"
	"github.com/helixbio/portal-submit/internal/constants"
	"github.com/helixbio/portal-submit/internal/models"
)

// statusClient is the slice of the Portal client the poller needs.
type statusClient interface {
	GetIngestionStatus(ctx context.Context, uuid string) (*models.IngestionStatus, error)
}

// Outcome classifies how a poll ended.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeError    Outcome = "error"
	OutcomeNotFound Outcome = "not found"
	// OutcomeTimeout means the attempt budget ran out while the Portal
	// still reported processing; the submission may yet finish.
	OutcomeTimeout Outcome = "not-done"
)

// Result is the terminal state of one poll.
type Result struct {
	Done    bool
	Outcome Outcome
	// Status is the last response body, nil when the submission was
	// not found.
	Status *models.IngestionStatus
}

// Poller repeatedly fetches one submission's processing status.
type Poller struct {
	client statusClient
	out    io.Writer

	// Wait separates attempts; MaxAttempts caps them.
	Wait        time.Duration
	MaxAttempts int
}

// NewPoller returns a poller with the default cadence.
func NewPoller(client *api.Client) *Poller {
	return &Poller{
		client:      client,
		out:         os.Stdout,
		Wait:        constants.PollWaitSeconds * time.Second,
		MaxAttempts: constants.PollMaxAttempts,
	}
}

// Poll watches the submission until it reaches a terminal state or the
// attempt budget is spent. The wait between attempts renders a
// single-line countdown and honors ctx cancellation.
func (p *Poller) Poll(ctx context.Context, uuid string) (*Result, error) {
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		status, err := p.client.GetIngestionStatus(ctx, uuid)
		if err != nil {
			if errors.Is(err, api.ErrNotFound) {
				fmt.Fprintf(p.out, "Ingestion submission %s not found.\n", uuid)
				return &Result{Done: true, Outcome: OutcomeNotFound}, nil
			}
			return nil, err
		}

		if status.ProcessingStatus.State == "done" {
			return &Result{Done: true, Outcome: classify(status), Status: status}, nil
		}

		if progress := status.ProcessingStatus.Progress; progress != "" {
			fmt.Fprintf(p.out, "\rIngestion %s: %s", uuid, progress)
		}
		if attempt < p.MaxAttempts {
			if err := p.countdown(ctx); err != nil {
				return nil, err
			}
		}
	}

	fmt.Fprintf(p.out, "\nIngestion of %s is still running. Check again later with:\n", uuid)
	fmt.Fprintf(p.out, "  %s check %s\n", constants.AppName, uuid)
	return &Result{Done: false, Outcome: OutcomeTimeout}, nil
}

func classify(status *models.IngestionStatus) Outcome {
	if status.ProcessingStatus.Outcome == "success" {
		return OutcomeSuccess
	}
	return OutcomeError
}

// countdown sleeps for the poll interval, ticking a one-line display
// every second so the operator can see the client is alive.
func (p *Poller) countdown(ctx context.Context) error {
	remaining := p.Wait
	for remaining > 0 {
		step := time.Second
		if remaining < step {
			step = remaining
		}
		if remaining >= time.Second {
			fmt.Fprintf(p.out, "\rNext check in %ds...  ", int(remaining/time.Second))
		}
		select {
		case <-ctx.Done():
			fmt.Fprintln(p.out)
			return ctx.Err()
		case <-time.After(step):
		}
		remaining -= step
	}
	fmt.Fprint(p.out, "\r                      \r")
	return nil
}
