// Package bump runs named recurring outbound messages ("bumps").
package bump

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

var (
	// ErrInvalidJob reports a job definition that cannot be scheduled.
	ErrInvalidJob = errors.New("bump: invalid job")
)

// Job describes one recurring message.
type Job struct {
	// ID names the job.
	ID string
	// ChannelID is the target channel.
	ChannelID string
	// Payload is the message text sent on every tick.
	Payload string
	// Delay is the pause between sends for fixed-delay jobs.
	Delay time.Duration
	// Schedule is a cron expression; when set it replaces Delay.
	Schedule string
	// Active reports whether a task is currently running for the job.
	Active bool
}

// Validate checks that the job can be scheduled.
func (j Job) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidJob)
	}
	if strings.TrimSpace(j.ChannelID) == "" {
		return fmt.Errorf("%w: missing channel id", ErrInvalidJob)
	}
	if j.Payload == "" {
		return fmt.Errorf("%w: empty payload", ErrInvalidJob)
	}
	if j.Schedule != "" {
		if !gronx.New().IsValid(j.Schedule) {
			return fmt.Errorf("%w: invalid schedule %q", ErrInvalidJob, j.Schedule)
		}
		return nil
	}
	if j.Delay <= 0 {
		return fmt.Errorf("%w: delay must be > 0", ErrInvalidJob)
	}

	return nil
}

// nextWait returns how long to wait after now before the next send.
func (j Job) nextWait(now time.Time) (time.Duration, error) {
	if j.Schedule == "" {
		return j.Delay, nil
	}
	next, err := gronx.NextTickAfter(j.Schedule, now, false)
	if err != nil {
		return 0, fmt.Errorf("next tick for %q: %w", j.Schedule, err)
	}

	return next.Sub(now), nil
}

// storedJob is the persisted document shape.
type storedJob struct {
	ChannelID string `json:"channel_id"`
	Message   string `json:"message"`
	Delay     int64  `json:"delay"`
	Schedule  string `json:"schedule,omitempty"`
	Active    bool   `json:"active"`
}

func toStored(job Job) storedJob {
	return storedJob{
		ChannelID: job.ChannelID,
		Message:   job.Payload,
		Delay:     int64(job.Delay / time.Second),
		Schedule:  job.Schedule,
		Active:    job.Active,
	}
}

func fromStored(id string, stored storedJob) Job {
	return Job{
		ID:        id,
		ChannelID: stored.ChannelID,
		Payload:   stored.Message,
		Delay:     time.Duration(stored.Delay) * time.Second,
		Schedule:  stored.Schedule,
		Active:    stored.Active,
	}
}
