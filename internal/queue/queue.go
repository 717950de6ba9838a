// Package queue provides document generation job queue interfaces and implementations.
package queue

import (
	"context"
	"errors"

	"github.com/regulateai/platform/internal/models"
)

// Common errors returned by queue operations.
var (
	// ErrNoJobs is returned when no jobs are available in the queue.
	ErrNoJobs = errors.New("no jobs available")
	// ErrJobNotFound is returned when a job cannot be found.
	ErrJobNotFound = errors.New("job not found")
)

// Queue defines the interface for document generation job queue operations.
type Queue interface {
	// Enqueue adds a new document job to the queue.
	// The job is serialized to JSON for storage.
	Enqueue(ctx context.Context, job *models.DocumentJob) error

	// Dequeue retrieves and locks the next available job from the queue.
	// Returns ErrNoJobs if no jobs are available.
	Dequeue(ctx context.Context) (*models.DocumentJob, error)

	// Ack acknowledges successful processing of a job, removing it from the queue.
	Ack(ctx context.Context, jobID string) error

	// Nack indicates that job processing failed, making the job available for retry.
	Nack(ctx context.Context, jobID string) error
}
