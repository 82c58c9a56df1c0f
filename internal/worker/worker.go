package worker

import (
	"context"
	"log"
	"time"

	"github.com/inkvoice/inkvoice/internal/queue"
)

// Worker consumes background jobs from Redis and dispatches them to the
// analysis and generation pipelines.
type Worker struct {
	queue     *queue.Queue
	analyzer  *ChapterAnalyzer
	generator *Generator
}

func New(q *queue.Queue, analyzer *ChapterAnalyzer, generator *Generator) *Worker {
	return &Worker{
		queue:     q,
		analyzer:  analyzer,
		generator: generator,
	}
}

// Start begins processing jobs from all queues. Blocks until ctx is done.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.processQueue(ctx, queue.QueueAnalyzeChapter, w.handleAnalyzeChapter)
		go w.processQueue(ctx, queue.QueueGenerateAudio, w.handleGenerateAudio)
	}

	<-ctx.Done()
	log.Println("Worker shutting down...")
}

func (w *Worker) processQueue(ctx context.Context, queueName string, handler func(context.Context, *queue.Job) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, queueName, 5*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Error dequeuing from %s: %v", queueName, err)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			log.Printf("Processing job %s (type: %s, project: %s)", job.ID, job.Type, job.ProjectID)

			if err := handler(ctx, job); err != nil {
				log.Printf("Job %s failed: %v", job.ID, err)
			} else {
				log.Printf("Job %s completed successfully", job.ID)
			}
		}
	}
}

func (w *Worker) handleAnalyzeChapter(ctx context.Context, job *queue.Job) error {
	summary, err := w.analyzer.Analyze(ctx, job.ProjectID, job.ChapterID)
	if err != nil {
		return err
	}
	log.Printf("[Analyze] Job %s: %d characters, %d blocks", job.ID, summary.CharactersFound, summary.BlocksCreated)
	return nil
}

func (w *Worker) handleGenerateAudio(ctx context.Context, job *queue.Job) error {
	summary, err := w.generator.GenerateChapter(ctx, job.ProjectID, job.ChapterID)
	if err != nil {
		return err
	}
	log.Printf("[Generate] Job %s: %d/%d blocks succeeded", job.ID, summary.SuccessCount, summary.TotalBlocks)
	return nil
}
