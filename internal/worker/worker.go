package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/abtests"
	"github.com/creatorhub/backend/internal/approvals"
	"github.com/creatorhub/backend/internal/files"
	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/youtube"
	"github.com/creatorhub/backend/pkg/queue"
	"github.com/creatorhub/backend/pkg/storage"
)

// Pacer periodically scans active tests and enqueues the due work: variant
// rotations, metrics collection, winner checks, and expiry. It only produces
// jobs; the Processor consumes them. Duplicate jobs are harmless because
// every consumer re-checks due-ness against the database before acting.
type Pacer struct {
	testRepo *abtests.Repository
	queue    *queue.Queue
	interval time.Duration
	collect  time.Duration
	logger   *zap.Logger

	mu          sync.Mutex
	lastCollect map[uuid.UUID]time.Time
}

// NewPacer creates a pacer scanning every interval, collecting metrics per
// test every collectEvery.
func NewPacer(testRepo *abtests.Repository, q *queue.Queue, interval, collectEvery time.Duration, logger *zap.Logger) *Pacer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pacer{
		testRepo:    testRepo,
		queue:       q,
		interval:    interval,
		collect:     collectEvery,
		logger:      logger,
		lastCollect: make(map[uuid.UUID]time.Time),
	}
}

// Run ticks until ctx is done.
func (p *Pacer) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pacer stopping")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Pacer) tick(ctx context.Context) {
	tests, err := p.testRepo.ListActiveTests(ctx)
	if err != nil {
		p.logger.Warn("pacer: list active tests", zap.Error(err))
		return
	}
	now := time.Now()

	for i := range tests {
		test := &tests[i]

		if test.DurationElapsed(now) {
			p.enqueue(ctx, queue.JobTypeExpireTest, test.ID)
			p.forget(test.ID)
			continue
		}

		current, err := p.testRepo.CurrentVariant(ctx, test.ID)
		if err != nil {
			p.logger.Warn("pacer: current variant", zap.Error(err), zap.String("test_id", test.ID.String()))
			continue
		}
		var lastApplied *time.Time
		if current != nil {
			lastApplied = current.AppliedAt
		}
		if test.RotationDue(lastApplied, now) {
			p.enqueue(ctx, queue.JobTypeVariantRotate, test.ID)
		}

		if p.collectDue(test.ID, now) {
			p.enqueue(ctx, queue.JobTypeMetricsCollect, test.ID)
			p.enqueue(ctx, queue.JobTypeWinnerCheck, test.ID)
		}
	}
}

// collectDue tracks per-test collection times in memory. A worker restart
// just collects once more, which is safe.
func (p *Pacer) collectDue(testID uuid.UUID, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastCollect[testID]
	if ok && now.Before(last.Add(p.collect)) {
		return false
	}
	p.lastCollect[testID] = now
	return true
}

func (p *Pacer) forget(testID uuid.UUID) {
	p.mu.Lock()
	delete(p.lastCollect, testID)
	p.mu.Unlock()
}

func (p *Pacer) enqueue(ctx context.Context, jobType queue.JobType, testID uuid.UUID) {
	if err := p.queue.EnqueueTestJob(ctx, jobType, queue.TestJobPayload{TestID: testID}); err != nil {
		p.logger.Error("pacer: enqueue", zap.Error(err), zap.String("type", string(jobType)), zap.String("test_id", testID.String()))
	}
}

// Processor consumes queued jobs: test lifecycle work and YouTube uploads.
type Processor struct {
	scheduler    *abtests.Scheduler
	collector    *abtests.Collector
	engine       *abtests.Engine
	approvalRepo *approvals.Repository
	fileRepo     *files.Repository
	drive        *files.DriveClient
	yt           *youtube.Client
	s3           *storage.S3
	queue        *queue.Queue
	logger       *zap.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(scheduler *abtests.Scheduler, collector *abtests.Collector, engine *abtests.Engine, approvalRepo *approvals.Repository, fileRepo *files.Repository, drive *files.DriveClient, yt *youtube.Client, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		scheduler:    scheduler,
		collector:    collector,
		engine:       engine,
		approvalRepo: approvalRepo,
		fileRepo:     fileRepo,
		drive:        drive,
		yt:           yt,
		s3:           s3,
		queue:        q,
		logger:       logger,
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("processor stopping")
			return
		default:
		}

		job, origin, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job, origin); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeVariantRotate, queue.JobTypeMetricsCollect, queue.JobTypeWinnerCheck, queue.JobTypeExpireTest:
		var payload queue.TestJobPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.processTestJob(ctx, job.Type, payload.TestID)
	case queue.JobTypeYouTubeUpload:
		var payload queue.UploadJobPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.uploadVideo(ctx, payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) processTestJob(ctx context.Context, jobType queue.JobType, testID uuid.UUID) error {
	switch jobType {
	case queue.JobTypeVariantRotate:
		return p.scheduler.Rotate(ctx, testID)
	case queue.JobTypeMetricsCollect:
		return p.collector.Collect(ctx, testID)
	case queue.JobTypeWinnerCheck:
		_, err := p.engine.CheckWinner(ctx, testID)
		return err
	case queue.JobTypeExpireTest:
		return p.engine.ExpireIfDue(ctx, testID)
	}
	return fmt.Errorf("unknown test job type: %s", jobType)
}

// uploadVideo streams an approved video from Drive to YouTube and sets the
// reviewed thumbnail if one was submitted.
func (p *Processor) uploadVideo(ctx context.Context, payload queue.UploadJobPayload) error {
	req, err := p.approvalRepo.GetByID(ctx, payload.RequestID)
	if err != nil {
		return fmt.Errorf("load request: %w", err)
	}
	if req.Status == models.ApprovalUploaded {
		p.logger.Info("request already uploaded", zap.String("request_id", req.ID.String()))
		return nil
	}
	if !req.CanBeUploaded() {
		return fmt.Errorf("request %s is %s, not approved", req.ID, req.Status)
	}

	file, err := p.fileRepo.GetByID(ctx, req.FileID)
	if err != nil {
		return fmt.Errorf("load file: %w", err)
	}

	body, size, err := p.drive.Download(ctx, payload.UserID, file.FileID)
	if err != nil {
		return fmt.Errorf("drive download: %w", err)
	}
	defer body.Close()

	videoID, err := p.yt.Upload(ctx, payload.UserID, youtube.UploadMeta{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Privacy:     "private",
	}, body, size)
	if err != nil {
		return fmt.Errorf("youtube upload: %w", err)
	}

	if req.ThumbnailKey != "" {
		if err := p.setThumbnail(ctx, payload.UserID, videoID, req.ThumbnailKey); err != nil {
			// The video is up; a thumbnail failure should not re-run the upload.
			p.logger.Warn("thumbnail set failed after upload",
				zap.Error(err),
				zap.String("request_id", req.ID.String()),
				zap.String("video_id", videoID))
		}
	}

	if err := p.approvalRepo.MarkUploaded(ctx, req.ID, videoID); err != nil {
		p.logger.Error("mark uploaded failed", zap.Error(err), zap.String("request_id", req.ID.String()), zap.String("video_id", videoID))
		return fmt.Errorf("mark uploaded: %w", err)
	}

	editorID := ""
	if req.EditorID != nil {
		editorID = req.EditorID.String()
	}
	p.logger.Info("video uploaded",
		zap.String("request_id", req.ID.String()),
		zap.String("video_id", videoID),
		zap.String("editor_id", editorID))
	return nil
}

func (p *Processor) setThumbnail(ctx context.Context, userID uuid.UUID, videoID, key string) error {
	stream, contentType, err := p.s3.GetObjectStream(ctx, key)
	if err != nil {
		return fmt.Errorf("s3 get: %w", err)
	}
	defer stream.Close()
	image, err := io.ReadAll(stream)
	if err != nil {
		return fmt.Errorf("read thumbnail: %w", err)
	}
	return p.yt.SetThumbnail(ctx, userID, videoID, image, contentType)
}
