package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Renders are the one pipeline stage that goes through Redis: ffmpeg work is
// heavy enough that it must be serialized on the render worker rather than
// spawned per request like the lighter generation stages.
const queueRenderVideo = "queue:render_video"

type Queue struct {
	client *redis.Client
}

// RenderJob asks the render worker to composite one video.
type RenderJob struct {
	VideoID    uuid.UUID `json:"video_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// EnqueueRender queues a video for rendering.
func (q *Queue) EnqueueRender(ctx context.Context, videoID uuid.UUID) error {
	job := &RenderJob{
		VideoID:    videoID,
		EnqueuedAt: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal render job: %w", err)
	}

	return q.client.RPush(ctx, queueRenderVideo, data).Err()
}

// DequeueRender blocks up to timeout for the next render job. Returns
// (nil, nil) when the queue stayed empty.
func (q *Queue) DequeueRender(ctx context.Context, timeout time.Duration) (*RenderJob, error) {
	result, err := q.client.BLPop(ctx, timeout, queueRenderVideo).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job RenderJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal render job: %w", err)
	}

	return &job, nil
}

// RenderQueueLength reports how many renders are waiting.
func (q *Queue) RenderQueueLength(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, queueRenderVideo).Result()
}
