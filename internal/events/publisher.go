package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/parts-catalog-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	EventSnapshotCompleted = "CATALOG_SNAPSHOT_COMPLETED"
	DefaultStream          = "stream:catalog_snapshots"
	source                 = "parts-catalog-scraper"
)

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Publisher announces finished runs on a Redis stream
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
	now    func() time.Time
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// NewRedisPublisher connects to Redis and returns a publisher for cfg.Stream.
func NewRedisPublisher(ctx context.Context, cfg Config, logger *slog.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewPublisher(client, cfg.Stream, logger), nil
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "publisher"),
		now:    time.Now,
	}
}

// SnapshotCompleted is the payload of EventSnapshotCompleted.
type SnapshotCompleted struct {
	RunID          string `json:"run_id"`
	StartURL       string `json:"start_url"`
	Outcome        string `json:"outcome"`
	AbortReason    string `json:"abort_reason,omitempty"`
	PagesVisited   int    `json:"pages_visited"`
	Parts          int    `json:"parts"`
	Failures       int    `json:"failures"`
	ImagesAcquired int    `json:"images_acquired"`
	ArtifactPath   string `json:"artifact_path"`
	ArchiveURI     string `json:"archive_uri,omitempty"`
}

func NewSnapshotCompleted(s *models.Snapshot, archiveURI string) SnapshotCompleted {
	return SnapshotCompleted{
		RunID:          s.RunID,
		StartURL:       s.StartURL,
		Outcome:        s.Outcome,
		AbortReason:    s.AbortReason,
		PagesVisited:   s.PagesVisited,
		Parts:          len(s.Entries),
		Failures:       len(s.Failures),
		ImagesAcquired: s.ImagesAcquired(),
		ArtifactPath:   s.ArtifactPath,
		ArchiveURI:     archiveURI,
	}
}

// PublishSnapshot publishes a snapshot completed event and returns the stream id.
func (p *Publisher) PublishSnapshot(ctx context.Context, payload SnapshotCompleted) (string, error) {
	eventID := uuid.New()
	now := p.now()

	streamData := map[string]interface{}{
		"id":             eventID.String(),
		"type":           EventSnapshotCompleted,
		"aggregate_type": "catalog_snapshot",
		"aggregate_id":   payload.RunID,
		"timestamp":      now.Format(time.RFC3339),
		"payload":        payload,
		"metadata": map[string]interface{}{
			"source": source,
		},
	}

	dataJSON, err := json.Marshal(streamData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":           string(dataJSON),
			"type":           EventSnapshotCompleted,
			"timestamp":      fmt.Sprintf("%d", now.UnixNano()),
			"original_id":    eventID.String(),
			"aggregate_id":   payload.RunID,
			"aggregate_type": "catalog_snapshot",
			"event_type":     EventSnapshotCompleted,
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("event published",
		"event_id", eventID,
		"event_type", EventSnapshotCompleted,
		"run_id", payload.RunID,
		"stream", p.stream,
		"stream_id", id)

	return id, nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}
