package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/pesio-ai/be-hse-inspections/internal/logger"
	"github.com/pesio-ai/be-hse-inspections/internal/repository"
	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

// messageWriter is the subset of *kafka.Writer used by HistoryStreamer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HistoryStreamConfig configures the Kafka history stream.
type HistoryStreamConfig struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	WriteTimeout time.Duration
	QueueSize    int
}

// HistoryStreamer mirrors appended approval history entries to Kafka, keyed
// by target id so a target's entries stay ordered within a partition.
// Writes happen on a background goroutine; callers never wait on the broker.
type HistoryStreamer struct {
	writer       messageWriter
	maxAttempts  int
	writeTimeout time.Duration
	log          *logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan historyJob
	done   chan struct{}
}

type historyJob struct {
	msg     kafka.Message
	entryID string
}

// HistoryEvent is the message value written for each entry.
type HistoryEvent struct {
	TargetID       string                       `json:"target_id"`
	TargetKind     string                       `json:"target_kind"`
	EntryID        string                       `json:"entry_id"`
	Stage          int                          `json:"stage"`
	ApprovalStatus workflow.ApprovalStatus      `json:"approval_status"`
	Note           string                       `json:"note,omitempty"`
	CreatedAt      time.Time                    `json:"created_at"`
	VerifiedAt     *time.Time                   `json:"verified_at,omitempty"`
	Assignment     *workflow.ApprovalAssignment `json:"assignment,omitempty"`
}

// NewHistoryStreamer builds a streamer backed by a kafka-go writer.
func NewHistoryStreamer(cfg HistoryStreamConfig, log *logger.Logger) (*HistoryStreamer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return newHistoryStreamer(w, cfg, log), nil
}

func newHistoryStreamer(w messageWriter, cfg HistoryStreamConfig, log *logger.Logger) *HistoryStreamer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	s := &HistoryStreamer{
		writer:       w,
		maxAttempts:  cfg.MaxAttempts,
		writeTimeout: cfg.WriteTimeout,
		log:          log,
		queue:        make(chan historyJob, cfg.QueueSize),
		done:         make(chan struct{}),
	}
	go s.run()
	return s
}

// PublishHistoryEntry queues one entry for writing and returns immediately.
// Entries are dropped with a warning when the queue is full or closed.
func (s *HistoryStreamer) PublishHistoryEntry(_ context.Context, target *repository.Target, entry workflow.ApprovalHistoryEntry) {
	event := HistoryEvent{
		TargetID:       target.ID,
		TargetKind:     target.Kind,
		EntryID:        entry.ID,
		Stage:          entry.Stage,
		ApprovalStatus: entry.ApprovalStatus,
		Note:           entry.Note,
		CreatedAt:      entry.CreatedAt,
		VerifiedAt:     entry.VerifiedAt,
		Assignment:     entry.Assignment,
	}
	value, err := json.Marshal(event)
	if err != nil {
		s.log.Warn().Err(err).Str("target_id", target.ID).Msg("history stream: failed to marshal entry")
		return
	}

	job := historyJob{
		msg:     kafka.Message{Key: []byte(target.ID), Value: value, Time: time.Now().UTC()},
		entryID: entry.ID,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.Warn().Str("target_id", target.ID).Msg("history stream: closed, entry dropped")
		return
	}
	select {
	case s.queue <- job:
	default:
		s.log.Warn().Str("target_id", target.ID).Str("entry_id", entry.ID).Msg("history stream: queue full, entry dropped")
	}
}

func (s *HistoryStreamer) run() {
	defer close(s.done)
	for job := range s.queue {
		s.write(job)
	}
}

func (s *HistoryStreamer) write(job historyJob) {
	var lastErr error
	attempt := 1
	backoff := 100 * time.Millisecond
	for ; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		lastErr = s.writer.WriteMessages(ctx, job.msg)
		cancel()
		if lastErr == nil {
			return
		}
		if attempt >= s.maxAttempts {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
	}

	s.log.Warn().Err(lastErr).
		Str("target_id", string(job.msg.Key)).
		Str("entry_id", job.entryID).
		Int("attempts", attempt).
		Msg("history stream: failed to write entry (non-fatal)")
}

// Close drains queued entries, then closes the writer.
func (s *HistoryStreamer) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.writer.Close()
}
