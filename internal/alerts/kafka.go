package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"jalrakshak-monitor/internal/models"
)

// KafkaConfig selects the topic alert events are read from
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether a consumer should be started
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && strings.TrimSpace(c.Topic) != ""
}

// Message actions
const (
	ActionRaise = "raise"
	ActionClear = "clear"
)

// Message is the JSON payload published on the alert topic
type Message struct {
	Action string            `json:"action"`
	Alert  models.AlertEvent `json:"alert"`
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer applies alert messages to a Feed
type KafkaConsumer struct {
	reader messageReader
	feed   *Feed
	log    *slog.Logger
}

// NewKafkaConsumer creates a group reader for cfg.Topic
func NewKafkaConsumer(cfg KafkaConfig, feed *Feed, log *slog.Logger) (*KafkaConsumer, error) {
	if feed == nil {
		return nil, fmt.Errorf("feed must not be nil")
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "jalrakshak-portal"
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: []string{cfg.Topic},
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    1e6,
	})
	return newKafkaConsumer(reader, feed, log.With(slog.String("topic", cfg.Topic))), nil
}

func newKafkaConsumer(reader messageReader, feed *Feed, log *slog.Logger) *KafkaConsumer {
	return &KafkaConsumer{reader: reader, feed: feed, log: log}
}

// Run consumes until ctx is cancelled
func (kc *KafkaConsumer) Run(ctx context.Context) {
	defer func() {
		if err := kc.reader.Close(); err != nil {
			kc.log.Error("reader_close", slog.Any("err", err))
		}
	}()
	kc.log.Info("consumer_start")

	backoff := time.Second
	for {
		msg, err := kc.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				kc.log.Info("consumer_stop", slog.String("reason", "context"))
				return
			}
			kc.log.Error("fetch_err", slog.Any("err", err))
			select {
			case <-time.After(backoff):
				if backoff < 10*time.Second {
					backoff *= 2
				}
				continue
			case <-ctx.Done():
				kc.log.Info("consumer_stop", slog.String("reason", "shutdown"))
				return
			}
		}
		backoff = time.Second

		if err := kc.handle(msg.Value); err != nil {
			// poison messages are committed so they are not redelivered
			kc.log.Error("handle_err", slog.Any("err", err), slog.Int64("offset", msg.Offset), slog.Int("partition", msg.Partition))
		}
		if err := kc.reader.CommitMessages(ctx, msg); err != nil {
			kc.log.Error("commit_err", slog.Any("err", err))
		}
	}
}

func (kc *KafkaConsumer) handle(value []byte) error {
	m, err := DecodeMessage(value)
	if err != nil {
		return err
	}
	switch m.Action {
	case ActionRaise:
		kc.feed.Raise(m.Alert)
		kc.log.Info("alert_raised", slog.String("id", m.Alert.ID), slog.String("severity", string(m.Alert.Severity)))
	case ActionClear:
		if !kc.feed.Clear(m.Alert.ID) {
			kc.log.Warn("alert_unknown", slog.String("id", m.Alert.ID))
		}
	}
	return nil
}

// DecodeMessage parses and checks an alert message
func DecodeMessage(value []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(value, &m); err != nil {
		return m, fmt.Errorf("decode alert: %w", err)
	}
	m.Action = strings.ToLower(strings.TrimSpace(m.Action))
	if m.Alert.ID == "" {
		return m, &models.ValidationError{Field: "alert.id", Reason: "is required"}
	}
	switch m.Action {
	case ActionRaise:
		switch m.Alert.Severity {
		case models.SeveritySafe, models.SeverityWarning, models.SeverityDanger:
		default:
			return m, &models.ValidationError{Field: "alert.severity", Reason: "must be one of safe, warning, danger"}
		}
	case ActionClear:
	default:
		return m, &models.ValidationError{Field: "action", Reason: "must be raise or clear"}
	}
	return m, nil
}
