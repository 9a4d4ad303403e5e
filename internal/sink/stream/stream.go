// Package stream publishes converted sample blocks to a Kafka topic so
// other lab tooling can tap the live signal.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aakash-soni-git/bitalino/internal/session"
	"github.com/segmentio/kafka-go"
)

var ErrPublishFailed = errors.New("publish block failed")

// Writer is the slice of the kafka-go writer the sink needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers string
	Topic   string
}

// BlockRecord is the wire shape of one published block.
type BlockRecord struct {
	Stamp  string      `json:"stamp"`
	Labels []string    `json:"labels"`
	Offset int         `json:"offset"`
	Values [][]float64 `json:"values"`
	At     time.Time   `json:"at"`
}

// Sink publishes one record per block, keyed by session stamp so a
// session stays in one partition.
type Sink struct {
	writer Writer
}

func New(cfg Config) *Sink {
	return &Sink{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers: []string{cfg.Brokers},
			Topic:   cfg.Topic,
		}),
	}
}

// NewWithWriter wires an existing writer. Used by tests.
func NewWithWriter(w Writer) *Sink {
	return &Sink{writer: w}
}

func (s *Sink) WriteBlock(ctx context.Context, blk *session.Block) error {
	const fn = "stream:WriteBlock"
	record := BlockRecord{
		Stamp:  blk.Stamp,
		Labels: blk.Labels,
		Offset: blk.Offset,
		Values: blk.Values,
		At:     blk.At,
	}
	out, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrPublishFailed, err)
	}
	err = s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(blk.Stamp), Value: out})
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrPublishFailed, err)
	}
	return nil
}

func (s *Sink) Close(ctx context.Context) error {
	slog.InfoContext(ctx, "Closing stream sink...")
	return s.writer.Close()
}
