package stream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aakash-soni-git/bitalino/internal/session"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	writeErr error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestSinkPublishesBlockRecords(t *testing.T) {
	w := &fakeWriter{}
	s := NewWithWriter(w)

	blk := &session.Block{
		Stamp:  "09-03-2024-140506",
		Labels: []string{"EDA", "ECG"},
		Offset: 100,
		Values: [][]float64{{1, 2}, {3, 4}},
	}
	require.NoError(t, s.WriteBlock(context.Background(), blk))

	require.Len(t, w.messages, 1)
	require.Equal(t, []byte("09-03-2024-140506"), w.messages[0].Key)

	var record BlockRecord
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &record))
	require.Equal(t, blk.Stamp, record.Stamp)
	require.Equal(t, blk.Labels, record.Labels)
	require.Equal(t, blk.Offset, record.Offset)
	require.Equal(t, blk.Values, record.Values)
}

func TestSinkWrapsWriteErrors(t *testing.T) {
	w := &fakeWriter{writeErr: errors.New("broker down")}
	s := NewWithWriter(w)

	err := s.WriteBlock(context.Background(), &session.Block{Stamp: "s"})
	require.ErrorIs(t, err, ErrPublishFailed)
}

func TestSinkClose(t *testing.T) {
	w := &fakeWriter{}
	s := NewWithWriter(w)
	require.NoError(t, s.Close(context.Background()))
	require.True(t, w.closed)
}
