// Package influx writes converted samples into an InfluxDB 2.x bucket,
// one point per sample under the biosignal measurement.
package influx

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/aakash-soni-git/bitalino/internal/session"
)

var ErrWriteFailed = errors.New("influx write failed")

type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	// Rate is the session sampling rate, used to spread per-sample
	// timestamps across the block.
	Rate int
}

// Sink writes blocks through the blocking write API.
type Sink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	rate   int
}

func New(cfg Config) *Sink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Sink{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		rate:   cfg.Rate,
	}
}

// NewWithWriteAPI wires an existing write API. Used by tests.
func NewWithWriteAPI(w api.WriteAPIBlocking, rate int) *Sink {
	return &Sink{write: w, rate: rate}
}

// WriteBlock emits one point per sample, tagged with session stamp and
// sensor label. The block's arrival time anchors the last sample; earlier
// samples step back by the sampling period.
func (s *Sink) WriteBlock(ctx context.Context, blk *session.Block) error {
	const fn = "influx:WriteBlock"
	period := time.Second / time.Duration(s.rate)
	n := blk.Samples()
	for i, label := range blk.Labels {
		for j := 0; j < n; j++ {
			at := blk.At.Add(-time.Duration(n-1-j) * period)
			p := influxdb2.NewPoint(
				"biosignal",
				map[string]string{"session": blk.Stamp, "sensor": label},
				map[string]interface{}{"value": blk.Values[i][j]},
				at,
			)
			if err := s.write.WritePoint(ctx, p); err != nil {
				return fmt.Errorf("%s:%w:%w", fn, ErrWriteFailed, err)
			}
		}
	}
	return nil
}

func (s *Sink) Close(ctx context.Context) error {
	if err := s.write.Flush(ctx); err != nil {
		return fmt.Errorf("influx:Close:%w:%w", ErrWriteFailed, err)
	}
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
