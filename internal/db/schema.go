package db

import "time"

type SessionRow struct {
	Stamp        string    `json:"stamp"`
	SamplingRate int       `json:"sampling_rate" db:"sampling_rate"`
	Labels       []string  `json:"labels"`
	StartedAt    time.Time `json:"started_at" db:"started_at"`
}

type SampleRow struct {
	SessionStamp string  `json:"session_stamp" db:"session_stamp"`
	Sensor       string  `json:"sensor"`
	Idx          int64   `json:"idx"`
	Value        float64 `json:"value"`
}
