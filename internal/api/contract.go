package api

import "github.com/aakash-soni-git/bitalino/internal/session"

type GetWindowResponse struct {
	Stamp   string      `json:"stamp"`
	Rate    int         `json:"rate"`
	Seconds int         `json:"seconds"`
	Labels  []string    `json:"labels"`
	Values  [][]float64 `json:"values"`
}

type ListSessionsResponse struct {
	Sessions []session.Snapshot `json:"sessions"`
}
