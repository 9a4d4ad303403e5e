// Polls the session API of a running acquisition: fetches the current
// session snapshot and the last few seconds of converted samples, then
// lists every session the process has run.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type sessionSnapshot struct {
	Stamp     string    `json:"stamp"`
	Rate      int       `json:"rate"`
	Labels    []string  `json:"labels"`
	Samples   int       `json:"samples"`
	StartedAt time.Time `json:"startedAt"`
	Running   bool      `json:"running"`
}

type windowResponse struct {
	Stamp   string      `json:"stamp"`
	Rate    int         `json:"rate"`
	Seconds int         `json:"seconds"`
	Labels  []string    `json:"labels"`
	Values  [][]float64 `json:"values"`
}

func main() {
	baseURL := "http://localhost:8080"

	// 1. GET /session
	resp, err := http.Get(baseURL + "/session")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	fmt.Println("GET /session status:", resp.Status)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fmt.Println("GET response body:", string(body))
		return
	}
	var snap sessionSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		panic(err)
	}
	fmt.Printf("session %s: %v at %d Hz, %d samples, running=%v\n",
		snap.Stamp, snap.Labels, snap.Rate, snap.Samples, snap.Running)

	// 2. GET /session/window?seconds=5
	resp, err = http.Get(baseURL + "/session/window?seconds=5")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	var window windowResponse
	if err := json.NewDecoder(resp.Body).Decode(&window); err != nil {
		panic(err)
	}
	for i, label := range window.Labels {
		series := window.Values[i]
		if len(series) == 0 {
			fmt.Printf("%s: no samples yet\n", label)
			continue
		}
		fmt.Printf("%s: %d samples in window, last=%.4f\n", label, len(series), series[len(series)-1])
	}

	// 3. GET /sessions
	resp, err = http.Get(baseURL + "/sessions")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	var list struct {
		Sessions []sessionSnapshot `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		panic(err)
	}
	fmt.Println("GET /sessions count:", len(list.Sessions))
}
