// Live strip chart receiver: blocks reading JSON frames from stdin, one
// array of per-sensor sample arrays per line, and redraws a terminal
// chart of the trailing ten seconds until EOF or interrupt.
//
// Usage: liveplot <sampling-rate> <label> [label...]
// The acquisition service launches it with exactly those arguments and
// feeds frames to its stdin.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
)

// trailing window rendered per frame, in seconds
const plotSeconds = 10

// chart width in terminal cells
const plotWidth = 72

var levels = []rune("▁▂▃▄▅▆▇█")

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: liveplot <sampling-rate> <label> [label...]")
		os.Exit(1)
	}
	fs, err := strconv.Atoi(os.Args[1])
	if err != nil || fs <= 0 {
		fmt.Fprintf(os.Stderr, "bad sampling rate %q\n", os.Args[1])
		os.Exit(1)
	}
	labels := os.Args[2:]

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		<-sigs
		fmt.Println("\nExit live plot")
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	// a frame can carry a minute of six channels at 1 kHz
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	for scanner.Scan() {
		var data [][]float64
		if err := json.Unmarshal(scanner.Bytes(), &data); err != nil {
			fmt.Fprintf(os.Stderr, "bad frame: %v\n", err)
			continue
		}
		draw(data, labels, fs)
	}
	fmt.Println("Exit live plot")
}

func draw(data [][]float64, labels []string, fs int) {
	fmt.Print("\033[H\033[2J")
	fmt.Printf("Live sensor data (last %d sec)\n\n", plotSeconds)

	window := plotSeconds * fs
	for i, series := range data {
		label := "?"
		if i < len(labels) {
			label = labels[i]
		}
		if len(series) > window {
			series = series[len(series)-window:]
		}
		if len(series) == 0 {
			continue
		}
		lo, hi := bounds(series)
		fmt.Printf("%-4s %s\n", label, sparkline(series, plotWidth, lo, hi))
		fmt.Printf("     min=%.3f max=%.3f last=%.3f\n\n", lo, hi, series[len(series)-1])
	}
	fmt.Printf("samples per channel: %d\n", seriesLen(data))
}

func bounds(vs []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// sparkline buckets the series down to width cells and maps each bucket
// mean onto the block-character ramp.
func sparkline(vs []float64, width int, lo, hi float64) string {
	if len(vs) < width {
		width = len(vs)
	}
	var b strings.Builder
	span := hi - lo
	for i := 0; i < width; i++ {
		start := i * len(vs) / width
		end := (i + 1) * len(vs) / width
		if end <= start {
			end = start + 1
		}
		sum := 0.0
		for _, v := range vs[start:end] {
			sum += v
		}
		mean := sum / float64(end-start)
		level := 0
		if span > 0 {
			level = int((mean - lo) / span * float64(len(levels)-1))
		}
		b.WriteRune(levels[level])
	}
	return b.String()
}

func seriesLen(data [][]float64) int {
	if len(data) == 0 {
		return 0
	}
	return len(data[0])
}
