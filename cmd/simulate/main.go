package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/clinova/appointment-booking/internal/logging"
)

// Fires N identical booking requests at the API at the same instant and
// reports how many won the slot. With the doctor lock and the live-slot
// uniqueness constraint in place, exactly one should.
func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "API base URL")
		doctorID    = flag.String("doctor", "DOC001", "doctor to target")
		patientID   = flag.String("patient", "PAT00001", "patient making the requests")
		concurrency = flag.Int("n", 20, "number of concurrent booking attempts")
		startsAt    = flag.String("starts-at", "", "slot start (RFC3339); defaults to next Monday 10:00 UTC")
	)
	flag.Parse()

	logger := logging.New("simulate", os.Getenv("APP_ENV"))

	slot := *startsAt
	if slot == "" {
		slot = nextMonday(time.Now().UTC()).Format(time.RFC3339)
	}

	body, err := json.Marshal(map[string]any{
		"patient_id": *patientID,
		"doctor_id":  *doctorID,
		"starts_at":  slot,
		"type":       "consultation",
		"reason":     "load simulation",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("encode request body")
	}

	logger.Info().
		Int("concurrency", *concurrency).
		Str("doctor_id", *doctorID).
		Str("starts_at", slot).
		Msg("firing concurrent booking attempts")

	client := &http.Client{Timeout: 10 * time.Second}
	results := make([]result, *concurrency)

	var start sync.WaitGroup
	start.Add(1)
	var done sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			start.Wait()
			results[i] = attempt(client, *baseURL+"/appointments", body)
		}(i)
	}
	start.Done()
	done.Wait()

	created, conflicts, failures, latencies := summarize(results)
	printSummary(created, conflicts, failures, len(results), latencies)
	if created != 1 {
		os.Exit(1)
	}
}

type result struct {
	status  int
	latency time.Duration
	err     error
}

func attempt(client *http.Client, url string, body []byte) result {
	began := time.Now()
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return result{err: err, latency: time.Since(began)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return result{status: resp.StatusCode, latency: time.Since(began)}
}

func summarize(results []result) (created, conflicts, failures int, latencies []time.Duration) {
	for _, r := range results {
		latencies = append(latencies, r.latency)
		switch {
		case r.err != nil:
			failures++
		case r.status == http.StatusCreated:
			created++
		case r.status == http.StatusConflict:
			conflicts++
		default:
			failures++
		}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	return created, conflicts, failures, latencies
}

func printSummary(created, conflicts, failures, total int, latencies []time.Duration) {
	fmt.Printf("attempts:  %d\n", total)
	fmt.Printf("created:   %d\n", created)
	fmt.Printf("conflicts: %d\n", conflicts)
	fmt.Printf("failures:  %d\n", failures)
	if len(latencies) > 0 {
		fmt.Printf("latency p50=%s p95=%s max=%s\n",
			percentile(latencies, 0.50),
			percentile(latencies, 0.95),
			latencies[len(latencies)-1])
	}
	if created == 1 {
		fmt.Println("result: exactly one winner (expected)")
	} else {
		fmt.Printf("result: %d winners, expected 1: slot protection failed\n", created)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(p*float64(len(sorted)-1))]
}

func nextMonday(now time.Time) time.Time {
	days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	day := now.AddDate(0, 0, days)
	return time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.UTC)
}
