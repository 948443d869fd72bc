// README: Bench cases; end-to-end prediction scenario, bucket boundaries, input rejection, history/report, DB, Redis and load.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// lastID is the id of the most recent successful prediction, for history/report cases.
	lastID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

// trip is the request body of POST /api/predict.
type trip struct {
	DistanceKm    float64 `json:"distance_km"`
	PickupHour    int     `json:"pickup_hour"`
	PickupWeekday string  `json:"pickup_weekday"`
	PickupMonth   int     `json:"pickup_month"`
	Flag          string  `json:"store_and_fwd_flag"`
}

func wednesdayTrip() trip {
	return trip{DistanceKm: 3.5, PickupHour: 14, PickupWeekday: "Wednesday", PickupMonth: 6, Flag: "N"}
}

type predictResp struct {
	ID       string             `json:"id"`
	Features map[string]float64 `json:"features"`
	Result   struct {
		DurationSeconds float64 `json:"duration_seconds"`
		Minutes         int     `json:"minutes"`
		Seconds         int     `json:"seconds"`
	} `json:"result"`
	Summary string `json:"summary"`
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "prediction history database reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "prediction cache reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "apply migration SQL",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "tables named in the migration exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		httpCaseMethod("API: health", http.MethodGet, base+"/health", nil, []int{200}),
		httpCaseMethod("API: form page", http.MethodGet, base+"/", nil, []int{200}),
		httpCaseMethod("API: schema", http.MethodGet, base+"/api/schema", nil, []int{200}),

		{
			Name:  "Predict: Wednesday afternoon 3.5 km",
			Focus: "derived features of the reference trip",
			Run: func(ctx context.Context, r *Runner) Result {
				out, res := r.predict(ctx, base, wednesdayTrip())
				if res.Status != "PASS" {
					return res
				}
				want := map[string]float64{
					"pickup_weekday":         2,
					"is_weekend":             0,
					"time_of_day_afternoon":  1,
					"time_of_day_morning":    0,
					"time_of_day_evening":    0,
					"time_of_day_night":      0,
					"distance_bin_medium":    1,
					"distance_bin_short":     0,
					"distance_bin_long":      0,
					"distance_bin_very_long": 0,
				}
				if note := diffFeatures(out.Features, want); note != "" {
					return Result{Status: "FAIL", Latency: res.Latency, Note: note}
				}
				if out.Result.DurationSeconds < 0 || out.Result.Seconds < 0 || out.Result.Seconds > 59 {
					return Result{Status: "FAIL", Latency: res.Latency, Note: "bad duration split"}
				}
				r.lastID = out.ID
				res.Note = out.Summary
				return res
			},
		},
		bucketCase("Buckets: hour boundaries", base, []bucketProbe{
			{hour: 5, km: 3.5, key: "time_of_day_night"},
			{hour: 6, km: 3.5, key: "time_of_day_morning"},
			{hour: 11, km: 3.5, key: "time_of_day_morning"},
			{hour: 12, km: 3.5, key: "time_of_day_afternoon"},
			{hour: 17, km: 3.5, key: "time_of_day_afternoon"},
			{hour: 18, km: 3.5, key: "time_of_day_evening"},
			{hour: 23, km: 3.5, key: "time_of_day_evening"},
		}),
		bucketCase("Buckets: distance boundaries", base, []bucketProbe{
			{hour: 14, km: 2.0, key: "distance_bin_short"},
			{hour: 14, km: 2.01, key: "distance_bin_medium"},
			{hour: 14, km: 5.0, key: "distance_bin_medium"},
			{hour: 14, km: 5.01, key: "distance_bin_long"},
			{hour: 14, km: 10.0, key: "distance_bin_long"},
			{hour: 14, km: 10.01, key: "distance_bin_very_long"},
		}),

		httpCase("Invalid: distance 0 -> 400", base+"/api/predict", trip{DistanceKm: 0, PickupHour: 14, PickupWeekday: "Monday", PickupMonth: 6, Flag: "N"}, []int{400}),
		httpCase("Invalid: hour 24 -> 400", base+"/api/predict", trip{DistanceKm: 3.5, PickupHour: 24, PickupWeekday: "Monday", PickupMonth: 6, Flag: "N"}, []int{400}),
		httpCase("Invalid: month 13 -> 400", base+"/api/predict", trip{DistanceKm: 3.5, PickupHour: 14, PickupWeekday: "Monday", PickupMonth: 13, Flag: "N"}, []int{400}),
		httpCase("Invalid: weekday -> 400", base+"/api/predict", trip{DistanceKm: 3.5, PickupHour: 14, PickupWeekday: "Someday", PickupMonth: 6, Flag: "N"}, []int{400}),
		httpCase("Invalid: flag -> 400", base+"/api/predict", trip{DistanceKm: 3.5, PickupHour: 14, PickupWeekday: "Monday", PickupMonth: 6, Flag: "Q"}, []int{400}),

		{
			Name:  "History: recent includes last prediction",
			Focus: "GET /api/predictions",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.lastID == "" {
					return Result{Status: "SKIP", Note: "no prediction recorded"}
				}
				var list struct {
					Predictions []predictResp `json:"predictions"`
				}
				res := r.getJSON(ctx, base+"/api/predictions?limit=100", &list)
				if res.Status != "PASS" {
					return res
				}
				for _, p := range list.Predictions {
					if p.ID == r.lastID {
						return res
					}
				}
				return Result{Status: "FAIL", Latency: res.Latency, Note: "last prediction not listed"}
			},
		},
		{
			Name:  "History: PDF report",
			Focus: "GET /api/predictions/:id/report.pdf",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.lastID == "" {
					return Result{Status: "SKIP", Note: "no prediction recorded"}
				}
				body, res := r.get(ctx, base+"/api/predictions/"+r.lastID+"/report.pdf")
				if res.Status == "PASS" && !bytes.HasPrefix(body, []byte("%PDF-")) {
					return Result{Status: "FAIL", Latency: res.Latency, Note: "not a PDF"}
				}
				return res
			},
		},
		{
			Name:  "History: persisted in Postgres",
			Focus: "predictions row written",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil || r.lastID == "" {
					return Result{Status: "SKIP", Note: "db not configured or no prediction"}
				}
				var exists bool
				err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM predictions WHERE id = $1)", r.lastID).Scan(&exists)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if !exists {
					return Result{Status: "FAIL", Note: "row missing (is the server using the same DSN?)"}
				}
				return Result{Status: "PASS"}
			},
		},

		{
			Name:  "Load: predict throughput",
			Focus: "concurrent POST /api/predict",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, base+"/api/predict", wednesdayTrip())
			},
		},
	}
}

func (r *Runner) do(ctx context.Context, method, url string, body any) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	return resp.StatusCode, out, time.Since(start), err
}

func (r *Runner) predict(ctx context.Context, base string, t trip) (predictResp, Result) {
	var out predictResp
	status, body, latency, err := r.do(ctx, http.MethodPost, base+"/api/predict", t)
	if err != nil {
		return out, Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusCreated {
		return out, Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, Result{Status: "FAIL", Latency: latency, Note: err.Error()}
	}
	return out, Result{Status: "PASS", Latency: latency}
}

func (r *Runner) get(ctx context.Context, url string) ([]byte, Result) {
	status, body, latency, err := r.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusOK {
		return body, Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	return body, Result{Status: "PASS", Latency: latency}
}

func (r *Runner) getJSON(ctx context.Context, url string, v any) Result {
	body, res := r.get(ctx, url)
	if res.Status != "PASS" {
		return res
	}
	if err := json.Unmarshal(body, v); err != nil {
		return Result{Status: "FAIL", Latency: res.Latency, Note: err.Error()}
	}
	return res
}

type bucketProbe struct {
	hour int
	km   float64
	key  string
}

func bucketCase(name, base string, probes []bucketProbe) TestCase {
	return TestCase{
		Name:  name,
		Focus: "one-hot bucket edges",
		Run: func(ctx context.Context, r *Runner) Result {
			var total time.Duration
			for _, p := range probes {
				t := wednesdayTrip()
				t.PickupHour, t.DistanceKm = p.hour, p.km
				out, res := r.predict(ctx, base, t)
				if res.Status != "PASS" {
					return res
				}
				total += res.Latency
				if out.Features[p.key] != 1 {
					return Result{Status: "FAIL", Note: fmt.Sprintf("hour=%d km=%v: %s=%v", p.hour, p.km, p.key, out.Features[p.key])}
				}
			}
			return Result{Status: "PASS", Latency: total / time.Duration(len(probes))}
		},
	}
}

func diffFeatures(got, want map[string]float64) string {
	var diffs []string
	for k, v := range want {
		g, ok := got[k]
		if !ok {
			diffs = append(diffs, k+" missing")
			continue
		}
		if g != v {
			diffs = append(diffs, fmt.Sprintf("%s=%v want %v", k, g, v))
		}
	}
	return strings.Join(diffs, ", ")
}

func httpCase(name, url string, body any, okStatuses []int) TestCase {
	return httpCaseMethod(name, http.MethodPost, url, body, okStatuses)
}

func httpCaseMethod(name, method, url string, body any, okStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			status, _, latency, err := r.do(ctx, method, url, body)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if slices.Contains(okStatuses, status) {
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
		},
	}
}

// perfLoad posts payload from Concurrency workers for Duration and reports
// throughput plus latency percentiles of the successful requests.
func perfLoad(ctx context.Context, r *Runner, url string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		mu        sync.Mutex
		latencies []time.Duration
		failures  int
		wg        sync.WaitGroup
	)

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, latency, err := r.do(ctx, http.MethodPost, url, payload)
				mu.Lock()
				if err != nil || status != http.StatusCreated {
					failures++
				} else {
					latencies = append(latencies, latency)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(latencies) == 0 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("no predictions completed, failures=%d", failures)}
	}
	slices.Sort(latencies)
	rps := float64(len(latencies)) / r.cfg.Duration.Seconds()
	note := fmt.Sprintf("rps=%.1f p50=%s p95=%s p99=%s failures=%d",
		rps, percentile(latencies, 50), percentile(latencies, 95), percentile(latencies, 99), failures)
	status := "PASS"
	if failures > len(latencies)/100 {
		status = "FAIL"
	}
	return Result{Status: status, Latency: percentile(latencies, 50), Note: note}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	idx := (len(sorted)*p + 99) / 100
	if idx < 1 {
		idx = 1
	}
	return sorted[idx-1]
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	cleaned := strings.Join(filtered, "\n")
	parts := strings.Split(cleaned, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
