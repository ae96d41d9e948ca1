package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/tanishqsrivastavaa/petique-app/internal/auth"
	"github.com/tanishqsrivastavaa/petique-app/internal/config"
	"github.com/tanishqsrivastavaa/petique-app/internal/db"
	"github.com/tanishqsrivastavaa/petique-app/internal/scheduling"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	StatusRatio  float64
	ReadRatio    float64
	VetLimit     int
	OwnerLimit   int
	Days         int
	PostgresDSN  string
	Auth         config.AuthConfig
}

type owner struct {
	ID    uuid.UUID
	Pets  []uuid.UUID
	Token string
}

type vet struct {
	ID    uuid.UUID
	Token string
}

type booking struct {
	ID    uuid.UUID
	VetID uuid.UUID
}

type DataPool struct {
	Vets   []vet
	Owners []owner

	mu       sync.RWMutex
	bookings []booking
	vetIndex map[uuid.UUID]int
}

func (dp *DataPool) AddBooking(b booking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, b)
}

func (dp *DataPool) RandomBooking(rng *rand.Rand) (booking, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.bookings) == 0 {
		return booking{}, false
	}
	return dp.bookings[rng.Intn(len(dp.bookings))], true
}

func (dp *DataPool) VetToken(id uuid.UUID) string {
	return dp.Vets[dp.vetIndex[id]].Token
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	pct := func(p int) time.Duration {
		idx := len(latencies) * p / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], pct(50), pct(95)
}

type Metrics struct {
	Booking   OperationMetrics
	Status    OperationMetrics
	FreeSlots OperationMetrics
	ListOwned OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	first   time.Time
}

func main() {
	log.Info().Msg("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("status", cfg.StatusRatio).
		Float64("read", cfg.ReadRatio).
		Msg("config")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}

	log.Info().Int("vets", len(dataPool.Vets)).Int("owners", len(dataPool.Owners)).Msg("data pool loaded")

	// bookings start tomorrow so every simulated slot is in the future
	tomorrow := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		first:  tomorrow,
	}

	sim.Run()
	sim.PrintReport()

	overlaps, err := countOverlaps(context.Background(), pgPool)
	if err != nil {
		log.Fatal().Err(err).Msg("verify bookings")
	}
	if overlaps > 0 {
		log.Fatal().Int("pairs", overlaps).Msg("overlapping active bookings found")
	}
	log.Info().Msg("no overlapping active bookings")
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 20),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.6),
		StatusRatio:  getFloat("SIM_STATUS_RATIO", 0.15),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.25),
		VetLimit:     getInt("SIM_VET_LIMIT", 3),
		OwnerLimit:   getInt("SIM_OWNER_LIMIT", 200),
		Days:         getInt("SIM_DAYS", 5),
		PostgresDSN:  baseCfg.PostgresDSN,
		Auth:         baseCfg.Auth,
	}

	total := cfg.BookingRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to mint simulator tokens")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

// loadDataPool picks a few vets so workers contend for the same calendars, and
// mints a token for every vet and owner it loads.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	tokens := auth.NewManager(cfg.Auth)
	dataPool := &DataPool{vetIndex: make(map[uuid.UUID]int)}

	rows, err := pool.Query(ctx, `SELECT id FROM vets WHERE is_active ORDER BY created_at LIMIT $1`, cfg.VetLimit)
	if err != nil {
		return nil, fmt.Errorf("load vets: %w", err)
	}
	var vetIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		vetIDs = append(vetIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range vetIDs {
		vetID := id
		tok, _, err := tokens.Issue(scheduling.Actor{UserID: uuid.New(), Role: scheduling.RoleVet, VetID: &vetID})
		if err != nil {
			return nil, fmt.Errorf("issue vet token: %w", err)
		}
		dataPool.vetIndex[id] = len(dataPool.Vets)
		dataPool.Vets = append(dataPool.Vets, vet{ID: id, Token: tok})
	}

	rows, err = pool.Query(ctx, `
		SELECT o.id, array_agg(p.id)
		FROM owners o
		JOIN pets p ON p.owner_id = o.id
		GROUP BY o.id
		LIMIT $1
	`, cfg.OwnerLimit)
	if err != nil {
		return nil, fmt.Errorf("load owners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o owner
		if err := rows.Scan(&o.ID, &o.Pets); err != nil {
			return nil, err
		}
		o.Token, _, err = tokens.Issue(scheduling.Actor{UserID: o.ID, Role: scheduling.RoleOwner})
		if err != nil {
			return nil, fmt.Errorf("issue owner token: %w", err)
		}
		dataPool.Owners = append(dataPool.Owners, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Vets) == 0 {
		return nil, fmt.Errorf("no vets loaded")
	}
	if len(dataPool.Owners) == 0 {
		return nil, fmt.Errorf("no owners loaded")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.StatusRatio:
			s.doStatus(ctx, rng)
		case rng.Intn(2) == 0:
			s.doFreeSlots(ctx, rng)
		default:
			s.doListOwned(ctx, rng)
		}
	}
}

// randomSlot returns a 30 minute slot on a 15 minute grid inside the seeded
// hours, so concurrent requests often overlap without being identical.
func (s *Simulator) randomSlot(rng *rand.Rand) (time.Time, time.Time) {
	day := s.first.AddDate(0, 0, rng.Intn(s.config.Days))
	start := day.Add(9*time.Hour + time.Duration(rng.Intn(30))*15*time.Minute)
	return start, start.Add(30 * time.Minute)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	o := s.pool.Owners[rng.Intn(len(s.pool.Owners))]
	v := s.pool.Vets[rng.Intn(len(s.pool.Vets))]
	start, end := s.randomSlot(rng)

	body, _ := json.Marshal(map[string]any{
		"pet_id":   o.Pets[rng.Intn(len(o.Pets))].String(),
		"vet_id":   v.ID.String(),
		"start_at": start,
		"end_at":   end,
	})

	began := time.Now()
	status, payload, err := s.send(ctx, http.MethodPost, "/bookings", o.Token, body)
	latency := time.Since(began)

	success := err == nil && status == http.StatusCreated
	if success {
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(payload, &created) == nil && created.ID != uuid.Nil {
			s.pool.AddBooking(booking{ID: created.ID, VetID: v.ID})
		}
	}

	s.metrics.Booking.Record(latency, success, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doStatus(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}

	next := []string{"confirmed", "cancelled", "completed"}[rng.Intn(3)]
	body, _ := json.Marshal(map[string]string{"status": next})

	began := time.Now()
	status, _, err := s.send(ctx, http.MethodPatch, "/bookings/"+b.ID.String()+"/status", s.pool.VetToken(b.VetID), body)
	latency := time.Since(began)

	// random transitions are often illegal; a 422 is the service saying so
	s.metrics.Status.Record(latency, err == nil && status == http.StatusOK, err == nil && status == http.StatusUnprocessableEntity)
}

func (s *Simulator) doFreeSlots(ctx context.Context, rng *rand.Rand) {
	v := s.pool.Vets[rng.Intn(len(s.pool.Vets))]
	o := s.pool.Owners[rng.Intn(len(s.pool.Owners))]
	day := s.first.AddDate(0, 0, rng.Intn(s.config.Days))

	began := time.Now()
	status, _, err := s.send(ctx, http.MethodGet,
		fmt.Sprintf("/vets/%s/slots?date=%s&slot_minutes=30", v.ID, day.Format("2006-01-02")), o.Token, nil)
	s.metrics.FreeSlots.Record(time.Since(began), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doListOwned(ctx context.Context, rng *rand.Rand) {
	o := s.pool.Owners[rng.Intn(len(s.pool.Owners))]

	began := time.Now()
	status, _, err := s.send(ctx, http.MethodGet, "/bookings", o.Token, nil)
	s.metrics.ListOwned.Record(time.Since(began), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) send(ctx context.Context, method, path, token string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	return resp.StatusCode, payload, err
}

// countOverlaps counts pairs of active bookings of the same vet whose intervals
// intersect. Anything above zero means double booking.
func countOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM bookings a
		JOIN bookings b
		  ON a.vet_id = b.vet_id
		 AND a.id < b.id
		 AND a.start_at < b.end_at
		 AND b.start_at < a.end_at
		WHERE a.status IN ('pending', 'confirmed')
		  AND b.status IN ('pending', 'confirmed')
	`).Scan(&n)
	return n, err
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Vets under contention: %d\n", len(s.pool.Vets))
	fmt.Println()

	printOperationReport("Create booking", &s.metrics.Booking)
	printOperationReport("Update status", &s.metrics.Status)
	printOperationReport("Free slots", &s.metrics.FreeSlots)
	printOperationReport("List own bookings", &s.metrics.ListOwned)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
