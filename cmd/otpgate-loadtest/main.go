// Command otpgate-loadtest measures session store latency under concurrent
// load. It seeds authenticated sessions, then runs a Get phase and a Touch
// phase, the two Redis operations on every authorized request.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/otpgate/internal"
	"github.com/MrEthical07/otpgate/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, OTPGATE_REDIS_ADDR or miniredis is used")
		prefix      = flag.String("prefix", "otps", "session key prefix")
		pendingPct  = flag.Int("pending", 20, "percentage of seeded sessions still waiting for an OTP")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *pendingPct < 0 || *pendingPct > 100 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0 and pending within 0-100")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("OTPGATE_REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := session.NewStore(client, *prefix, 24*time.Hour)

	fmt.Printf("seeding %d sessions (%d%% pending OTP)...\n", *sessions, *pendingPct)
	startSeed := time.Now()
	ids, err := seed(ctx, store, *sessions, *pendingPct)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	getStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		_, err := store.Get(ctx, ids[r.Intn(len(ids))])
		return err
	})
	touchStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		return store.Touch(ctx, ids[r.Intn(len(ids))], time.Now().UnixMilli())
	})

	fmt.Println("---- results ----")
	printStats("get", getStats)
	printStats("touch", touchStats)
}

// runPhase spreads ops calls of op across concurrency workers. Each worker
// keeps its own samples; they are merged once the phase ends.
func runPhase(ops, concurrency int, seed int64, op func(*rand.Rand) error) phaseStats {
	var (
		wg       sync.WaitGroup
		cursor   atomic.Int64
		failures atomic.Int64
		perWork  = make([][]time.Duration, concurrency)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(worker)))
			samples := make([]time.Duration, 0, ops/concurrency+1)
			for cursor.Add(1) <= int64(ops) {
				t0 := time.Now()
				if err := op(r); err != nil {
					failures.Add(1)
				}
				samples = append(samples, time.Since(t0))
			}
			perWork[worker] = samples
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	latencies := make([]time.Duration, 0, ops)
	for _, samples := range perWork {
		latencies = append(latencies, samples...)
	}
	return computeStats(elapsed, latencies, failures.Load())
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// seed writes n sessions with real session ids. pendingPct percent of them
// wait for an OTP; the rest are authenticated.
func seed(ctx context.Context, store *session.Store, n, pendingPct int) ([]string, error) {
	ids := make([]string, n)
	now := time.Now().UnixMilli()
	for i := range ids {
		sid, err := internal.NewSessionID()
		if err != nil {
			return nil, err
		}
		ids[i] = sid.String()

		sess := &session.Session{SessionID: ids[i], CreatedAt: now}
		userID := fmt.Sprintf("u-%d", i)
		if i%100 < pendingPct {
			sess.SetPending(userID, now)
			sess.LastActivity = now
		} else {
			sess.Promote(userID, fmt.Sprintf("user%d@example.com", i), "Load Test", now)
		}
		if err := store.Save(ctx, sess); err != nil {
			return nil, err
		}
	}
	return ids, nil
}
