package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/bizAuth"
	"github.com/MrEthical07/bizAuth/store/memstore"
)

type loadtestOptions struct {
	users       int
	concurrency int
	ops         int
	redisAddr   string
}

type loadUser struct {
	mu      sync.Mutex
	access  string
	refresh string
	csrf    string
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

func newLoadtestCommand() *cobra.Command {
	opts := &loadtestOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure identity resolution and refresh rotation throughput in-process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.users, "users", 200, "accounts to seed and log in")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 20000, "operations per phase")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address; embedded miniredis when empty")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, opts *loadtestOptions) error {
	if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return errors.New("users, concurrency and ops must be > 0")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	addr := opts.redisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	cfg := bizAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("loadtest-signing-key-0123456789ab")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = false

	engine, err := bizAuth.New().WithConfig(cfg).WithRedis(client).WithStore(memstore.New()).Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	seedCtx := bizAuth.WithClientIP(ctx, "127.0.0.1")
	users := make([]*loadUser, opts.users)
	fmt.Fprintf(out, "seeding %d accounts...\n", opts.users)
	startSeed := time.Now()
	for i := range users {
		name := fmt.Sprintf("user-%d", i)
		if _, err := engine.CreateAccount(ctx, name, "load-test-password"); err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		res, err := engine.Login(seedCtx, name, "load-test-password")
		if err != nil {
			return fmt.Errorf("login %s: %w", name, err)
		}
		users[i] = &loadUser{access: res.AccessToken, refresh: res.RefreshToken, csrf: res.RefreshCSRF}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	resolve := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand) error {
		u := users[r.Intn(len(users))]
		u.mu.Lock()
		token := u.access
		u.mu.Unlock()
		_, err := engine.ResolveIdentity(ctx, bizAuth.Credentials{AccessToken: token})
		return err
	})

	refresh := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand) error {
		u := users[r.Intn(len(users))]
		u.mu.Lock()
		defer u.mu.Unlock()
		sess, err := engine.Refresh(ctx, bizAuth.RefreshRequest{RefreshToken: u.refresh, CSRFHeader: u.csrf})
		if err != nil {
			return err
		}
		u.access, u.refresh, u.csrf = sess.AccessToken, sess.RefreshToken, sess.RefreshCSRF
		return nil
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "resolve", resolve)
	printStats(out, "refresh", refresh)
	return nil
}

// runPhase spreads ops calls of op over concurrency workers.
func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
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

// percentile expects sorted samples.
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

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
