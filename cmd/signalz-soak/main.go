// Command signalz-soak drives a Signal with concurrent connects and
// sends and prints the registry and loop metrics when done.
//
//	signalz-soak --subscribers 10000 --keys 64 --sends 100000 --goroutines 16
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
	"github.com/zoobzio/signalz"
)

type options struct {
	subscribers int
	senders     int
	keys        int
	sends       int
	goroutines  int
	workers     int
	weak        bool
	async       bool
	drop        float64
	logLevel    string
}

func main() {
	var opts options
	fs := flag.NewFlagSet("signalz-soak", flag.ContinueOnError)
	fs.IntVar(&opts.subscribers, "subscribers", 1000, "number of subscribers to connect")
	fs.IntVar(&opts.senders, "senders", 16, "number of distinct senders")
	fs.IntVar(&opts.keys, "keys", 16, "number of distinct keys")
	fs.IntVar(&opts.sends, "sends", 10000, "total number of sends")
	fs.IntVar(&opts.goroutines, "goroutines", runtime.GOMAXPROCS(0), "concurrent senders")
	fs.IntVar(&opts.workers, "workers", 1, "loop workers draining deferred calls")
	fs.BoolVar(&opts.weak, "weak", true, "hold subscribers weakly")
	fs.BoolVar(&opts.async, "async", false, "subscribe async callbacks")
	fs.Float64Var(&opts.drop, "drop", 0.5, "fraction of weak subscribers dropped before sending")
	fs.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(context.Background(), opts, logger); err != nil {
		logger.Error("soak failed", "error", err)
		os.Exit(1)
	}
}

type subscriber struct {
	id        int
	delivered *atomic.Int64
}

func (s *subscriber) OnEvent(context.Context, *signalz.Event) error {
	s.delivered.Add(1)
	return nil
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	if opts.senders <= 0 || opts.keys <= 0 || opts.goroutines <= 0 {
		return fmt.Errorf("senders, keys and goroutines must be positive")
	}

	var failed atomic.Int64
	loop := signalz.NewLoop(
		signalz.WithWorkers(opts.workers),
		signalz.WithLoopLogger(logger),
		signalz.WithErrorHandler(func(err error) {
			failed.Add(1)
			logger.Warn("callback failed", "error", err)
		}),
	)
	runID := uuid.NewString()
	sig, err := signalz.New(
		signalz.WithName("soak-"+runID[:8]),
		signalz.WithScheduler(loop),
		signalz.WithLogger(logger),
		signalz.WithDefault("seq", 0),
	)
	if err != nil {
		return err
	}

	senders := make([]*string, opts.senders)
	for i := range senders {
		s := fmt.Sprintf("sender-%d", i)
		senders[i] = &s
	}

	bind := signalz.Bind[subscriber]
	if opts.async {
		bind = signalz.BindAsync[subscriber]
	}

	var delivered atomic.Int64
	kept := make([]*subscriber, 0, opts.subscribers)
	started := time.Now()
	for i := 0; i < opts.subscribers; i++ {
		sub := &subscriber{id: i, delivered: &delivered}
		cb := bind(sub, (*subscriber).OnEvent)
		route := []signalz.ConnectOption{signalz.Weak(opts.weak)}
		switch i % 3 {
		case 1:
			route = append(route, signalz.Sender(senders[i%opts.senders]))
		case 2:
			route = append(route, signalz.Key(i%opts.keys))
		}
		if err := sig.Connect(ctx, cb, route...); err != nil {
			return err
		}
		if !opts.weak || float64(i%100) >= opts.drop*100 {
			kept = append(kept, sub)
		}
	}
	logger.Info("connected", "subscribers", opts.subscribers, "kept", len(kept), "elapsed", time.Since(started))
	runtime.GC()

	var (
		wg  sync.WaitGroup
		seq atomic.Int64
	)
	started = time.Now()
	errs := make(chan error, opts.goroutines)
	for g := 0; g < opts.goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				n := seq.Add(1)
				if n > int64(opts.sends) {
					return
				}
				_, err := sig.Send(ctx,
					signalz.Sender(senders[int(n)%opts.senders]),
					signalz.Key(int(n)%opts.keys),
					signalz.With("seq", int(n)),
				)
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return err
	}
	sendElapsed := time.Since(started)

	if err := loop.Close(ctx); err != nil {
		return err
	}
	runtime.KeepAlive(kept)

	m := sig.Metrics()
	lm := loop.Metrics()
	logger.Info("done",
		"sends", m.Sends,
		"sends_per_sec", float64(m.Sends)/sendElapsed.Seconds(),
		"scheduled", m.Scheduled,
		"delivered", delivered.Load(),
		"pruned", m.Pruned,
		"failed", failed.Load(),
	)
	fmt.Printf("registry: unconditional=%d sender_entries=%d sender_locks=%d key_entries=%d key_locks=%d\n",
		m.Unconditional, m.SenderEntries, m.SenderLocks, m.KeyEntries, m.KeyLocks)
	fmt.Printf("loop: calls=%d tasks=%d processed=%d failed=%d panicked=%d\n",
		lm.CallsSubmitted, lm.TasksSubmitted, lm.Processed, lm.Failed, lm.Panicked)
	return nil
}
