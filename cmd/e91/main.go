// e91 runs a single round of E91 key negotiation against a simulated (or
// remote) entangled-pair oracle and prints the resulting keys, disagreement
// counts and CHSH statistic.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/alan-christopher/e91/e91"
	"github.com/alan-christopher/e91/e91/qubit"
	flag "github.com/spf13/pflag"
)

var (
	rounds    = flag.Int("rounds", e91.DefaultRounds, "The number of entangled pairs to exchange.")
	eavesdrop = flag.Bool("eavesdrop", false, "Place an intercept-resend eavesdropper between the source and the parties.")
	seed      = flag.Int64("seed", 0, "Seed for basis selection and the simulated oracle. Zero seeds from the clock.")
	noise     = flag.Float64("noise", 0, "White noise mixed into the simulated pairs, in [0, 1].")
	intercept = flag.String("intercept", "equatorial", "The eavesdropper's strategy: equatorial or computational.")
	settings  = flag.String("settings", "e91", "The parties' angle tables: e91 or aligned.")
	workers   = flag.Int("workers", 1, "Goroutines resolving simulated measurements.")
	table     = flag.Bool("table", false, "Also print the results as a table.")
	threshold = flag.Float64("threshold", 0, "Exit with status 1 if |S| falls below this value.")
	oracle    = flag.String("oracle", "", "host:port of a remote oracle to use instead of the simulation.")
	serve     = flag.String("serve", "", "Serve the simulated oracle on this address instead of running the protocol.")
	logJSON   = flag.Bool("log-json", false, "Log JSON records instead of text.")
	logDebug  = flag.Bool("log-debug", false, "Log at debug level.")
)

func main() {
	flag.Parse()
	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	logger.Debug("Starting", "seed", *seed)

	if *serve != "" {
		src, err := simulated(rand.New(rand.NewSource(*seed + 1)))
		if err != nil {
			log.Fatalf("Building oracle: %v", err)
		}
		if err := listen(ctx, logger, *serve, src); err != nil {
			log.Fatalf("Serving oracle: %v", err)
		}
		return
	}

	var src qubit.Source
	if *oracle != "" {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", *oracle)
		if err != nil {
			log.Fatalf("Dialing oracle: %v", err)
		}
		defer conn.Close()
		src = qubit.Dial(conn)
	} else {
		sim, err := simulated(rand.New(rand.NewSource(*seed + 1)))
		if err != nil {
			log.Fatalf("Building oracle: %v", err)
		}
		src = sim
	}

	res, err := e91.Run(ctx, e91.Opts{
		Source:    src,
		Rand:      rand.New(rand.NewSource(*seed)),
		Rounds:    *rounds,
		Eavesdrop: *eavesdrop,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Running exchange: %v", err)
	}
	if err := e91.WriteReport(os.Stdout, res); err != nil {
		log.Fatalf("Writing report: %v", err)
	}
	if *table {
		fmt.Println()
		e91.WriteTable(os.Stdout, res)
	}
	if s := math.Abs(res.CHSH.Value); s < *threshold {
		logger.Warn("CHSH statistic below threshold, aborting", "chsh", s, "threshold", *threshold)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if *logDebug {
		opts.Level = slog.LevelDebug
	}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if *logJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(h)
}

func simulated(r *rand.Rand) (*qubit.Simulated, error) {
	opts := qubit.SimulatedOpts{
		Noise:   *noise,
		Rand:    r,
		Workers: *workers,
	}
	switch *settings {
	case "e91":
		opts.Settings = qubit.E91
	case "aligned":
		opts.Settings = qubit.Aligned
	default:
		return nil, fmt.Errorf("unknown settings %q", *settings)
	}
	switch *intercept {
	case "equatorial":
		opts.Interceptor = qubit.Equatorial()
	case "computational":
		opts.Interceptor = qubit.Computational()
	default:
		return nil, fmt.Errorf("unknown intercept strategy %q", *intercept)
	}
	return qubit.NewSimulated(opts)
}

// listen serves src to one client at a time until ctx is done.
func listen(ctx context.Context, logger *slog.Logger, addr string, src qubit.Source) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	logger.Info("Serving oracle", "addr", l.Addr().String())
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logger.Debug("Accepted client", "remote", conn.RemoteAddr().String())
		if err := qubit.Serve(ctx, conn, src); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Client session failed", "remote", conn.RemoteAddr().String(), "err", err)
		}
		conn.Close()
	}
}
