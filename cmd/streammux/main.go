// Demo and load-generation harness: paced in-memory publishers feeding one
// subscription multiplexer polled by a single consumer.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pbnjay/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"streammux/internal/calc"
	"streammux/internal/conductor"
	"streammux/internal/image"
	"streammux/internal/logctx"
	"streammux/internal/metrics"
	"streammux/pkg/mux"
	"streammux/pkg/pacing"
)

const progVersion = "v0.3.0"

func main() {
	publishers := flag.Int("publishers", 3, "number of concurrent publisher sessions")
	messages := flag.Int64("messages", 100000, "messages each publisher sends")
	messageRate := flag.Float64("rate", 0, "goal messages per second per publisher (0 = unpaced)")
	payloadLength := flag.Int("payload", 256, "message payload length in bytes")
	maxFragment := flag.Int("max-fragment", 64, "maximum fragment length in bytes")
	fragmentLimit := flag.Int("fragment-limit", 10, "fragment budget per poll call")
	ringCapacity := flag.Uint64("ring-capacity", 0, "fragment ring capacity per session, power of two (0 = sized from system memory)")
	linger := flag.Duration("linger", conductor.DefaultLingerTimeout, "deferred reclamation delay for detached sources")
	metricsAddr := flag.String("metrics", "", "prometheus listen address, empty disables exposition")
	logLevel := flag.Int("v", logctx.VerbosityStandard, "log verbosity 0-3")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("streammux %s (%s %s/%s)\n", progVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return
	}

	logger := logctx.New("streammux", *logLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logctx.WithLogger(ctx, logger)

	err := run(ctx, runConfig{
		publishers:    *publishers,
		messages:      *messages,
		rate:          *messageRate,
		payloadLength: *payloadLength,
		maxFragment:   *maxFragment,
		fragmentLimit: *fragmentLimit,
		ringCapacity:  *ringCapacity,
		linger:        *linger,
		metricsAddr:   *metricsAddr,
	})
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

type runConfig struct {
	publishers    int
	messages      int64
	rate          float64
	payloadLength int
	maxFragment   int
	fragmentLimit int
	ringCapacity  uint64
	linger        time.Duration
	metricsAddr   string
}

func run(ctx context.Context, config runConfig) (err error) {
	logger := logctx.From(ctx)

	capacity := config.ringCapacity
	if capacity == 0 {
		capacity = defaultRingCapacity(config.payloadLength, config.publishers)
	}

	cond := conductor.New(conductor.Config{LingerTimeout: config.linger})
	multiplexer := cond.Subscribe("mem:demo", 1001)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.NewMultiplexerCollector(multiplexer),
		metrics.NewConductorCollector(cond),
	)

	logger.Info("starting",
		zap.String("clientId", cond.ClientID()),
		zap.Int("publishers", config.publishers),
		zap.Int64("messagesPerPublisher", config.messages),
		zap.Uint64("ringCapacity", capacity))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		cond.Run(groupCtx)
		return nil
	})

	if config.metricsAddr != "" {
		serveMetrics(groupCtx, group, config.metricsAddr, registry)
	}

	// One paced publisher per session
	var ratesMu sync.Mutex
	var achievedRates []float64

	for i := 0; i < config.publishers; i++ {
		sessionID := int32(i + 1)

		namespace := []string{"demo", fmt.Sprintf("session-%d", sessionID)}
		img, imageErr := image.New(namespace,
			sessionID, multiplexer.StreamID(), cond.NextCorrelationID(), capacity)
		if imageErr != nil {
			err = fmt.Errorf("failed creating session image: %w", imageErr)
			return
		}
		cond.AttachSource(multiplexer, img)
		registry.MustRegister(metrics.NewRingCollector(namespace, img.RingMetrics()))

		group.Go(func() error {
			results, publishErr := publish(groupCtx, img, config)
			if publishErr != nil {
				return publishErr
			}

			ratesMu.Lock()
			for _, result := range results {
				achievedRates = append(achievedRates, result.PerSecond)
			}
			ratesMu.Unlock()
			return nil
		})
	}

	// Single consumer draining the multiplexer through an assembler
	expected := int64(config.publishers) * config.messages
	var assembled atomic.Int64

	group.Go(func() error {
		defer cancel() // consumer completion stops the conductor

		assembler := mux.NewAssembler(func([]byte, mux.FragmentHeader) {
			assembled.Add(1)
		})

		for assembled.Load() < expected {
			select {
			case <-groupCtx.Done():
				return nil
			default:
			}

			if multiplexer.Poll(assembler.OnFragment, config.fragmentLimit) == 0 {
				runtime.Gosched()
			}
		}
		return nil
	})

	err = group.Wait()

	// Trim 10% from each end so one stalled publisher does not skew the rate
	rateSummary := calc.SummarizeRates(achievedRates, 0.1)

	logger.Info("finished",
		zap.Int64("assembled", assembled.Load()),
		zap.Uint64("fragments", multiplexer.Metrics.FragmentsRead.Load()),
		zap.Uint64("reclaimed", cond.Metrics.Reclaimed.Load()),
		zap.Float64("meanRatePerSecond", rateSummary.Mean),
		zap.Float64("trimmedMeanRatePerSecond", rateSummary.TrimmedMean))
	return
}

func publish(ctx context.Context, img *image.Image, config runConfig) (results []pacing.Result, err error) {
	var interval pacing.Interval
	if config.rate > 0 {
		interval = pacing.MessagesAtRate{Count: config.messages, PerSecond: config.rate}
	} else {
		interval = pacing.MessagesAtBurst{Count: config.messages}
	}

	controller, err := pacing.New(interval)
	if err != nil {
		return
	}

	payload := make([]byte, config.payloadLength)
	for i := range payload {
		payload[i] = byte(i)
	}

	for {
		proceed, nextErr := controller.Next(ctx)
		if nextErr != nil {
			if ctx.Err() == nil {
				err = nextErr
			}
			return // shutdown is not a failure
		}
		if !proceed {
			break
		}

		offerErr := img.OfferMessage(ctx, payload, config.maxFragment)
		if offerErr != nil {
			if ctx.Err() == nil {
				err = offerErr
			}
			return
		}
	}

	results = controller.Results()
	for _, result := range results {
		logctx.From(ctx).Info("publisher interval complete",
			zap.Int32("sessionId", img.SessionID()),
			zap.Int64("messages", result.Messages),
			zap.Duration("elapsed", result.Elapsed),
			zap.Float64("achievedPerSecond", result.PerSecond))
	}
	return
}

func serveMetrics(ctx context.Context, group *errgroup.Group, addr string, registry *prometheus.Registry) {
	handler := http.NewServeMux()
	handler.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: handler}

	group.Go(func() error {
		serveErr := server.ListenAndServe()
		if serveErr == http.ErrServerClosed {
			return nil
		}
		return serveErr
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})
}

// Sizes the per-session fragment ring from total system memory: cap the
// buffered payload at roughly 1% of memory split across publishers, then
// round down to a power of two within sane bounds.
func defaultRingCapacity(payloadLength, publishers int) (capacity uint64) {
	if payloadLength <= 0 {
		payloadLength = 1
	}
	if publishers <= 0 {
		publishers = 1
	}

	budget := memory.TotalMemory() / 100 / uint64(publishers)
	capacity = budget / uint64(payloadLength)

	// Round down to power of two
	for capacity&(capacity-1) != 0 {
		capacity &= capacity - 1
	}

	const minCapacity, maxCapacity = 1 << 10, 1 << 20
	if capacity < minCapacity {
		capacity = minCapacity
	}
	if capacity > maxCapacity {
		capacity = maxCapacity
	}
	return
}
