// Control-plane coordinator for subscription multiplexers. Owns
// registration, the main lock, availability callbacks and deferred
// resource reclamation.
package conductor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"streammux/internal/logctx"
	"streammux/pkg/mux"
)

const (
	DefaultLingerTimeout   = 1 * time.Second
	DefaultReclaimInterval = 100 * time.Millisecond
)

var _ mux.Coordinator = (*Conductor)(nil)

// Conductor constructor
func New(config Config) (new *Conductor) {
	if config.LingerTimeout <= 0 {
		config.LingerTimeout = DefaultLingerTimeout
	}
	if config.ReclaimInterval <= 0 {
		config.ReclaimInterval = DefaultReclaimInterval
	}

	new = &Conductor{
		clientID:        uuid.New(),
		lingerTimeout:   config.LingerTimeout,
		reclaimInterval: config.ReclaimInterval,
		onUnavailable:   config.OnSourceUnavailable,
		active:          make(map[int64]*mux.Multiplexer),
		Metrics:         &MetricStorage{},
	}
	return
}

// Stable identity of this client instance
func (conductor *Conductor) ClientID() (clientID string) {
	clientID = conductor.clientID.String()
	return
}

// Process-wide lock serializing structural mutation. Exposed so multiplexer
// close can hold it across its whole teardown.
func (conductor *Conductor) MainLock() (lock *sync.Mutex) {
	lock = &conductor.mainLock
	return
}

// Registers a new multiplexer for a channel and stream id pairing
func (conductor *Conductor) Subscribe(channel string, streamID int32) (multiplexer *mux.Multiplexer) {
	registrationID := conductor.nextRegistrationID.Add(1)
	multiplexer = mux.NewMultiplexer(conductor, channel, streamID, registrationID)

	conductor.activeMu.Lock()
	conductor.active[registrationID] = multiplexer
	conductor.activeMu.Unlock()

	conductor.Metrics.Subscriptions.Add(1)
	return
}

// Hands out the registration-time identity for a new source
func (conductor *Conductor) NextCorrelationID() (correlationID int64) {
	correlationID = conductor.nextCorrelationID.Add(1)
	return
}

// Attaches a source to a multiplexer under the main lock, serializing the
// add against a concurrent close
func (conductor *Conductor) AttachSource(multiplexer *mux.Multiplexer, source mux.Source) {
	conductor.mainLock.Lock()
	defer conductor.mainLock.Unlock()
	multiplexer.AddSource(source)
}

// Detaches a source by correlation id under the main lock
func (conductor *Conductor) DetachSource(multiplexer *mux.Multiplexer, correlationID int64) (removed mux.Source) {
	conductor.mainLock.Lock()
	defer conductor.mainLock.Unlock()
	removed = multiplexer.RemoveSource(correlationID)
	return
}

// Called by a closing multiplexer while it holds the main lock, so this must
// never reacquire it
func (conductor *Conductor) ReleaseMultiplexer(multiplexer *mux.Multiplexer) {
	conductor.activeMu.Lock()
	delete(conductor.active, multiplexer.RegistrationID())
	conductor.activeMu.Unlock()

	conductor.Metrics.Releases.Add(1)
}

// Called by a closing multiplexer for every source still attached
func (conductor *Conductor) NotifySourceUnavailable(source mux.Source) {
	conductor.Metrics.Unavailable.Add(1)
	if conductor.onUnavailable != nil {
		conductor.onUnavailable(source)
	}
}

// Count of multiplexers registered and not yet released
func (conductor *Conductor) ActiveCount() (count int) {
	conductor.activeMu.Lock()
	count = len(conductor.active)
	conductor.activeMu.Unlock()
	return
}

// Drives periodic reclamation until the context is done, then closes every
// remaining multiplexer and disposes everything still lingering
func (conductor *Conductor) Run(ctx context.Context) {
	logger := logctx.From(ctx)
	logger.Info("conductor running",
		zap.String("clientId", conductor.ClientID()),
		zap.Duration("lingerTimeout", conductor.lingerTimeout))

	ticker := time.NewTicker(conductor.reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conductor.Close()
			logger.Info("conductor stopped",
				zap.Uint64("reclaimed", conductor.Metrics.Reclaimed.Load()))
			return
		case now := <-ticker.C:
			disposed := conductor.reclaimExpired(now)
			if disposed > 0 {
				logger.Debug("reclaimed lingering resources", zap.Int("count", disposed))
			}
		}
	}
}

// Closes every registered multiplexer and disposes all lingering resources
// immediately. Safe to call more than once.
func (conductor *Conductor) Close() {
	conductor.activeMu.Lock()
	remaining := make([]*mux.Multiplexer, 0, len(conductor.active))
	for _, multiplexer := range conductor.active {
		remaining = append(remaining, multiplexer)
	}
	conductor.activeMu.Unlock()

	for _, multiplexer := range remaining {
		multiplexer.Close()
	}

	conductor.drainLinger()
}
