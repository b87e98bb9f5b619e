package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/nomnomlab/nomnom-core/internal/bridge"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/logging"
)

// archiveWriteTimeout bounds one archive insert. Listeners run off the
// routing path, but a hung database should not pile up goroutines.
const archiveWriteTimeout = 5 * time.Second

// Archiver persists every routed telemetry message to the archive.
type Archiver struct {
	repo   Repository
	logger *logging.Logger
}

// NewArchiver creates an archiver backed by the given repository.
func NewArchiver(repo Repository, logger *logging.Logger) *Archiver {
	return &Archiver{
		repo:   repo,
		logger: logger.With("component", "archiver"),
	}
}

// Listener returns the bridge listener that archives messages.
// Register it with bridge.Register.
func (a *Archiver) Listener() bridge.Listener {
	return func(msg bridge.Message) error {
		ctx, cancel := context.WithTimeout(context.Background(), archiveWriteTimeout)
		defer cancel()

		event := &Event{
			Channel:    string(msg.Channel),
			Topic:      msg.Topic,
			Payload:    msg.Raw,
			ReceivedAt: msg.ReceivedAt,
		}
		if err := a.repo.SaveEvent(ctx, event); err != nil {
			return fmt.Errorf("archiving %s message: %w", msg.Channel, err)
		}
		return nil
	}
}
