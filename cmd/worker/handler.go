package main

import (
	"context"
	"time"

	app "github.com/turtacn/TripMatch/internal/application/clustering"
	"github.com/turtacn/TripMatch/internal/infrastructure/ingest"
	"github.com/turtacn/TripMatch/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// trainingRequestHandler runs one training per TrainingRequested event.
type trainingRequestHandler struct {
	training app.TrainingService
	dataFile string
	dataDir  string
	timeout  time.Duration
	logger   logging.Logger
}

// Handle decodes the envelope and trains. Errors go back to the consumer,
// which retries and finally dead-letters the message.
func (h *trainingRequestHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return err
	}
	if env.EventType != kafka.EventTrainingRequested {
		h.logger.Warn("ignoring unexpected event",
			logging.String("event_type", env.EventType),
			logging.String("event_id", env.EventID))
		return nil
	}

	var req kafka.TrainingRequestedPayload
	if err := env.DecodePayload(&req); err != nil {
		return err
	}
	path, err := ingest.ResolveDataFile(h.dataDir, h.dataFile, req.DataFile)
	if err != nil {
		return err
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	log := h.logger.With(
		logging.String("request_id", req.RequestID),
		logging.String("requested_by", req.RequestedBy),
		logging.String("file", path))
	log.Info("training requested")

	sum, err := h.training.TrainFromFile(ctx, path, app.TrainOptions{Seed: req.Seed, Source: "worker"})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = errors.Wrap(err, errors.ErrCodeTimeout, "training exceeded its time limit")
		}
		log.Error("training request failed", logging.Err(err))
		return err
	}
	log.Info("training request completed",
		logging.String("version", sum.Version),
		logging.Int("groups", sum.GroupCount),
		logging.Int("records", sum.RecordCount))
	return nil
}

//Personal.AI order the ending
