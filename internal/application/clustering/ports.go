// Package clustering provides the application services behind the HTTP API,
// the CLI and the training worker: training a model from preference records
// and assigning new preference vectors to the published model's groups.
package clustering

import (
	"context"

	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/infrastructure/ingest"
	"github.com/turtacn/TripMatch/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TripMatch/internal/intelligence/common"
)

// Collaborators below are optional unless stated otherwise. A nil collaborator
// disables the corresponding step, which is how the offline CLI runs without
// a database, cache or broker.

// ArtifactStore persists trained models. Stage writes a version without
// making it the one a restart restores; Promote does that.
type ArtifactStore interface {
	Stage(ctx context.Context, m *common.Model, members []cluster.Member) error
	Promote(ctx context.Context, version string) error
}

// EventPublisher emits domain events.
type EventPublisher interface {
	Publish(ctx context.Context, msg *kafka.ProducerMessage) error
}

// TrainingLock serializes training across processes.
type TrainingLock interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// TableLoader reads a preference table from a file.
type TableLoader interface {
	LoadFile(path string) (*ingest.Table, error)
}

// eventSource is the Source field of every envelope this package emits.
const eventSource = "tripmatch"

func publishEvent(ctx context.Context, pub EventPublisher, topic, key, eventType string, payload interface{}) error {
	if pub == nil {
		return nil
	}
	env, err := kafka.NewEventEnvelope(eventType, eventSource, payload)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(topic, key)
	if err != nil {
		return err
	}
	return pub.Publish(ctx, msg)
}

//Personal.AI order the ending
