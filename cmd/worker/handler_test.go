package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app "github.com/turtacn/TripMatch/internal/application/clustering"
	"github.com/turtacn/TripMatch/internal/infrastructure/ingest"
	"github.com/turtacn/TripMatch/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/pkg/errors"
)

type mockTrainingService struct {
	mock.Mock
}

func (m *mockTrainingService) TrainFromFile(ctx context.Context, path string, opts app.TrainOptions) (*app.TrainingSummary, error) {
	args := m.Called(ctx, path, opts)
	sum, _ := args.Get(0).(*app.TrainingSummary)
	return sum, args.Error(1)
}

func (m *mockTrainingService) TrainFromRecords(ctx context.Context, records []ingest.Record, opts app.TrainOptions) (*app.TrainingSummary, error) {
	args := m.Called(ctx, records, opts)
	sum, _ := args.Get(0).(*app.TrainingSummary)
	return sum, args.Error(1)
}

func eventMessage(t *testing.T, eventType string, payload interface{}) *kafka.Message {
	t.Helper()
	env, err := kafka.NewEventEnvelope(eventType, "test", payload)
	require.NoError(t, err)
	pm, err := env.ToMessage(kafka.TopicTrainingRequested, "k")
	require.NoError(t, err)
	return &kafka.Message{Topic: pm.Topic, Key: pm.Key, Value: pm.Value, Headers: pm.Headers}
}

func newHandler(svc app.TrainingService) *trainingRequestHandler {
	return &trainingRequestHandler{
		training: svc,
		dataFile: "/srv/users.csv",
		dataDir:  "/srv/data",
		logger:   logging.NewNopLogger(),
	}
}

func TestTrainingRequestHandler_DefaultFile(t *testing.T) {
	svc := new(mockTrainingService)
	seed := int64(9)
	svc.On("TrainFromFile", mock.Anything, "/srv/users.csv", app.TrainOptions{Seed: &seed, Source: "worker"}).
		Return(&app.TrainingSummary{Version: "v1", GroupCount: 4}, nil).Once()

	msg := eventMessage(t, kafka.EventTrainingRequested, kafka.TrainingRequestedPayload{RequestID: "r1", Seed: &seed})
	require.NoError(t, newHandler(svc).Handle(context.Background(), msg))
	svc.AssertExpectations(t)
}

func TestTrainingRequestHandler_NamedFileConfined(t *testing.T) {
	svc := new(mockTrainingService)
	want := filepath.Join("/srv/data", "etc", "passwd")
	svc.On("TrainFromFile", mock.Anything, want, mock.Anything).
		Return(&app.TrainingSummary{Version: "v2"}, nil).Once()

	msg := eventMessage(t, kafka.EventTrainingRequested, kafka.TrainingRequestedPayload{RequestID: "r2", DataFile: "../../etc/passwd"})
	require.NoError(t, newHandler(svc).Handle(context.Background(), msg))
	svc.AssertExpectations(t)
}

func TestTrainingRequestHandler_IgnoresOtherEvents(t *testing.T) {
	svc := new(mockTrainingService)
	msg := eventMessage(t, kafka.EventModelTrained, kafka.ModelTrainedPayload{Version: "v1"})
	require.NoError(t, newHandler(svc).Handle(context.Background(), msg))
	svc.AssertNotCalled(t, "TrainFromFile", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrainingRequestHandler_MalformedMessage(t *testing.T) {
	svc := new(mockTrainingService)
	err := newHandler(svc).Handle(context.Background(), &kafka.Message{Topic: kafka.TopicTrainingRequested, Value: []byte("{")})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

func TestTrainingRequestHandler_TrainingErrorReturned(t *testing.T) {
	svc := new(mockTrainingService)
	svc.On("TrainFromFile", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New(errors.ErrCodeTrainingInProgress, "busy")).Once()

	msg := eventMessage(t, kafka.EventTrainingRequested, kafka.TrainingRequestedPayload{RequestID: "r3"})
	err := newHandler(svc).Handle(context.Background(), msg)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTrainingInProgress))
}

//Personal.AI order the ending
