package eventbus

import (
	"context"
	"fmt"

	"github.com/jos-ren/sors-ledger/pkg/logger"
)

// Ingestor runs the validate/parse/classify work for one uploaded file.
// Implemented by the import service; declared here so the bus does not
// depend on it.
type Ingestor interface {
	IngestFile(ctx context.Context, sessionID, fileName string) error
}

type IngestConsumer struct {
	ingestor    Ingestor
	logger      *logger.Logger
	workerCount int
}

func NewIngestConsumer(ingestor Ingestor, log *logger.Logger, workerCount int) *IngestConsumer {
	return &IngestConsumer{
		ingestor:    ingestor,
		logger:      log,
		workerCount: workerCount,
	}
}

func (ic *IngestConsumer) Consume(ctx context.Context, event Event) error {
	payload, ok := event.Payload.(IngestEvent)
	if !ok {
		ic.logger.Error(ctx, "Invalid payload type for ingest event",
			"event_id", event.ID,
		)
		return fmt.Errorf("invalid payload type")
	}

	ctx = logger.WithSessionID(ctx, payload.SessionID)
	ctx = logger.WithFileName(ctx, payload.FileName)

	ic.logger.Debug(ctx, "Ingesting file",
		"event_id", event.ID,
	)

	// IngestFile is idempotent per file, so a retried event after a partial
	// failure cannot double-parse.
	if err := ic.ingestor.IngestFile(ctx, payload.SessionID, payload.FileName); err != nil {
		ic.logger.Error(ctx, "File ingestion failed",
			"event_id", event.ID,
			"error", err,
		)
		return err
	}

	ic.logger.Debug(ctx, "File ingested",
		"event_id", event.ID,
	)

	return nil
}

func (ic *IngestConsumer) GetWorkerCount() int {
	return ic.workerCount
}
