package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/MatweyL/Potok/internal/domain"
	scherrors "github.com/MatweyL/Potok/internal/shared/errors"
	"github.com/MatweyL/Potok/internal/shared/logging"
	"github.com/MatweyL/Potok/internal/store"
)

// ResponseApplier records a worker response in the store.
type ResponseApplier interface {
	ApplyResponse(ctx context.Context, response domain.CommandResponse) error
}

// Ingestor decodes worker responses and applies them. Errors are tagged with
// their recovery kind so the consumer can tell a droppable message from a
// store outage.
type Ingestor struct {
	store  ResponseApplier
	logger logging.Logger
}

// NewIngestor wires the response path.
func NewIngestor(store ResponseApplier) *Ingestor {
	return &Ingestor{store: store, logger: logging.NewComponentLogger("ResponseIngestor")}
}

// Ingest handles one response body.
func (i *Ingestor) Ingest(ctx context.Context, body []byte) error {
	response, err := domain.ParseCommandResponse(body)
	if err != nil {
		return scherrors.ResponseMalformed("decode worker response", err)
	}

	runID := response.Command.TaskRun.ID
	if err := i.store.ApplyResponse(ctx, response); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return scherrors.UnknownReference(fmt.Sprintf("response for unknown run %d", runID), err)
		}
		return err
	}
	i.logger.Debug("run %d -> %s", runID, response.Status)
	return nil
}
