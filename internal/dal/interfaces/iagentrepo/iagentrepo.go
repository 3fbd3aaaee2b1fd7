package iagentrepo

import (
	"context"

	"github.com/localmart/order/internal/service/models/agent"
)

// IAgentRepository is an interface for delivery agent postgres repository.
type IAgentRepository interface {
	// SelectAvailable picks the least recently assigned available agent,
	// or returns agent.ErrNoAgentAvailable.
	SelectAvailable(ctx context.Context) (*agent.Agent, error)

	MarkAssigned(ctx context.Context, id int64) error
}
