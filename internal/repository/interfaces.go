package repository

import (
	"context"

	"github.com/lalith-99/areachat/internal/models"
)

// Every method takes a context: these are I/O calls and must honor the
// caller's deadline. CompanyID scopes every query: a participant can
// never read another company's stream, even with a guessed id.

// ChatRepository persists and retrieves chat messages. Histories are
// returned chronological ascending, the order timelines are seeded in.
type ChatRepository interface {
	// CreateGroupMessage persists a company-channel message and returns
	// it with ID and CreatedAt populated.
	CreateGroupMessage(ctx context.Context, companyID models.ID, sender models.Participant, body string) (*models.Message, error)

	// CreatePrivateMessage persists a one-to-one message.
	CreatePrivateMessage(ctx context.Context, companyID models.ID, sender models.Participant, recipient models.ID, body string) (*models.Message, error)

	// GroupHistory returns the company channel backlog, oldest first.
	// Empty slice (not nil) when there is none, so JSON stays [].
	GroupHistory(ctx context.Context, companyID models.ID) ([]models.Message, error)

	// PrivateHistory returns the backlog between a and b in either
	// direction, oldest first.
	PrivateHistory(ctx context.Context, companyID, a, b models.ID) ([]models.Message, error)
}

// UserRepository reads company members for login and fan-out decisions.
type UserRepository interface {
	// GetByEmail returns nil, nil when no user has that email.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns nil, nil when the id is unknown.
	GetByID(ctx context.Context, id models.ID) (*models.User, error)
}
