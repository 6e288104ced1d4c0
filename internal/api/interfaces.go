package api

import (
	"context"

	"sparkboard/internal/models"
)

/*
LEARNING: CONSUMER-DRIVEN INTERFACES (Go Idiom)

This package is the CONSUMER of the session hub, so the interface lives HERE.
The handlers only declare the methods they call. Tests pass a small fake
instead of spinning up the hub loop.
*/

// SessionService is what the HTTP handlers need from the collaboration hub.
type SessionService interface {
	CreateSession(ctx context.Context) (string, error)
	SessionInfo(ctx context.Context, id string) (models.SessionInfo, error)
	ReplaceElements(ctx context.Context, id string, elements models.Elements) error
	SessionCount(ctx context.Context) (int, error)
}
