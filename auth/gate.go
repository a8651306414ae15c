package auth

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
)

// Gate authenticates a connection attempt exactly once, at handshake,
// before the connection is admitted to a room. The verifier may be
// remote, so the wait is bounded.
type Gate struct {
	verifier contract.TokenVerifier
	timeout  time.Duration
	log      *slog.Logger
}

func NewGate(verifier contract.TokenVerifier, timeout time.Duration, log *slog.Logger) *Gate {
	return &Gate{verifier: verifier, timeout: timeout, log: log}
}

type verdict struct {
	identity domain.Identity
	err      error
}

func (g *Gate) Authenticate(ctx context.Context, rawToken string) (domain.Identity, error) {
	if rawToken == "" {
		return domain.Identity{}, errors.ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result := make(chan verdict, 1)
	go func() {
		identity, err := g.verifier.Verify(rawToken)
		result <- verdict{identity: identity, err: err}
	}()

	select {
	case <-ctx.Done():
		g.log.Warn("handshake authentication timed out")
		return domain.Identity{}, errors.ErrUnauthenticated
	case v := <-result:
		if v.err != nil {
			return domain.Identity{}, v.err
		}
		return v.identity, nil
	}
}
