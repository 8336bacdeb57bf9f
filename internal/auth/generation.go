package auth

import (
	"context"
	"sync"

	"stockwatch/internal/kvstore"
)

// Generations tracks the current token generation. Tokens signed for an
// older generation are rejected, so bumping it revokes every issued token.
type Generations struct {
	store kvstore.Store
	mu    sync.Mutex
}

func NewGenerations(store kvstore.Store) *Generations {
	return &Generations{store: store}
}

func (g *Generations) Current(ctx context.Context) (int, error) {
	var gen int
	if _, err := g.store.Get(ctx, kvstore.KeyTokenGeneration, &gen); err != nil {
		return 0, err
	}
	return gen, nil
}

func (g *Generations) Bump(ctx context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	gen, err := g.Current(ctx)
	if err != nil {
		return 0, err
	}
	gen++
	if err := g.store.Put(ctx, kvstore.KeyTokenGeneration, gen); err != nil {
		return 0, err
	}
	return gen, nil
}

// Check returns ErrStaleToken when claims predate the current generation.
func (g *Generations) Check(ctx context.Context, claims *Claims) error {
	current, err := g.Current(ctx)
	if err != nil {
		return err
	}
	if claims.Generation != current {
		return ErrStaleToken
	}
	return nil
}
