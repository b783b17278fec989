package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProviderLinks stores which external providers are attached to a user.
type ProviderLinks interface {
	Link(ctx context.Context, userID uuid.UUID, provider OAuthProvider) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*OAuthProviderLink, error)
	Unlink(ctx context.Context, userID uuid.UUID, provider OAuthProvider) error
}

type providerLinks struct {
	db     *bun.DB
	logger Logger
}

var _ ProviderLinks = (*providerLinks)(nil)

func NewProviderLinksRepository(db *bun.DB) ProviderLinks {
	return &providerLinks{
		db:     db,
		logger: defLogger{},
	}
}

// Link is idempotent: re-linking an already attached provider is a no-op.
func (r *providerLinks) Link(ctx context.Context, userID uuid.UUID, provider OAuthProvider) error {
	link := &OAuthProviderLink{
		UserID:   userID,
		Provider: provider,
	}
	_, err := r.db.NewInsert().
		Model(link).
		On("CONFLICT (user_id, provider) DO NOTHING").
		Exec(ctx)
	return err
}

func (r *providerLinks) ListByUser(ctx context.Context, userID uuid.UUID) ([]*OAuthProviderLink, error) {
	var links []*OAuthProviderLink
	err := r.db.NewSelect().
		Model(&links).
		Where("?TableAlias.user_id = ?", userID.String()).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *providerLinks) Unlink(ctx context.Context, userID uuid.UUID, provider OAuthProvider) error {
	_, err := r.db.NewDelete().
		Model((*OAuthProviderLink)(nil)).
		Where("?TableAlias.user_id = ?", userID.String()).
		Where("?TableAlias.provider = ?", provider.String()).
		Exec(ctx)
	return err
}
