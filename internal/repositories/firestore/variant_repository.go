package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/lumenmarket/api/internal/domain"
	pfirestore "github.com/lumenmarket/api/internal/platform/firestore"
)

const variantCollection = "variants"

// VariantRepository resolves authoritative catalog prices from the read-only
// variants collection.
type VariantRepository struct {
	base *pfirestore.BaseRepository[variantDocument]
}

// NewVariantRepository constructs a Firestore-backed variant price resolver.
func NewVariantRepository(provider *pfirestore.Provider) (*VariantRepository, error) {
	if provider == nil {
		return nil, errors.New("variant repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[variantDocument](provider, variantCollection, nil)
	return &VariantRepository{base: base}, nil
}

type variantDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	UnitPrice int64  `firestore:"price"`
}

// ResolvePrice returns the catalog price for the variant.
func (r *VariantRepository) ResolvePrice(ctx context.Context, variantID string) (domain.VariantPrice, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(variantID))
	if err != nil {
		return domain.VariantPrice{}, err
	}
	return domain.VariantPrice{
		VariantID: doc.ID,
		ProductID: doc.Data.ProductID,
		Name:      doc.Data.Name,
		UnitPrice: doc.Data.UnitPrice,
	}, nil
}
