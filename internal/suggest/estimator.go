package suggest

import (
	"context"
	"errors"

	"github.com/zakupnik/suggestd/internal/catalog"
	apperr "github.com/zakupnik/suggestd/internal/errors"
	"github.com/zakupnik/suggestd/internal/history"
)

// FallbackUnit is the unit reported when neither history nor catalog
// knows anything about a product: "szt" (sztuka, piece).
const FallbackUnit = "szt"

// Estimate is the predicted quantity and unit for one product in one
// profile. BasedOnHistory tells the client whether the numbers come from
// the profile's purchases or are placeholders.
type Estimate struct {
	ProductName    string  `json:"productName"`
	Quantity       float64 `json:"suggestedQuantity"`
	Unit           string  `json:"unit"`
	BasedOnHistory bool    `json:"basedOnHistory"`
	TimesBought    int64   `json:"timesBought"`
	MinQuantity    float64 `json:"minQuantity,omitempty"`
	MaxQuantity    float64 `json:"maxQuantity,omitempty"`
}

// Estimator predicts purchase quantities from history, with the catalog's
// default unit as second choice.
type Estimator struct {
	history *history.Store
	catalog *catalog.Store
}

// NewEstimator builds a quantity estimator over the two stores.
func NewEstimator(hist *history.Store, cat *catalog.Store) *Estimator {
	return &Estimator{history: hist, catalog: cat}
}

// Estimate predicts how much of a product the profile will buy. With
// history the estimate is the profile's average quantity and modal unit;
// without it, quantity 1 with the catalog's default unit; for a product
// unknown everywhere, quantity 1 of FallbackUnit. A failing history store
// is a hard error, never silently downgraded to a placeholder.
func (e *Estimator) Estimate(ctx context.Context, profileID, productName string) (Estimate, error) {
	name := catalog.Normalize(productName)
	if name == "" {
		return Estimate{}, apperr.New(apperr.ErrCodeNameRequired, "product name is required", nil)
	}

	agg, err := e.history.AggregateByName(ctx, profileID, name)
	if err != nil {
		return Estimate{}, err
	}
	if agg.TimesBought > 0 {
		unit := agg.ModalUnit
		if unit == "" {
			unit = FallbackUnit
		}
		return Estimate{
			ProductName:    name,
			Quantity:       agg.AvgQuantity,
			Unit:           unit,
			BasedOnHistory: true,
			TimesBought:    agg.TimesBought,
			MinQuantity:    agg.MinQuantity,
			MaxQuantity:    agg.MaxQuantity,
		}, nil
	}

	est := Estimate{ProductName: name, Quantity: 1, Unit: FallbackUnit}

	product, err := e.catalog.FindByName(ctx, name)
	switch {
	case err == nil:
		if product.DefaultUnit != "" {
			est.Unit = product.DefaultUnit
		}
	case isNotFound(err):
		// Unknown product: keep the placeholder.
	default:
		return Estimate{}, err
	}
	return est, nil
}

func isNotFound(err error) bool {
	var serviceErr *apperr.ServiceError
	return errors.As(err, &serviceErr) && serviceErr.Code == apperr.ErrCodeProductNotFound
}
