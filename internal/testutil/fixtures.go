package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/core"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

// ShipmentOption tweaks a fixture shipment before it is saved.
type ShipmentOption func(s *domain.Shipment)

func WithLFD(day time.Time) ShipmentOption {
	return func(s *domain.Shipment) {
		s.LFD = sql.NullTime{Time: day, Valid: true}
	}
}

func WithConsignee(name string) ShipmentOption {
	return func(s *domain.Shipment) {
		s.Consignee = sql.NullString{String: name, Valid: true}
	}
}

// SaveShipment stores an in-progress shipment and returns it with its id.
func SaveShipment(t testing.TB, store core.Store, mawb string, now time.Time, opts ...ShipmentOption) *domain.Shipment {
	t.Helper()
	s := &domain.Shipment{
		MAWBNumber: mawb,
		OriginPort: sql.NullString{String: "PVG", Valid: true},
		DestPort:   sql.NullString{String: "LAX", Valid: true},
		Status:     domain.ShipmentStatusInProgress,
		Progress:   domain.ShipmentProgressNotShipped,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(s)
	}
	_, err := store.Shipments().Save(context.Background(), s)
	require.NoError(t, err)
	return s
}
