package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/artisancrate/billing-engine/pkg/db/dbtest"
	"github.com/artisancrate/billing-engine/pkg/db/models"
)

func TestDirectoryLookup(t *testing.T) {
	conn := dbtest.Open(t)
	phone := "+6281234567890"
	dewi := &models.User{Email: "dewi@example.com", FirstName: "Dewi", LastName: "Lestari", Phone: &phone, IsActive: true}
	budi := &models.User{Email: "budi@example.com", FirstName: "Budi", LastName: "Santoso", IsActive: true}
	require.NoError(t, conn.Create(dewi).Error)
	require.NoError(t, conn.Create(budi).Error)

	dir := NewDirectory(conn)
	customer, err := dir.Lookup(context.Background(), dewi.ID)
	require.NoError(t, err)
	require.Equal(t, "Dewi Lestari", customer.Name)
	require.Equal(t, "dewi@example.com", customer.Email)
	require.Equal(t, phone, customer.Phone)

	customer, err = dir.Lookup(context.Background(), budi.ID)
	require.NoError(t, err)
	require.Empty(t, customer.Phone)

	missing, err := dir.Lookup(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestDirectoryHidesDeactivatedCustomers(t *testing.T) {
	conn := dbtest.Open(t)
	user := &models.User{Email: "gone@example.com", FirstName: "Sari", LastName: "Wulan", IsActive: true}
	require.NoError(t, conn.Create(user).Error)
	require.NoError(t, conn.Model(user).Update("is_active", false).Error)

	customer, err := NewDirectory(conn).Lookup(context.Background(), user.ID)
	require.NoError(t, err)
	require.Nil(t, customer)
}
