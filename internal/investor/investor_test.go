package investor_test

import (
	"strings"
	"testing"

	"github.com/ksred/fundledger/internal/database"
	"github.com/ksred/fundledger/internal/investor"
	"github.com/ksred/fundledger/internal/types"
	"github.com/ksred/fundledger/pkg/money"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *investor.Service {
	t.Helper()

	db, err := database.NewTestDatabase()
	require.NoError(t, err)

	return investor.NewService(db)
}

func TestCreateInvestor(t *testing.T) {
	service := newTestService(t)

	created, err := service.CreateInvestor("Alice", "alice@example.com", "quarterly", money.MustFromString("30"))
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(created.InvestorID, "INV_"))
	require.Equal(t, types.InvestorActive, created.Status)
	require.Equal(t, "QUARTERLY", created.TradingFeeFrequency)
	require.True(t, created.TradingFeePercent.Equal(money.MustFromString("30")))

	fetched, err := service.GetInvestor(created.InvestorID)
	require.NoError(t, err)
	require.Equal(t, "Alice", fetched.Name)
}

func TestCreateInvestorValidation(t *testing.T) {
	service := newTestService(t)

	_, err := service.CreateInvestor("Bob", "bob@example.com", "WEEKLY", money.MustFromString("30"))
	require.Error(t, err)

	_, err = service.CreateInvestor("Bob", "bob@example.com", "MONTHLY", money.MustFromString("-1"))
	require.ErrorIs(t, err, types.ErrInvalidAmount)
}

func TestGetInvestorNotFound(t *testing.T) {
	service := newTestService(t)

	_, err := service.GetInvestor("INV_missing")
	require.ErrorIs(t, err, types.ErrInvestorNotFound)
}

func TestSetStatus(t *testing.T) {
	service := newTestService(t)

	created, err := service.CreateInvestor("Carol", "carol@example.com", "MONTHLY", money.MustFromString("20"))
	require.NoError(t, err)

	updated, err := service.SetStatus(created.InvestorID, types.InvestorInactive)
	require.NoError(t, err)
	require.Equal(t, types.InvestorInactive, updated.Status)

	updated, err = service.SetStatus(created.InvestorID, types.InvestorActive)
	require.NoError(t, err)
	require.Equal(t, types.InvestorActive, updated.Status)

	_, err = service.SetStatus(created.InvestorID, "SUSPENDED")
	require.Error(t, err)
}

func TestSetFeeSettings(t *testing.T) {
	service := newTestService(t)

	created, err := service.CreateInvestor("Dave", "dave@example.com", "MONTHLY", money.MustFromString("30"))
	require.NoError(t, err)

	updated, err := service.SetFeeSettings(created.InvestorID, "ANNUAL", money.MustFromString("17.5"))
	require.NoError(t, err)
	require.Equal(t, "ANNUAL", updated.TradingFeeFrequency)
	require.True(t, updated.TradingFeePercent.Equal(money.MustFromString("17.5")))

	_, err = service.SetFeeSettings(created.InvestorID, "MONTHLY", money.MustFromString("-3"))
	require.ErrorIs(t, err, types.ErrInvalidAmount)
}

func TestListInvestors(t *testing.T) {
	service := newTestService(t)

	_, err := service.CreateInvestor("One", "one@example.com", "MONTHLY", money.MustFromString("30"))
	require.NoError(t, err)
	_, err = service.CreateInvestor("Two", "two@example.com", "ANNUAL", money.MustFromString("25"))
	require.NoError(t, err)

	investors, err := service.ListInvestors()
	require.NoError(t, err)
	require.Len(t, investors, 2)
}
