package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rewards-engine/generic"
	"github.com/warp/rewards-engine/rewards"
	"github.com/warp/rewards-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func purchase(id string, merchant generic.MerchantID, amount string, day int) generic.Transaction {
	return generic.Transaction{
		ID:        generic.TransactionID(id),
		AccountID: "acct-1",
		Merchant:  merchant,
		Amount:    generic.MustParseDecimal(amount),
		At:        generic.NewTimePoint(2021, time.May, day),
	}
}

func TestStore_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Append(ctx, purchase("T2", "subway", "18.53", 9)))
	require.NoError(t, s.Append(ctx, purchase("T1", "sportcheck", "21.00", 1)))

	txs, err := s.Load(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, txs, 2)

	// Ordered by date
	assert.Equal(t, generic.TransactionID("T1"), txs[0].ID)
	assert.True(t, txs[0].Amount.Equal(generic.MustParseDecimal("21")))
	assert.Equal(t, generic.NewTimePoint(2021, time.May, 1), txs[0].At)
	assert.Equal(t, generic.MerchantID("subway"), txs[1].Merchant)

	exists, err := s.Exists(ctx, "T2")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Exists(ctx, "T9")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Append(ctx, purchase("T1", "subway", "5", 1)))
	err := s.Append(ctx, purchase("T1", "subway", "5", 2))
	assert.ErrorIs(t, err, generic.ErrDuplicateTransaction)
	assert.True(t, generic.IsConflict(err))
}

func TestStore_AppendBatch_Atomic(t *testing.T) {
	// GIVEN: A stored transaction
	// WHEN: A batch repeats its id among new records
	// THEN: Nothing from the batch is written

	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Append(ctx, purchase("T1", "subway", "5", 1)))

	err := s.AppendBatch(ctx, []generic.Transaction{
		purchase("T2", "subway", "5", 2),
		purchase("T1", "subway", "5", 3),
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateTransaction)

	txs, err := s.Load(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	err = s.AppendBatch(ctx, []generic.Transaction{
		purchase("T3", "subway", "5", 2),
		purchase("T3", "subway", "5", 3),
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateTransaction)
}

func TestStore_EmptyIDGetsGenerated(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.AppendBatch(ctx, []generic.Transaction{
		purchase("", "subway", "5", 1),
		purchase("", "subway", "6", 1),
	}))

	txs, err := s.Load(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.NotEmpty(t, txs[0].ID)
	assert.NotEqual(t, txs[0].ID, txs[1].ID)
}

func TestStore_LoadRange_Inclusive(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.AppendBatch(ctx, []generic.Transaction{
		purchase("T1", "subway", "1", 1),
		purchase("T2", "subway", "2", 10),
		purchase("T3", "subway", "3", 20),
		purchase("T4", "subway", "4", 31),
	}))

	txs, err := s.LoadRange(ctx, "acct-1", generic.NewTimePoint(2021, time.May, 10), generic.NewTimePoint(2021, time.May, 20))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, generic.TransactionID("T2"), txs[0].ID)
	assert.Equal(t, generic.TransactionID("T3"), txs[1].ID)
}

func TestStore_WithLedger(t *testing.T) {
	// GIVEN: A ledger backed by SQLite
	// WHEN: Recording purchases for two accounts
	// THEN: Spend is aggregated per account and period

	ctx := context.Background()
	s := newStore(t)
	ledger := generic.NewLedger(s)

	other := purchase("X1", "sportcheck", "500", 3)
	other.AccountID = "acct-2"

	require.NoError(t, ledger.RecordBatch(ctx, []generic.Transaction{
		purchase("T1", "sportcheck", "100", 2),
		purchase("T2", "sportcheck", "50", 20),
		purchase("T3", "tim_hortons", "12.34", 21),
		other,
	}))

	spend, err := ledger.SpendFor(ctx, "acct-1", generic.Period{})
	require.NoError(t, err)
	assert.Equal(t, "150", spend.Get("sportcheck").String())
	assert.Equal(t, "12.34", spend.Get("tim_hortons").String())

	period := generic.Period{Start: generic.NewTimePoint(2021, time.May, 15), End: generic.NewTimePoint(2021, time.May, 31)}
	spend, err = ledger.SpendFor(ctx, "acct-1", period)
	require.NoError(t, err)
	assert.Equal(t, "50", spend.Get("sportcheck").String())

	accounts, err := s.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []generic.AccountID{"acct-1", "acct-2"}, accounts)
}

func TestStore_CatalogRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	missing, err := s.LoadCatalog(ctx, "default")
	require.NoError(t, err)
	assert.Nil(t, missing)

	want := rewards.DefaultCatalog()
	require.NoError(t, s.SaveCatalog(ctx, "default", want))

	got, err := s.LoadCatalog(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, want.IDs(), got.IDs())
	for _, r := range want.Rules() {
		g, err := got.Rule(r.ID)
		require.NoError(t, err)
		assert.True(t, r.Equal(g), "rule %d", r.ID)
		assert.Equal(t, r.Description, g.Description)
	}

	// Saving again replaces the catalog
	small, err := generic.NewCatalog(generic.MustRule(1, 10, generic.Require("subway", 5)))
	require.NoError(t, err)
	require.NoError(t, s.SaveCatalog(ctx, "default", small))

	got, err = s.LoadCatalog(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	assert.Error(t, s.SaveCatalog(ctx, " ", small))
}

func TestStore_Calculations(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	spend, err := generic.NewSpendFromFloats(map[generic.MerchantID]float64{
		"sportcheck": 150, "tim_hortons": 50, "subway": 50,
	})
	require.NoError(t, err)

	calc := rewards.NewCalculator(rewards.DefaultCatalog(), 0)
	ids := rewards.DefaultPriority()
	alloc, err := calc.Calculate(ctx, generic.CalculationRequest{RuleIDs: ids, Spend: spend})
	require.NoError(t, err)

	period := generic.MonthPeriod(2021, time.May)
	first := sqlite.NewCalculationRecord("acct-1", rewards.ProgramStandard, ids, period, alloc)
	first.CreatedAt = time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveCalculation(ctx, &first))
	require.NotEmpty(t, first.ID)

	second := sqlite.NewCalculationRecord("acct-1", "", ids, generic.Period{}, alloc)
	second.CreatedAt = first.CreatedAt.Add(time.Hour)
	require.NoError(t, s.SaveCalculation(ctx, &second))

	got, err := s.GetCalculation(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, generic.AccountID("acct-1"), got.AccountID)
	assert.Equal(t, rewards.ProgramStandard, got.Program)
	assert.Equal(t, generic.StrategyOptimal, got.Strategy)
	assert.Equal(t, ids, got.RuleIDs)
	assert.Equal(t, period, got.Period)
	assert.Equal(t, "150", got.Spend["sportcheck"])
	assert.Equal(t, generic.Points(1000), got.Summary.GrandTotal)
	assert.Equal(t, first.Summary, got.Summary)

	list, err := s.ListCalculations(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.True(t, list[1].Period.Start.Equal(period.Start))

	none, err := s.ListCalculations(ctx, "acct-2")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.GetCalculation(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrCalculationNotFound)
	assert.True(t, generic.IsNotFound(err))
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Append(ctx, purchase("T1", "subway", "5", 1)))
	require.NoError(t, s.Reset(ctx))

	txs, err := s.Load(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, txs)
}
