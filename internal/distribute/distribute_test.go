package distribute

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/clincost/internal/ledger"
	"github.com/gyeh/clincost/internal/model"
)

func acct(dept, ct string) model.AccountKey {
	return model.AccountKey{Department: dept, CostType: ct}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func event(code string, episode int64, w float64) model.Event {
	return model.Event{
		EventID:          model.EventID{EventCode: code, AttributeCode: "A", Service: model.ServiceInpatient, EpisodeNo: episode, Seq: 1},
		DistributionCode: code,
		Weight:           w,
	}
}

func sum(costs []model.EventCost) decimal.Decimal {
	total := decimal.Zero
	for _, c := range costs {
		total = total.Add(c.Cost)
	}
	return total
}

func TestRun_ConservesFullyDistributedAccount(t *testing.T) {
	l := ledger.New([]model.Account{{AccountKey: acct("WARD", "nursing"), Cost: dec("1000.00")}})
	evs := []model.Event{
		event("BDAY", 1, 1), event("BDAY", 2, 1), event("BDAY", 3, 1),
		event("ADM", 1, 2), event("ADM", 2, 5),
	}
	cfg := &Config{
		Rules: []model.DistributionRule{
			{Account: acct("WARD", "nursing"), DistributionCode: "BDAY", Fraction: 0.7},
			{Account: acct("WARD", "nursing"), DistributionCode: "ADM", Fraction: 0.3},
		},
		Remainder: model.RemainderRetain,
	}

	res, err := New(zerolog.Nop()).Run(l, evs, cfg)
	require.NoError(t, err)

	require.Len(t, res.EventCosts, 5)
	assert.True(t, sum(res.EventCosts).Equal(dec("1000")), "distributed %s", sum(res.EventCosts))
	assert.True(t, sum(res.EventCosts[:3]).Equal(dec("700")))
	assert.True(t, res.EventCosts[0].Cost.Equal(dec("233.3333333333")))
	assert.True(t, res.EventCosts[2].Cost.Equal(dec("233.3333333334")))
	assert.True(t, res.EventCosts[3].Cost.Equal(dec("85.7142857143")))
	bal, _ := res.Ledger.Balance(acct("WARD", "nursing"))
	assert.True(t, bal.IsZero())
	assert.Empty(t, res.Undistributed)
}

func partialConfig(policy model.RemainderPolicy) *Config {
	return &Config{
		Rules: []model.DistributionRule{
			{Account: acct("ICU", "drugs"), DistributionCode: "ICUDAY", Fraction: 0.6},
			{Account: acct("ICU", "drugs"), DistributionCode: "NOEVENTS", Fraction: 0.2},
		},
		Remainder: policy,
	}
}

func TestRun_RetainKeepsUndistributed(t *testing.T) {
	l := ledger.New([]model.Account{
		{AccountKey: acct("ICU", "drugs"), Cost: dec("500")},
		{AccountKey: acct("ICU", "phone"), Cost: dec("0.05")},
	})
	res, err := New(zerolog.Nop()).Run(l, []model.Event{event("ICUDAY", 1, 3)}, partialConfig(model.RemainderRetain))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Warnings)
	assert.True(t, sum(res.EventCosts).Equal(dec("300")))
	require.Len(t, res.Undistributed, 1, "balances under the threshold are not reported")
	assert.Equal(t, acct("ICU", "drugs"), res.Undistributed[0].AccountKey)
	assert.True(t, res.Undistributed[0].Cost.Equal(dec("200")))
	assert.True(t, l.Total().Equal(res.Distributed.Add(res.Ledger.Total())))
}

func TestRun_AbsorbZeroesAccount(t *testing.T) {
	l := ledger.New([]model.Account{{AccountKey: acct("ICU", "drugs"), Cost: dec("500")}})
	res, err := New(zerolog.Nop()).Run(l, []model.Event{event("ICUDAY", 1, 3)}, partialConfig(model.RemainderAbsorb))
	require.NoError(t, err)

	assert.True(t, sum(res.EventCosts).Equal(dec("300")))
	assert.Empty(t, res.Undistributed)
	bal, _ := res.Ledger.Balance(acct("ICU", "drugs"))
	assert.True(t, bal.IsZero())
}

func TestRun_MissingAccountAndZeroWeightWarn(t *testing.T) {
	l := ledger.New([]model.Account{{AccountKey: acct("THEATRE", "salary"), Cost: dec("90")}})
	cfg := &Config{
		Rules: []model.DistributionRule{
			{Account: acct("GONE", "salary"), DistributionCode: "X", Fraction: 1},
			{Account: acct("THEATRE", "salary"), DistributionCode: "TMIN", Fraction: 1},
		},
	}
	res, err := New(zerolog.Nop()).Run(l, []model.Event{event("TMIN", 1, 0), event("TMIN", 2, 0)}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Warnings)
	assert.Empty(t, res.EventCosts)
	require.Len(t, res.Undistributed, 1)
	assert.True(t, res.Undistributed[0].Cost.Equal(dec("90")))
}

func TestRun_CostBasedFeederLines(t *testing.T) {
	l := ledger.New([]model.Account{
		{AccountKey: acct("PHARMACY", "drugs"), Cost: dec("75")},
		{AccountKey: acct("WARD", "nursing"), Cost: dec("10")},
	})
	cfg := &Config{
		Feeders: map[string]model.Feeder{
			"PHARM": {Code: "PHARM", TypeCode: model.CostBasedFeeder},
			"PATH":  {Code: "PATH", TypeCode: "A"},
		},
		FeederAccounts: []model.FeederAccount{{Feeder: "PHARM", To: acct("PHARMACY", "drugs")}},
		FeederLines: []model.ItemizedCost{
			{Feeder: "PHARM", Service: model.ServiceInpatient, EpisodeNo: 9, InvoiceNo: "I1", InvoiceLineNo: 1,
				Account: acct("ICU", "drugs"), Amount: dec("50")},
			{Feeder: "PHARM", Service: model.ServiceInpatient, EpisodeNo: 9, InvoiceNo: "I1", InvoiceLineNo: 2,
				Account: acct("ICU", "drugs"), Amount: dec("25")},
			{Feeder: "PATH", Service: model.ServiceInpatient, EpisodeNo: 9, InvoiceNo: "P1", InvoiceLineNo: 1,
				Account: acct("PATH", "tests"), Amount: dec("12")},
		},
		Rules: []model.DistributionRule{
			{Account: acct("PHARMACY", "drugs"), DistributionCode: "PHARM", Fraction: 1},
		},
	}
	res, err := New(zerolog.Nop()).Run(l, []model.Event{event("PHARM", 9, 1)}, cfg)
	require.NoError(t, err)

	require.Len(t, res.EventCosts, 2, "zeroed feeder account must not be distributed again")
	assert.Equal(t, "PHARM", res.EventCosts[0].EventCode)
	assert.Equal(t, int64(2), res.EventCosts[1].Seq)
	assert.Equal(t, acct("ICU", "drugs"), res.EventCosts[1].Account)
	assert.True(t, res.Distributed.Equal(dec("75")))
	require.Len(t, res.Undistributed, 1)
	assert.Equal(t, acct("WARD", "nursing"), res.Undistributed[0].AccountKey)
}

func TestRun_UnknownRemainderPolicy(t *testing.T) {
	_, err := New(zerolog.Nop()).Run(ledger.New(nil), nil, &Config{Remainder: "spread"})
	require.Error(t, err)
}
