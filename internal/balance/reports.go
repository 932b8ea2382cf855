package balance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashbook-erp/cashbook/internal/coa"
	"github.com/cashbook-erp/cashbook/internal/shared"
)

// ReportLine is one account row inside a report section.
type ReportLine struct {
	Account coa.Account
	Amount  decimal.Decimal
}

// ReportSection groups lines under a heading with a subtotal.
type ReportSection struct {
	Title string
	Lines []ReportLine
	Total decimal.Decimal
}

// ProfitAndLoss is the income statement over a date range. Amounts are
// signed range activity only; starting balances never enter a P&L.
type ProfitAndLoss struct {
	Revenue ReportSection
	Cost    ReportSection
	Expense ReportSection
	Gross   decimal.Decimal
	Net     decimal.Decimal
}

// EquityReport is the balance-sheet view as of one day, with the running
// net profit folded into the equity section.
type EquityReport struct {
	Assets      ReportSection
	Liabilities ReportSection
	Equity      ReportSection
	NetProfit   decimal.Decimal
}

// CashflowLine is one cash or bank account's movement over a range.
type CashflowLine struct {
	Account coa.Account
	Opening decimal.Decimal
	Inflow  decimal.Decimal
	Outflow decimal.Decimal
	Closing decimal.Decimal
}

// CashflowReport covers every cash and bank account over a range.
type CashflowReport struct {
	Lines        []CashflowLine
	TotalOpening decimal.Decimal
	TotalInflow  decimal.Decimal
	TotalOutflow decimal.Decimal
	TotalClosing decimal.Decimal
}

// DailyDashboard is the branch overview for one day: cash/bank positions
// plus per-transaction-class totals.
type DailyDashboard struct {
	Balances WarehouseBalances
	Activity map[string]TrxTypeTotal
}

// ProfitAndLoss computes the income statement for [start, end], scoped to
// one warehouse when warehouseID is non-nil. Each line is the account's
// signed activity inside the range.
func (s *Service) ProfitAndLoss(ctx context.Context, warehouseID *int64, start, end time.Time) (ProfitAndLoss, error) {
	sides, err := s.normalSides(ctx)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	revenue, err := s.rangeSection(ctx, "Revenue", s.categories.Revenue, warehouseID, sides, start, end)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	cost, err := s.rangeSection(ctx, "Cost of Goods", s.categories.Cost, warehouseID, sides, start, end)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	expense, err := s.rangeSection(ctx, "Operating Expenses", s.categories.Expense, warehouseID, sides, start, end)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	report := ProfitAndLoss{Revenue: revenue, Cost: cost, Expense: expense}
	report.Gross = revenue.Total.Sub(cost.Total)
	report.Net = report.Gross.Sub(expense.Total)
	return report, nil
}

// Equity computes the balance-sheet sections as of end of the given day.
// Section amounts replay from the epoch and include starting balances;
// the net profit to date is reported inside the equity section.
func (s *Service) Equity(ctx context.Context, warehouseID *int64, date time.Time) (EquityReport, error) {
	sides, err := s.normalSides(ctx)
	if err != nil {
		return EquityReport{}, err
	}
	assets, err := s.balanceSection(ctx, "Assets", s.categories.Assets, warehouseID, sides, date)
	if err != nil {
		return EquityReport{}, err
	}
	liabilities, err := s.balanceSection(ctx, "Liabilities", s.categories.Liabilities, warehouseID, sides, date)
	if err != nil {
		return EquityReport{}, err
	}
	equity, err := s.balanceSection(ctx, "Equity", s.categories.Equity, warehouseID, sides, date)
	if err != nil {
		return EquityReport{}, err
	}
	pnl, err := s.ProfitAndLoss(ctx, warehouseID, shared.LedgerEpoch, date)
	if err != nil {
		return EquityReport{}, err
	}
	equity.Total = equity.Total.Add(pnl.Net)
	return EquityReport{Assets: assets, Liabilities: liabilities, Equity: equity, NetProfit: pnl.Net}, nil
}

// Cashflow reports cash and bank movement over [start, end]: opening as
// of the day before start, raw inflow/outflow inside the range, closing.
func (s *Service) Cashflow(ctx context.Context, warehouseID *int64, start, end time.Time) (CashflowReport, error) {
	accounts, err := s.accounts.AccountsByCategories(ctx, s.categories.CashAndBank(), warehouseID)
	if err != nil {
		return CashflowReport{}, err
	}
	sides, err := s.normalSides(ctx)
	if err != nil {
		return CashflowReport{}, err
	}
	report := CashflowReport{
		TotalOpening: decimal.Zero,
		TotalInflow:  decimal.Zero,
		TotalOutflow: decimal.Zero,
		TotalClosing: decimal.Zero,
	}
	openEnd := shared.EndOfDay(shared.DateOnly(start).AddDate(0, 0, -1))
	for _, account := range accounts {
		side, ok := sides[account.CategoryID]
		if !ok {
			continue
		}
		before, err := s.ledger.ActivityTotals(ctx, account.ID, shared.LedgerEpoch, openEnd)
		if err != nil {
			return CashflowReport{}, err
		}
		opening, err := Ending(side, account.StartingBalance, before)
		if err != nil {
			return CashflowReport{}, err
		}
		inRange, err := s.ledger.ActivityTotals(ctx, account.ID, shared.DateOnly(start), shared.EndOfDay(end))
		if err != nil {
			return CashflowReport{}, err
		}
		closing, err := Ending(side, opening, inRange)
		if err != nil {
			return CashflowReport{}, err
		}
		line := CashflowLine{
			Account: account,
			Opening: opening,
			Inflow:  inRange.Debit,
			Outflow: inRange.Credit,
			Closing: closing,
		}
		report.Lines = append(report.Lines, line)
		report.TotalOpening = report.TotalOpening.Add(line.Opening)
		report.TotalInflow = report.TotalInflow.Add(line.Inflow)
		report.TotalOutflow = report.TotalOutflow.Add(line.Outflow)
		report.TotalClosing = report.TotalClosing.Add(line.Closing)
	}
	return report, nil
}

// Dashboard composes the daily branch overview for one day.
func (s *Service) Dashboard(ctx context.Context, warehouseID *int64, date, asOf time.Time) (DailyDashboard, error) {
	balances, err := s.BalancesForWarehouse(ctx, warehouseID, date, asOf)
	if err != nil {
		return DailyDashboard{}, err
	}
	var wh int64
	if warehouseID != nil {
		wh = *warehouseID
	}
	activity, err := s.ledger.TrxTypeTotals(ctx, wh, shared.DateOnly(date), shared.EndOfDay(date))
	if err != nil {
		return DailyDashboard{}, err
	}
	return DailyDashboard{Balances: balances, Activity: activity}, nil
}

// rangeSection builds a report section from pure in-range activity.
func (s *Service) rangeSection(ctx context.Context, title string, categoryIDs []int64, warehouseID *int64, sides map[int64]coa.NormalSide, start, end time.Time) (ReportSection, error) {
	return s.section(ctx, title, categoryIDs, warehouseID, sides,
		shared.DateOnly(start), shared.EndOfDay(end),
		func(coa.Account) decimal.Decimal { return decimal.Zero })
}

// balanceSection builds a report section from full history including the
// configured starting balance.
func (s *Service) balanceSection(ctx context.Context, title string, categoryIDs []int64, warehouseID *int64, sides map[int64]coa.NormalSide, date time.Time) (ReportSection, error) {
	return s.section(ctx, title, categoryIDs, warehouseID, sides,
		shared.LedgerEpoch, shared.EndOfDay(date),
		func(a coa.Account) decimal.Decimal { return a.StartingBalance })
}

func (s *Service) section(ctx context.Context, title string, categoryIDs []int64, warehouseID *int64, sides map[int64]coa.NormalSide, start, end time.Time, opening func(coa.Account) decimal.Decimal) (ReportSection, error) {
	section := ReportSection{Title: title, Total: decimal.Zero}
	if len(categoryIDs) == 0 {
		return section, nil
	}
	accounts, err := s.accounts.AccountsByCategories(ctx, categoryIDs, warehouseID)
	if err != nil {
		return ReportSection{}, err
	}
	if len(accounts) == 0 {
		return section, nil
	}
	ids := make([]int64, len(accounts))
	for i, account := range accounts {
		ids[i] = account.ID
	}
	totals, err := s.ledger.ActivityTotalsBulk(ctx, ids, start, end)
	if err != nil {
		return ReportSection{}, err
	}
	lines, err := s.applyFormula(accounts, sides, opening, totals)
	if err != nil {
		return ReportSection{}, err
	}
	for _, ab := range lines {
		section.Lines = append(section.Lines, ReportLine{Account: ab.Account, Amount: ab.Balance})
		section.Total = section.Total.Add(ab.Balance)
	}
	return section, nil
}
