package main

import (
	"context"
	"fmt"
	"math/big"

	"wacgbridge/core/events"
	"wacgbridge/native/bridge"
	"wacgbridge/storage/archive"
)

type ledgerSource interface {
	Stats() (bridge.Stats, error)
	Audit() (bridge.AuditReport, error)
}

type auditReport struct {
	TotalSupply          string          `json:"totalSupply"`
	TotalWrappedIn       string          `json:"totalWrappedIn"`
	TotalUnwrappedOut    string          `json:"totalUnwrappedOut"`
	TotalEmergencyMinted string          `json:"totalEmergencyMinted"`
	TotalAdminBurned     string          `json:"totalAdminBurned"`
	BalanceSum           string          `json:"balanceSum"`
	Holders              int             `json:"holders"`
	Paused               bool            `json:"paused"`
	Balanced             bool            `json:"balanced"`
	Archive              *archiveSummary `json:"archive,omitempty"`
}

type archiveSummary struct {
	Events        int64  `json:"events"`
	Mints         int64  `json:"mints"`
	Burns         int64  `json:"burns"`
	AdminBurns    int64  `json:"adminBurns"`
	SupplyChanges int64  `json:"supplyChanges"`
	ReplayedTotal string `json:"replayedTotal"`
	Matches       bool   `json:"matchesLedger"`
}

// buildReport reconciles the ledger and, when an archive is supplied, replays
// the archived supply deltas against the recorded total supply.
func buildReport(ctx context.Context, ledger ledgerSource, arc *archive.Archive) (auditReport, error) {
	stats, err := ledger.Stats()
	if err != nil {
		return auditReport{}, fmt.Errorf("read stats: %w", err)
	}
	audit, err := ledger.Audit()
	if err != nil {
		return auditReport{}, fmt.Errorf("audit ledger: %w", err)
	}
	report := auditReport{
		TotalSupply:          stats.TotalSupply.String(),
		TotalWrappedIn:       stats.TotalWrappedIn.String(),
		TotalUnwrappedOut:    stats.TotalUnwrappedOut.String(),
		TotalEmergencyMinted: stats.TotalEmergencyMinted.String(),
		TotalAdminBurned:     stats.TotalAdminBurned.String(),
		BalanceSum:           audit.BalanceSum.String(),
		Holders:              audit.Holders,
		Paused:               stats.Paused,
		Balanced:             audit.Balanced(),
	}
	if arc == nil {
		return report, nil
	}
	summary, err := summariseArchive(ctx, arc)
	if err != nil {
		return auditReport{}, err
	}
	summary.Matches = summary.ReplayedTotal == report.TotalSupply
	report.Archive = &summary
	return report, nil
}

func summariseArchive(ctx context.Context, arc *archive.Archive) (archiveSummary, error) {
	var summary archiveSummary
	var err error
	counts := []struct {
		eventType string
		dst       *int64
	}{
		{"", &summary.Events},
		{events.TypeBridgeMinted, &summary.Mints},
		{events.TypeBridgeBurned, &summary.Burns},
		{events.TypeBridgeAdminBurned, &summary.AdminBurns},
	}
	for _, c := range counts {
		if *c.dst, err = arc.Count(ctx, c.eventType); err != nil {
			return archiveSummary{}, err
		}
	}

	total := new(big.Int)
	var after uint64
	for {
		page, err := arc.List(ctx, after, 500)
		if err != nil {
			return archiveSummary{}, err
		}
		if len(page) == 0 {
			break
		}
		for _, rec := range page {
			after = rec.Sequence
			attrs, err := rec.Decode()
			if err != nil {
				return archiveSummary{}, fmt.Errorf("event %d: %w", rec.Sequence, err)
			}
			raw, ok := attrs["supplyDelta"]
			if !ok {
				continue
			}
			delta, ok := new(big.Int).SetString(raw, 10)
			if !ok {
				return archiveSummary{}, fmt.Errorf("event %d: invalid supply delta %q", rec.Sequence, raw)
			}
			total.Add(total, delta)
			summary.SupplyChanges++
		}
	}
	summary.ReplayedTotal = total.String()
	return summary, nil
}
