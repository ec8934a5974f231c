package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// #region report

// WriteReport exports a run's episode history as a spreadsheet with an
// Episodes sheet and an aggregate Summary sheet. Parent directories are
// created as needed.
func (l *Log) WriteReport(runID, path string) error {
	episodes, err := l.Episodes(runID)
	if err != nil {
		return err
	}
	if len(episodes) == 0 {
		return fmt.Errorf("run %s has no episodes to report", runID)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	episodeSheet, summarySheet := "Episodes", "Summary"
	if _, err := f.NewSheet(episodeSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	headers := []interface{}{"Episode", "Ticks", "Total Reward", "Outcome", "Epsilon", "Q-Table Size"}
	if err := f.SetSheetRow(episodeSheet, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var (
		goals      int
		collisions int
		timeouts   int
		rewardSum  float64
		tickSum    int
	)
	for i, ep := range episodes {
		row := []interface{}{ep.Episode, ep.Ticks, ep.TotalReward, ep.Outcome, ep.Epsilon, ep.TableSize}
		if err := f.SetSheetRow(episodeSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("write episode %d: %w", ep.Episode, err)
		}
		rewardSum += ep.TotalReward
		tickSum += ep.Ticks
		switch ep.Outcome {
		case OutcomeGoal:
			goals++
		case OutcomeCollision:
			collisions++
		default:
			timeouts++
		}
	}

	n := float64(len(episodes))
	summaryRows := [][]interface{}{
		{"Run", runID},
		{"Episodes", len(episodes)},
		{"Goal rate", float64(goals) / n},
		{"Collision rate", float64(collisions) / n},
		{"Timeout rate", float64(timeouts) / n},
		{"Mean reward", rewardSum / n},
		{"Mean ticks", float64(tickSum) / n},
		{"Final Q-table size", episodes[len(episodes)-1].TableSize},
	}
	for i, row := range summaryRows {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// #endregion report
