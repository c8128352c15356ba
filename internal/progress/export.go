package progress

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	masterySheet = "Mastery"
	summarySheet = "Summary"
)

var masteryHeader = []any{"Domain", "Character", "Correct", "Wrong", "Accuracy", "Last Seen"}

// ExportXLSX writes a learner's totals, unlocks and per-character mastery
// to w as an Excel workbook.
func ExportXLSX(ctx context.Context, w io.Writer, store Store, learnerID string) error {
	totals, err := store.Totals(ctx, learnerID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("read totals: %w", err)
	}
	mastery, err := store.Mastery(ctx, learnerID, "")
	if err != nil {
		return fmt.Errorf("read mastery: %w", err)
	}
	unlocks, err := store.Unlocks(ctx, learnerID)
	if err != nil {
		return fmt.Errorf("read unlocks: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(masterySheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	percent, err := f.NewStyle(&excelize.Style{NumFmt: 10})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	summary := [][]any{
		{"Learner", learnerID},
		{"Correct", totals.Correct},
		{"Wrong", totals.Wrong},
		{"Sessions", totals.Sessions},
		{"Best Streak", totals.BestStreak},
	}
	for _, u := range unlocks {
		summary = append(summary, []any{"Achievement", u.AchievementID, u.UnlockedAt})
	}
	for i, row := range summary {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}

	if err := setRow(f, masterySheet, 1, masteryHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(masterySheet, "A1", "F1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for i, m := range mastery {
		row := []any{string(m.Domain), m.Character, m.Correct, m.Wrong, m.Accuracy(), m.LastSeen}
		if err := setRow(f, masterySheet, i+2, row); err != nil {
			return err
		}
	}
	if len(mastery) > 0 {
		if err := f.SetCellStyle(masterySheet, "E2", fmt.Sprintf("E%d", len(mastery)+1), percent); err != nil {
			return fmt.Errorf("style accuracy: %w", err)
		}
	}
	if err := f.SetPanes(masterySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
