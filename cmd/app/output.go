package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/seedtrace/internal/domain"
)

func printJSON(v any) error {
	b, err := jsonMarshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatMaybeUint(v *uint) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatUint(uint64(*v), 10)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatMaybeTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func printPlants(items []domain.Plant) {
	now := time.Now().UTC()
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Tag,
			item.Strain,
			string(item.Stage),
			item.Location,
			strconv.Itoa(domain.DaysInStage(item, now)),
			strconv.FormatBool(item.Harvested),
		})
	}
	printTable([]string{"ID", "TAG", "STRAIN", "STAGE", "LOCATION", "DAYS_IN_STAGE", "HARVESTED"}, rows)
}

func printPlantDetail(item domain.Plant) {
	now := time.Now().UTC()
	rows := [][2]string{
		{"id", strconv.FormatUint(uint64(item.ID), 10)},
		{"tag", item.Tag},
		{"strain", item.Strain},
		{"stage", string(item.Stage)},
		{"location", item.Location},
		{"harvested", strconv.FormatBool(item.Harvested)},
		{"planted_at", formatTime(item.PlantedAt)},
		{"stage_changed_at", formatMaybeTime(item.StageChangedAt)},
		{"flipped_at", formatMaybeTime(item.FlippedAt)},
		{"harvested_at", formatMaybeTime(item.HarvestedAt)},
		{"dried_at", formatMaybeTime(item.DriedAt)},
		{"days_in_stage", strconv.Itoa(domain.DaysInStage(item, now))},
	}
	if remaining, ok := domain.EstimatedDaysToFlip(item, now); ok {
		rows = append(rows, [2]string{"est_days_to_flip", strconv.Itoa(remaining)})
	}
	printKV(rows)
}

func printPlantEvent(item plantEventResult) {
	printPlantDetail(item.Plant)
	printKV([][2]string{{"event_hash", item.EventHash}})
}

func printHarvests(items []domain.Harvest) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			strconv.FormatUint(uint64(item.PlantID), 10),
			strconv.FormatFloat(item.YieldGrams, 'f', 2, 64),
			item.Status,
			formatTime(item.HarvestedAt),
		})
	}
	printTable([]string{"ID", "PLANT_ID", "YIELD_GRAMS", "STATUS", "HARVESTED_AT"}, rows)
}

func printHarvestEvent(item harvestEventResult) {
	printKV([][2]string{
		{"id", strconv.FormatUint(uint64(item.Harvest.ID), 10)},
		{"plant_id", strconv.FormatUint(uint64(item.Harvest.PlantID), 10)},
		{"yield_grams", strconv.FormatFloat(item.Harvest.YieldGrams, 'f', 2, 64)},
		{"status", item.Harvest.Status},
		{"harvested_at", formatTime(item.Harvest.HarvestedAt)},
		{"event_hash", item.EventHash},
	})
}

func printInventoryItems(items []domain.InventoryItem) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Name,
			item.Category,
			strconv.Itoa(item.Quantity),
			item.Unit,
		})
	}
	printTable([]string{"ID", "NAME", "CATEGORY", "QUANTITY", "UNIT"}, rows)
}

func printOccupancy(items []domain.RoomOccupancy) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		parts := make([]string, 0, len(item.Stages))
		for _, stage := range domain.Stages() {
			if n := item.Stages[stage]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s=%d", stage, n))
			}
		}
		rows = append(rows, []string{
			item.Room,
			strconv.Itoa(item.Plants),
			strings.Join(parts, " "),
		})
	}
	printTable([]string{"ROOM", "PLANTS", "STAGES"}, rows)
}

func printDeletionLog(item domain.DeletionLog) {
	printKV([][2]string{
		{"plant_id", strconv.FormatUint(uint64(item.PlantID), 10)},
		{"strain", item.Strain},
		{"stage", string(item.Stage)},
		{"location", item.Location},
		{"reason", item.Reason},
		{"deleted_by", item.DeletedBy},
		{"deleted_at", formatTime(item.DeletedAt)},
	})
}

func printUsers(items []domain.User) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Email,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "EMAIL", "CREATED_AT"}, rows)
}

func printRoles(items []domain.Role) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Key,
			item.Name,
		})
	}
	printTable([]string{"ID", "KEY", "NAME"}, rows)
}

func printAuditRecords(items []domain.AuditRecord) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Action,
			item.TargetType,
			formatMaybeUint(item.TargetID),
			item.ActorUserEmail,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "ACTION", "TARGET_TYPE", "TARGET_ID", "ACTOR", "AT"}, rows)
}
