// Package export writes assessment listings as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/entity"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	SheetName = "Avaliacoes"
)

// Columns is the header row. It follows the record layout: identity,
// intake, immunization, nutrition, dental, care plan.
var Columns = []string{
	"id", "created_date", "city", "state", "responsible_professional",
	"patient_name", "child_identified", "guardian_present", "guardian_name",
	"visit_reason", "referral_source", "behavior_note",
	"card_presented", "vaccines_checked", "schedule_complete", "vaccines_overdue",
	"guardian_guided", "referred_to_clinic",
	"weight_kg", "height_m", "bmi", "nutrition_class", "dietary_complaint",
	"nutrition_guided", "nutrition_referred",
	"oral_hygiene_ok", "visible_caries", "pain_reported", "hygiene_guided",
	"dental_referred", "dental_class",
	"enrolled_in_program", "referred_to_clinic_plan", "referred_to_nutrition_plan",
	"referred_to_dental_plan", "referred_to_social_services", "recorded_in_chart",
	"next_assessment_date",
}

// row returns a's values in Columns order.
func row(a *entity.Assessment) []any {
	next := ""
	if a.NextAssessmentDate != nil {
		next = a.NextAssessmentDate.String()
	}
	return []any{
		a.ID, a.CreatedDate.String(), a.City, a.State, a.ResponsibleProfessional,
		a.PatientName, a.ChildIdentified, a.GuardianPresent, a.GuardianName,
		a.VisitReason, a.ReferralSource, a.BehaviorNote,
		a.CardPresented, a.VaccinesChecked, a.ScheduleComplete, a.VaccinesOverdue,
		a.GuardianGuided, a.ReferredToClinic,
		a.WeightKg, a.HeightM, a.BMI, string(a.NutritionClass), a.DietaryComplaint,
		a.NutritionGuided, a.NutritionReferred,
		a.OralHygieneOK, a.VisibleCaries, a.PainReported, a.HygieneGuided,
		a.DentalReferred, string(a.DentalClass),
		a.EnrolledInProgram, a.ReferredToClinicPlan, a.ReferredToNutritionPlan,
		a.ReferredToDentalPlan, a.ReferredToSocialServices, a.RecordedInChart,
		next,
	}
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, items []*entity.Assessment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	rec := make([]string, len(Columns))
	for _, a := range items {
		for i, v := range row(a) {
			rec[i] = text(v)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", a.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the same table as WriteCSV into a single-sheet workbook,
// keeping booleans and numbers typed.
func WriteXLSX(w io.Writer, items []*entity.Assessment) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(Columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, style); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}

	for i, a := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row(a)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", a.ID, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ContentType and FileName describe a download of the given format.
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

func FileName(format string) string {
	if format == FormatXLSX {
		return "avaliacoes_caps.xlsx"
	}
	return "avaliacoes_caps.csv"
}

// Write dispatches on format.
func Write(w io.Writer, format string, items []*entity.Assessment) error {
	switch format {
	case "", FormatCSV:
		return WriteCSV(w, items)
	case FormatXLSX:
		return WriteXLSX(w, items)
	default:
		return apperr.Validation("unsupported export format %q", format)
	}
}
