package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/entity"
)

func records() []*entity.Assessment {
	next := entity.NewDate(2024, time.April, 1)
	return []*entity.Assessment{
		{ID: 1, City: "Angicos", State: "RN", BMI: entity.ComputeBMI(20, 1.25), Fields: entity.Fields{
			CreatedDate:     entity.NewDate(2024, time.March, 1),
			PatientName:     "Maria",
			ChildIdentified: true,
			WeightKg:        20,
			HeightM:         1.25,
			NutritionClass:  entity.NutritionNormal,
			DentalClass:     entity.DentalRoutine,
		}},
		{ID: 2, City: "Angicos", State: "RN", Fields: entity.Fields{
			CreatedDate:        entity.NewDate(2024, time.March, 2),
			PatientName:        "Pedro, o \"Pedrinho\"",
			NutritionClass:     entity.NutritionNotAssessed,
			DentalClass:        entity.DentalUrgent,
			NextAssessmentDate: &next,
		}},
	}
}

func TestColumnsMatchRowWidth(t *testing.T) {
	assert.Len(t, row(records()[0]), len(Columns))
	assert.Len(t, Columns, len(entity.FieldKeys())+4)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])

	get := func(r []string, col string) string {
		for i, c := range Columns {
			if c == col {
				return r[i]
			}
		}
		t.Fatalf("no column %s", col)
		return ""
	}
	assert.Equal(t, "1", get(rows[1], "id"))
	assert.Equal(t, "2024-03-01", get(rows[1], "created_date"))
	assert.Equal(t, "true", get(rows[1], "child_identified"))
	assert.Equal(t, "12.8", get(rows[1], "bmi"))
	assert.Equal(t, "", get(rows[1], "next_assessment_date"))
	assert.Equal(t, "Pedro, o \"Pedrinho\"", get(rows[2], "patient_name"))
	assert.Equal(t, "urgent", get(rows[2], "dental_class"))
	assert.Equal(t, "2024-04-01", get(rows[2], "next_assessment_date"))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, records()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "Maria", rows[1][5])
	assert.Equal(t, "2024-04-01", rows[2][len(Columns)-1])
}

func TestWrite_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Write(&buf, "ods", nil), apperr.ErrValidation)
	assert.NoError(t, Write(&buf, "", nil))
	assert.Equal(t, "avaliacoes_caps.xlsx", FileName(FormatXLSX))
}
