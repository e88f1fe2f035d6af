package entity

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
)

func TestComputeBMI(t *testing.T) {
	assert.InDelta(t, 16.53, ComputeBMI(20, 1.10), 0.005)
	assert.Equal(t, 0.0, ComputeBMI(20, 0))
	assert.Equal(t, 0.0, ComputeBMI(95, 0))
	assert.Equal(t, 0.0, ComputeBMI(20, -1))
}

func validFields() Fields {
	return Fields{
		CreatedDate: NewDate(2024, time.March, 1),
		PatientName: "Maria",
	}
}

func TestValidate_RequiresPatientName(t *testing.T) {
	f := validFields()
	f.PatientName = "   "
	err := f.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Contains(t, err.Error(), "patient_name")
}

func TestValidate_RejectsNegativeAndNaNMeasurements(t *testing.T) {
	f := validFields()
	f.Normalize()
	f.WeightKg = -1
	assert.ErrorIs(t, f.Validate(), apperr.ErrValidation)

	f.WeightKg = 10
	f.HeightM = math.NaN()
	assert.ErrorIs(t, f.Validate(), apperr.ErrValidation)
}

func TestValidate_RejectsUnknownClasses(t *testing.T) {
	f := validFields()
	f.Normalize()
	f.NutritionClass = "skinny"
	assert.ErrorIs(t, f.Validate(), apperr.ErrValidation)

	f.NutritionClass = NutritionObese
	f.DentalClass = "asap"
	assert.ErrorIs(t, f.Validate(), apperr.ErrValidation)
}

func TestNormalize_FillsDefaults(t *testing.T) {
	f := validFields()
	f.PatientName = "  Maria  "
	zero := Date{}
	f.NextAssessmentDate = &zero
	f.Normalize()

	assert.Equal(t, "Maria", f.PatientName)
	assert.Equal(t, NutritionNotAssessed, f.NutritionClass)
	assert.Equal(t, DentalRoutine, f.DentalClass)
	assert.Nil(t, f.NextAssessmentDate)
	assert.NoError(t, f.Validate())
}

func TestClone_DoesNotAliasNextDate(t *testing.T) {
	d := NewDate(2024, time.April, 2)
	f := validFields()
	f.NextAssessmentDate = &d

	c := f.Clone()
	c.NextAssessmentDate.Time = c.NextAssessmentDate.AddDate(0, 0, 1)
	assert.Equal(t, NewDate(2024, time.April, 2), *f.NextAssessmentDate)
}

func TestFieldKeys(t *testing.T) {
	keys := FieldKeys()
	assert.Equal(t, "created_date", keys[0])
	assert.Equal(t, "next_assessment_date", keys[len(keys)-1])
	assert.Contains(t, keys, "patient_name")
	assert.NotContains(t, keys, "id")
	assert.NotContains(t, keys, "bmi")
	assert.Len(t, keys, 34)
}

func TestDate_JSON(t *testing.T) {
	type wrap struct {
		D Date  `json:"d"`
		N *Date `json:"n"`
	}
	b, err := json.Marshal(wrap{D: NewDate(2024, time.March, 1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-03-01","n":null}`, string(b))

	var w wrap
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-12-31","n":"2025-01-15"}`), &w))
	assert.Equal(t, NewDate(2024, time.December, 31), w.D)
	require.NotNil(t, w.N)
	assert.Equal(t, "15/01/2025", w.N.BR())

	assert.Error(t, json.Unmarshal([]byte(`{"d":"31/12/2024"}`), &w))
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 3, 1, 0, 0, 0, 0, time.FixedZone("BRT", -3*3600))))
	assert.Equal(t, NewDate(2024, time.March, 1), d)

	require.NoError(t, d.Scan([]byte("2024-05-06T00:00:00Z")))
	assert.Equal(t, NewDate(2024, time.May, 6), d)

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))
}

func TestClassLabels(t *testing.T) {
	assert.Equal(t, "Eutrofia (Peso adequado)", NutritionNormal.Label())
	assert.Equal(t, "Urgência", DentalUrgent.Label())
	assert.False(t, NutritionClass("x").Valid())
}
