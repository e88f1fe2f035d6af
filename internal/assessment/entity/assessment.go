package entity

import (
	"math"
	"reflect"
	"strings"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
)

// NutritionClass is the nutritional classification picked by the professional.
type NutritionClass string

const (
	NutritionNotAssessed NutritionClass = "not_assessed"
	NutritionUnderweight NutritionClass = "underweight"
	NutritionNormal      NutritionClass = "normal"
	NutritionOverweight  NutritionClass = "overweight"
	NutritionObese       NutritionClass = "obese"
)

var nutritionLabels = map[NutritionClass]string{
	NutritionNotAssessed: "Não avaliado",
	NutritionUnderweight: "Baixo peso",
	NutritionNormal:      "Eutrofia (Peso adequado)",
	NutritionOverweight:  "Sobrepeso",
	NutritionObese:       "Obesidade",
}

func (c NutritionClass) Valid() bool { _, ok := nutritionLabels[c]; return ok }

// Label is the printed form.
func (c NutritionClass) Label() string { return nutritionLabels[c] }

// DentalClass is the dental triage classification.
type DentalClass string

const (
	DentalRoutine DentalClass = "routine"
	DentalUrgent  DentalClass = "urgent"
)

var dentalLabels = map[DentalClass]string{
	DentalRoutine: "Rotina",
	DentalUrgent:  "Urgência",
}

func (c DentalClass) Valid() bool { _, ok := dentalLabels[c]; return ok }

func (c DentalClass) Label() string { return dentalLabels[c] }

// Fields is the caller-supplied field bundle of an assessment. Creating and
// updating a record always takes the complete bundle.
type Fields struct {
	CreatedDate             Date   `json:"created_date" db:"created_date"`
	ResponsibleProfessional string `json:"responsible_professional" db:"responsible_professional"`

	// intake
	PatientName     string `json:"patient_name" db:"patient_name"`
	ChildIdentified bool   `json:"child_identified" db:"child_identified"`
	GuardianPresent bool   `json:"guardian_present" db:"guardian_present"`
	GuardianName    string `json:"guardian_name" db:"guardian_name"`
	VisitReason     string `json:"visit_reason" db:"visit_reason"`
	ReferralSource  string `json:"referral_source" db:"referral_source"`
	BehaviorNote    string `json:"behavior_note" db:"behavior_note"`

	// immunization
	CardPresented    bool `json:"card_presented" db:"card_presented"`
	VaccinesChecked  bool `json:"vaccines_checked" db:"vaccines_checked"`
	ScheduleComplete bool `json:"schedule_complete" db:"schedule_complete"`
	VaccinesOverdue  bool `json:"vaccines_overdue" db:"vaccines_overdue"`
	GuardianGuided   bool `json:"guardian_guided" db:"guardian_guided"`
	ReferredToClinic bool `json:"referred_to_clinic" db:"referred_to_clinic"`

	// nutrition
	WeightKg          float64        `json:"weight_kg" db:"weight_kg"`
	HeightM           float64        `json:"height_m" db:"height_m"`
	NutritionClass    NutritionClass `json:"nutrition_class" db:"nutrition_class"`
	DietaryComplaint  string         `json:"dietary_complaint" db:"dietary_complaint"`
	NutritionGuided   bool           `json:"nutrition_guided" db:"nutrition_guided"`
	NutritionReferred bool           `json:"nutrition_referred" db:"nutrition_referred"`

	// dental
	OralHygieneOK  bool        `json:"oral_hygiene_ok" db:"oral_hygiene_ok"`
	VisibleCaries  bool        `json:"visible_caries" db:"visible_caries"`
	PainReported   bool        `json:"pain_reported" db:"pain_reported"`
	HygieneGuided  bool        `json:"hygiene_guided" db:"hygiene_guided"`
	DentalReferred bool        `json:"dental_referred" db:"dental_referred"`
	DentalClass    DentalClass `json:"dental_class" db:"dental_class"`

	// care plan
	EnrolledInProgram        bool  `json:"enrolled_in_program" db:"enrolled_in_program"`
	ReferredToClinicPlan     bool  `json:"referred_to_clinic_plan" db:"referred_to_clinic_plan"`
	ReferredToNutritionPlan  bool  `json:"referred_to_nutrition_plan" db:"referred_to_nutrition_plan"`
	ReferredToDentalPlan     bool  `json:"referred_to_dental_plan" db:"referred_to_dental_plan"`
	ReferredToSocialServices bool  `json:"referred_to_social_services" db:"referred_to_social_services"`
	RecordedInChart          bool  `json:"recorded_in_chart" db:"recorded_in_chart"`
	NextAssessmentDate       *Date `json:"next_assessment_date" db:"next_assessment_date"`
}

// Assessment is one persisted intake record.
type Assessment struct {
	ID    int64  `json:"id" db:"id"`
	City  string `json:"city" db:"city"`
	State string `json:"state" db:"state"`
	Fields
	// BMI is derived from WeightKg and HeightM and never set by callers.
	BMI float64 `json:"bmi" db:"bmi"`
}

// ComputeBMI returns weight / height², or 0 when height is not positive.
func ComputeBMI(weightKg, heightM float64) float64 {
	if heightM <= 0 {
		return 0
	}
	return weightKg / (heightM * heightM)
}

// Normalize trims text and fills enum defaults in place.
func (f *Fields) Normalize() {
	f.PatientName = strings.TrimSpace(f.PatientName)
	f.ResponsibleProfessional = strings.TrimSpace(f.ResponsibleProfessional)
	f.GuardianName = strings.TrimSpace(f.GuardianName)
	f.ReferralSource = strings.TrimSpace(f.ReferralSource)
	f.DietaryComplaint = strings.TrimSpace(f.DietaryComplaint)
	if f.NutritionClass == "" {
		f.NutritionClass = NutritionNotAssessed
	}
	if f.DentalClass == "" {
		f.DentalClass = DentalRoutine
	}
	if f.NextAssessmentDate != nil && f.NextAssessmentDate.IsZero() {
		f.NextAssessmentDate = nil
	}
}

// Validate checks the invariants a bundle must hold before it is stored.
func (f *Fields) Validate() error {
	if strings.TrimSpace(f.PatientName) == "" {
		return apperr.Validation("patient_name is required")
	}
	if f.CreatedDate.IsZero() {
		return apperr.Validation("created_date is required")
	}
	if !finiteNonNegative(f.WeightKg) {
		return apperr.Validation("weight_kg must be a non-negative number")
	}
	if !finiteNonNegative(f.HeightM) {
		return apperr.Validation("height_m must be a non-negative number")
	}
	if !f.NutritionClass.Valid() {
		return apperr.Validation("unknown nutrition_class %q", f.NutritionClass)
	}
	if !f.DentalClass.Valid() {
		return apperr.Validation("unknown dental_class %q", f.DentalClass)
	}
	return nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Clone returns a deep copy, so the caller never aliases the pointer field.
func (f Fields) Clone() Fields {
	if f.NextAssessmentDate != nil {
		d := *f.NextAssessmentDate
		f.NextAssessmentDate = &d
	}
	return f
}

// FieldKeys lists the JSON keys of a complete bundle in declaration order.
func FieldKeys() []string {
	t := reflect.TypeOf(Fields{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			keys = append(keys, name)
		}
	}
	return keys
}
