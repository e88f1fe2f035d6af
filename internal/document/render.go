// Package document turns an assessment into the printable intake checklist.
package document

import (
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/entity"
)

const (
	Title    = "CHECKLIST RÁPIDO – AVALIAÇÃO INICIAL"
	Subtitle = "CAPS INFANTIL"

	SignatureRule  = "__________________________________________"
	NoProfessional = "Profissional Responsável"
	NotInformed    = "Não informado"
	NoComplaint    = "Nenhuma"
	NotScheduled   = "Não agendada"
)

const (
	sectionIntake    = "ACOLHIMENTO INICIAL"
	sectionVaccine   = "CADERNETA VACINAL"
	sectionNutrition = "AVALIAÇÃO NUTRICIONAL"
	sectionDental    = "AVALIAÇÃO ODONTOLÓGICA"
	sectionCarePlan  = "PLANO INICIAL DE CUIDADO"
)

var months = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// Item is one printed line: a check mark and its text.
type Item struct {
	Checked bool   `json:"checked"`
	Text    string `json:"text"`
}

// Mark is the printed form of the check box.
func (i Item) Mark() string {
	if i.Checked {
		return "[X]"
	}
	return "[ ]"
}

type Section struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Signature is the trailing place/date line, the rule and the signer.
type Signature struct {
	Place string `json:"place"`
	Rule  string `json:"rule"`
	Name  string `json:"name"`
}

// Document is the structured form of one ficha. Serializers map each
// section title to a header and each item to exactly one line.
type Document struct {
	Title     string      `json:"title"`
	Subtitle  string      `json:"subtitle"`
	Sections  []Section   `json:"sections"`
	Signature Signature   `json:"signature"`
	Date      entity.Date `json:"date"`
}

// Render builds the document for a. It reads nothing but a's fields, so the
// same record always yields the same document.
func Render(a *entity.Assessment) Document {
	return Document{
		Title:    Title,
		Subtitle: Subtitle,
		Sections: []Section{
			intake(a),
			immunization(a),
			nutrition(a),
			dental(a),
			carePlan(a),
		},
		Signature: Signature{
			Place: fmt.Sprintf("%s/%s, %s.", a.City, a.State, LongDate(a.CreatedDate)),
			Rule:  SignatureRule,
			Name:  orDefault(a.ResponsibleProfessional, NoProfessional),
		},
		Date: a.CreatedDate,
	}
}

func intake(a *entity.Assessment) Section {
	return Section{Title: sectionIntake, Items: []Item{
		{a.ChildIdentified, labeled("Criança/adolescente identificado", a.PatientName, NotInformed)},
		{a.GuardianPresent, labeled("Responsável legal presente", a.GuardianName, NotInformed)},
		textItem("Motivo do atendimento", a.VisitReason, NotInformed),
		textItem("Encaminhamento de origem", a.ReferralSource, NotInformed),
		textItem("Observação do comportamento", a.BehaviorNote, NotInformed),
	}}
}

func immunization(a *entity.Assessment) Section {
	return Section{Title: sectionVaccine, Items: []Item{
		{a.CardPresented, "Caderneta apresentada"},
		{a.VaccinesChecked, "Vacinas conferidas conforme idade"},
		{a.ScheduleComplete, "Esquema vacinal completo"},
		{a.VaccinesOverdue, "Vacinas em atraso"},
		{a.GuardianGuided, "Orientação ao responsável realizada"},
		{a.ReferredToClinic, "Encaminhamento à UBS (se necessário)"},
	}}
}

func nutrition(a *entity.Assessment) Section {
	return Section{Title: sectionNutrition, Items: []Item{
		{true, fmt.Sprintf("Peso aferido: %.2f kg", a.WeightKg)},
		{true, fmt.Sprintf("Altura aferida: %.2f m", a.HeightM)},
		{true, fmt.Sprintf("IMC calculado: %.2f", entity.ComputeBMI(a.WeightKg, a.HeightM))},
		{true, "Classificação nutricional: " + nutritionLabel(a.NutritionClass)},
		textItem("Queixa alimentar", a.DietaryComplaint, NoComplaint),
		{a.NutritionGuided, "Orientação nutricional realizada"},
		{a.NutritionReferred, "Encaminhamento realizado (se necessário)"},
	}}
}

func dental(a *entity.Assessment) Section {
	label := a.DentalClass.Label()
	if label == "" {
		label = entity.DentalRoutine.Label()
	}
	return Section{Title: sectionDental, Items: []Item{
		{a.OralHygieneOK, "Higiene bucal adequada"},
		{a.VisibleCaries, "Presença de cárie visível"},
		{a.PainReported, "Dor ou desconforto relatado"},
		{a.HygieneGuided, "Orientação de higiene bucal realizada"},
		{a.DentalReferred, "Encaminhamento odontológico"},
		{true, "Classificação: " + label},
	}}
}

func carePlan(a *entity.Assessment) Section {
	next := Item{Text: "Próxima avaliação agendada: " + NotScheduled}
	if a.NextAssessmentDate != nil && !a.NextAssessmentDate.IsZero() {
		next = Item{true, "Próxima avaliação agendada: " + a.NextAssessmentDate.BR()}
	}
	return Section{Title: sectionCarePlan, Items: []Item{
		{a.EnrolledInProgram, "Inserido no acompanhamento CAPS"},
		{a.ReferredToClinicPlan, "Encaminhamento para UBS"},
		{a.ReferredToNutritionPlan, "Encaminhamento para Nutrição"},
		{a.ReferredToDentalPlan, "Encaminhamento para Odontologia"},
		{a.ReferredToSocialServices, "Encaminhamento para Assistência Social"},
		next,
		{a.RecordedInChart, "Registro em prontuário realizado"},
	}}
}

func nutritionLabel(c entity.NutritionClass) string {
	if l := c.Label(); l != "" {
		return l
	}
	return entity.NutritionNotAssessed.Label()
}

// textItem is checked iff the text is filled in.
func textItem(label, value, placeholder string) Item {
	value = oneLine(value)
	return Item{Checked: value != "", Text: labeled(label, value, placeholder)}
}

func labeled(label, value, placeholder string) string {
	return label + ": " + orDefault(oneLine(value), placeholder)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// oneLine folds runs of whitespace, newlines included, into single spaces.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// LongDate formats d as "01 de março de 2024".
func LongDate(d entity.Date) string {
	if d.IsZero() {
		return NotInformed
	}
	return fmt.Sprintf("%02d de %s de %d", d.Day(), months[d.Month()-1], d.Year())
}

// FileName is the download name of a record's ficha.
func FileName(a *entity.Assessment) string {
	name := strings.NewReplacer("/", "-", "\\", "-").Replace(oneLine(a.PatientName))
	return fmt.Sprintf("ficha_%s_%s.pdf", name, strings.ReplaceAll(a.CreatedDate.BR(), "/", "-"))
}
