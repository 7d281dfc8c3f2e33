// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"bytes"
	"strings"
	"text/template"
)

// userTurnTmpl wraps the rendered evidence context and the question into the
// final user turn of a chat prompt.
var userTurnTmpl = template.Must(template.New("user-turn").Parse(`{{.Context}}

---
PERGUNTA DO USUÁRIO:
{{.Question}}

Por favor, responda baseando-se nos estudos científicos fornecidos acima e em seu conhecimento médico. Cite as fontes quando relevante.`))

// ConsultationSystem is the system turn for transcript analysis.
const ConsultationSystem = "Você é um especialista em documentação médica. Gere relatórios clínicos completos, precisos e profissionais."

var consultationTmpl = template.Must(template.New("consultation").Parse(`Analise a seguinte transcrição de consulta médica e gere um relatório clínico estruturado.

DADOS DO PACIENTE:
{{- with .Patient.Name}}
Nome: {{.}}{{end}}
{{- with .Patient.Age}}
Idade: {{.}}{{end}}
{{- with .Patient.Gender}}
Sexo: {{.}}{{end}}
{{- with .Patient.Observations}}
Observações: {{.}}{{end}}

TRANSCRIÇÃO DA CONSULTA:
{{.Transcript}}

Por favor, gere um relatório médico estruturado contendo:
1. IDENTIFICAÇÃO DO PACIENTE
2. QUEIXA PRINCIPAL
3. HISTÓRIA DA DOENÇA ATUAL (HDA)
4. EXAME FÍSICO (se mencionado)
5. HIPÓTESES DIAGNÓSTICAS
6. CONDUTA E PLANO TERAPÊUTICO
7. ORIENTAÇÕES AO PACIENTE
8. OBSERVAÇÕES IMPORTANTES

Use formato profissional adequado para prontuário médico.`))

// Patient is the optional identification attached to a consultation.
type Patient struct {
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	Age          string `json:"age,omitempty" yaml:"age,omitempty"`
	Gender       string `json:"gender,omitempty" yaml:"gender,omitempty"`
	Observations string `json:"observations,omitempty" yaml:"observations,omitempty"`
}

// UserTurn renders the user turn for a chat question given the evidence
// context block.
func UserTurn(context, question string) (string, error) {
	return render(userTurnTmpl, struct{ Context, Question string }{context, question})
}

// ConsultationPrompt renders the analysis request for a transcript. Empty
// patient fields are omitted.
func ConsultationPrompt(transcript string, patient Patient) (string, error) {
	patient.Name = strings.TrimSpace(patient.Name)
	patient.Age = strings.TrimSpace(patient.Age)
	patient.Gender = strings.TrimSpace(patient.Gender)
	patient.Observations = strings.TrimSpace(patient.Observations)
	return render(consultationTmpl, struct {
		Transcript string
		Patient    Patient
	}{transcript, patient})
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
