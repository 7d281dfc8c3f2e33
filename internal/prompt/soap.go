// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"strings"
	"text/template"
)

// NotInformed fills patient fields the caller left empty in a SOAP prompt.
const NotInformed = "Não informado"

var soapSystemTmpl = template.Must(template.New("soap-system").Parse(`Você é um assistente médico especializado em estruturação de prontuários eletrônicos.

Formate a transcrição da consulta no formato SOAP:

**S (SUBJETIVO)**: Queixa principal, história da doença atual, sintomas relatados pelo paciente
**O (OBJETIVO)**: Exame físico, sinais vitais, achados objetivos
**A (AVALIAÇÃO)**: Diagnóstico, hipótese diagnóstica, análise clínica, CID se mencionado
**P (PLANO)**: Conduta terapêutica, prescrições, orientações, encaminhamentos, retorno

DIRETRIZES:
- Seja objetivo e use terminologia médica adequada
- Baseie condutas em evidências científicas quando disponíveis
- Se alguma seção não estiver clara na transcrição, indique "Não mencionado na consulta"
- Mantenha a estrutura clara com cada seção bem delimitada
{{- with .Evidence}}

EVIDÊNCIAS CIENTÍFICAS RELEVANTES:
{{.}}{{end}}

SEMPRE inclua ao final:
"⚠️ Prontuário estruturado com auxílio de IA. Revise e valide antes de finalizar."`))

var soapUserTmpl = template.Must(template.New("soap-user").Parse(`Transcrição da consulta:
{{.Transcript}}

Dados do paciente:
- Nome: {{.Patient.Name}}
- Idade: {{.Patient.Age}}
- Sexo: {{.Patient.Gender}}

Por favor, formate em SOAP estruturado.`))

// SOAPSystem renders the system turn for SOAP formatting. evidence is a
// rendered context block and is omitted when empty.
func SOAPSystem(evidence string) (string, error) {
	return render(soapSystemTmpl, struct{ Evidence string }{strings.TrimSpace(evidence)})
}

// SOAPPrompt renders the user turn for SOAP formatting. Empty patient
// fields read NotInformed.
func SOAPPrompt(transcript string, patient Patient) (string, error) {
	return render(soapUserTmpl, struct {
		Transcript string
		Patient    Patient
	}{transcript, patient.OrNotInformed()})
}

// OrNotInformed returns p with blank fields set to NotInformed.
func (p Patient) OrNotInformed() Patient {
	fill := func(s string) string {
		if s = strings.TrimSpace(s); s == "" {
			return NotInformed
		}
		return s
	}
	p.Name = fill(p.Name)
	p.Age = fill(p.Age)
	p.Gender = fill(p.Gender)
	return p
}

var clinicalKeywords = []string{
	"tratamento", "terapia", "medicamento", "droga", "fármaco",
	"diagnóstico", "sintoma", "doença", "condição", "patologia",
	"estudo", "pesquisa", "evidência", "artigo", "publicação",
	"protocolo", "diretriz", "guideline", "recomendação",
	"eficácia", "efetivo", "funciona", "resultado",
	"complicação", "efeito colateral", "reação adversa",
	"prevenção", "rastreio", "screening",
	"prognóstico", "evolução", "sobrevida",
	"incidência", "prevalência", "epidemiologia",
}

var questionMarkers = []string{
	"qual", "quais", "como", "quando", "onde", "por que", "porque",
	"existe", "há", "tem", "pode", "deve", "é recomendado",
	"o que é", "como tratar", "como diagnosticar",
}

// NeedsEvidence reports whether text asks something a literature lookup can
// support: it mentions a clinical keyword, or it reads as a question and is
// longer than 15 characters.
func NeedsEvidence(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range clinicalKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	question := strings.Contains(lower, "?")
	for _, m := range questionMarkers {
		if question {
			break
		}
		question = strings.Contains(lower, m)
	}
	return question && len(lower) > 15
}
