// File: internal/infra/adapters/ai/prompts.go
package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"classroom-ai-grading/internal/domain/model"
	"classroom-ai-grading/internal/domain/ports/adapter"
)

const maxCommentLen = 500

func detectionPrompt(text string) string {
	return fmt.Sprintf(`You are an expert in detecting AI-generated writing.
Analyse the text below for signs that it was produced by a language model.

TEXT TO ANALYSE:
%s

JUDGE ONLY OBVIOUS CASES OF AI GENERATION.

SIGNS OF AI GENERATION:
1. Encyclopedic, academic or boilerplate style with no personal voice.
2. Characteristic assistant cliches ("in conclusion", "it is important to note",
   "improving efficiency" and the like).
3. No mistakes, personal observations, logical digressions or natural
   variability of speech.
4. Sentences uniform in length and structure, no emotional colouring.
5. Text consists entirely of generalities, without concrete examples or facts.

RULES:
- If several signs are clearly present, set ai_detected to true.
- When in doubt, always choose ai_detected: false.
- Do not treat merely competent, tidy writing as AI-generated.

OUTPUT FORMAT:
{
  "ai_detected": true or false,
  "confidence": "low", "medium" or "high",
  "comment": "a short analysis of style and content"
}
`, text)
}

func evaluationPrompt(req adapter.EvalRequest) string {
	var b strings.Builder

	if extra := strings.TrimSpace(req.Prompt); extra != "" {
		fmt.Fprintf(&b, "Additional instructions for this check:\n%s\n\n", extra)
	}

	b.WriteString(`You are an expert grader of student work.
Grade strictly and on the merits, allowing for the study level.
The result is always binary: "pass" or "fail".
`)

	switch req.PriorConfidence {
	case model.ConfidenceNone:
		b.WriteString(`
IMPORTANT: AI-generation is NOT a factor in this check. Judge ONLY the
quality of the content, the logic of the writing and the presentation.
`)
	default:
		fmt.Fprintf(&b, `
AI DETECTOR CONFIDENCE: %s.
- Unless the confidence is "high", signs of AI generation are NOT grounds for
  "fail"; weigh the other criteria only.
- If the confidence is "high", that is admissible grounds for "fail", all
  else being equal. The grading criteria below remain the primary signal.
`, req.PriorConfidence)
	}

	if req.Degraded {
		b.WriteString(`
NOTE: the text below was recovered from a damaged or unsupported file and may
contain extraction noise. Do not penalise formatting artifacts.
`)
	}

	fmt.Fprintf(&b, `
GRADING CRITERIA FROM THE TEMPLATE:
%s

STUDENT WORK:
%s

---

A work passes when all of the following hold: the topic is clearly stated and
meaningful, an application area is named, the choice is at least briefly
justified, expected results are described, the substantive text is at least 60
words, and the writing is coherent and supported by concrete examples or
arguments.

A work fails when any of the following holds: the topic is missing or
unclear, there is no application area or justification, the text is
incoherent or mostly generic phrases without specifics, the text is under 50
words, or the work shows no understanding of the topic, goals and expected
results.

RULES:
1. When torn between "pass" and "fail", choose "fail".
2. Minor spelling and style errors do not lower the grade if the text is
   meaningful.
3. Priority: meaning, logic, completeness, argumentation.

OUTPUT FORMAT:

{
  "result": "pass" or "fail",
  "comment": "a short review of the content, structure and presentation, with recommendations for the student"
}
`, req.Criteria, req.Text)

	return b.String()
}

var (
	resultJSONRe    = regexp.MustCompile(`\{[^{}]*"result"[^{}]*\}`)
	detectionJSONRe = regexp.MustCompile(`\{[^{}]*"ai_detected"[^{}]*\}`)
)

// parseEvaluation pulls the binary verdict out of a model response. The JSON
// block is preferred; a keyword scan is the fallback, defaulting to fail.
func parseEvaluation(msg string) adapter.Evaluation {
	if m := resultJSONRe.FindString(msg); m != "" {
		var payload struct {
			Result  string `json:"result"`
			Comment string `json:"comment"`
		}
		if err := json.Unmarshal([]byte(m), &payload); err == nil {
			verdict := model.VerdictFail
			if strings.EqualFold(strings.TrimSpace(payload.Result), "pass") {
				verdict = model.VerdictPass
			}
			comment := strings.TrimSpace(payload.Comment)
			if comment == "" {
				comment = "no comment provided"
			}
			return adapter.Evaluation{Verdict: verdict, Comment: truncate(comment)}
		}
	}

	lower := strings.ToLower(msg)
	verdict := model.VerdictFail
	// Check the negative wording first to avoid matching "pass" inside it.
	switch {
	case strings.Contains(lower, "not pass") || strings.Contains(lower, "fail"):
		verdict = model.VerdictFail
	case strings.Contains(lower, "pass"):
		verdict = model.VerdictPass
	}

	comment := msg
	if i := strings.LastIndex(lower, "comment:"); i >= 0 {
		comment = strings.TrimSpace(msg[i+len("comment:"):])
	}
	return adapter.Evaluation{Verdict: verdict, Comment: truncate(comment)}
}

// parseDetection extracts the detector's JSON block. ok is false when the
// response carries no usable structure; callers treat that as "not checked".
func parseDetection(msg string) (adapter.Detection, bool) {
	m := detectionJSONRe.FindString(msg)
	if m == "" {
		return adapter.Detection{Confidence: model.ConfidenceNone}, false
	}
	var payload struct {
		AIDetected bool   `json:"ai_detected"`
		Confidence string `json:"confidence"`
		Comment    string `json:"comment"`
	}
	if err := json.Unmarshal([]byte(m), &payload); err != nil {
		return adapter.Detection{Confidence: model.ConfidenceNone}, false
	}
	conf := model.ConfidenceLow
	switch strings.ToLower(strings.TrimSpace(payload.Confidence)) {
	case "medium":
		conf = model.ConfidenceMedium
	case "high":
		conf = model.ConfidenceHigh
	}
	return adapter.Detection{
		Detected:   payload.AIDetected,
		Confidence: conf,
		Details:    truncate(strings.TrimSpace(payload.Comment)),
	}, true
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxCommentLen {
		return s
	}
	return string(r[:maxCommentLen]) + "..."
}
