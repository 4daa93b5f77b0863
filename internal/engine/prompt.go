package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/miradorstack/uavlog-analyst/internal/models"
)

// Context budgets, in runes, for JSON blocks embedded in prompts.
const (
	metricsBudget        = 600
	anomalyMetricsBudget = 500
	flagsBudget          = 400
	fieldsBudget         = 800
	historyTurns         = 3
	questionMarker       = "User question:"
	truncationMarker     = "\n… (truncated) …\n"
)

const outputFormat = "Use this exact output format:\n" +
	"<answer>\nYour response here…\n</answer>\n\n" +
	"<suggested_questions>\n" +
	"1. A meaningful follow-up\n" +
	"2. A deeper analysis request\n" +
	"3. A possible anomaly check\n" +
	"</suggested_questions>"

const metricInstructions = "You are an expert UAV telemetry analyst. If the question is ambiguous or a single " +
	"token (for example \"max\"), ask a concise clarification before proceeding. Your tasks:\n" +
	"1. Answer from the metrics and the raw field excerpts below.\n" +
	"2. Quote relevant values with their units.\n" +
	"3. Explain calculations only briefly and only when asked.\n" +
	"4. If data is missing, say so and name the log fields that would be needed.\n" +
	"5. Keep answers concise and technically precise.\n\n" +
	"If the metrics and extracted fields do not let you answer confidently, do not guess. " +
	"Ask the user which metric, time window or field they need.\n\n" +
	outputFormat + "\n\n" +
	"Inside <suggested_questions> write THREE concise follow-up questions from the user's point of view. " +
	"Each must be answerable from the telemetry already provided (e.g. \"What is the max altitude?\")."

const anomalyInstructions = "You are an expert UAV telemetry analyst. If the question is ambiguous or the data " +
	"is insufficient, ask a concise clarification before proceeding.\n\n" +
	"Instructions:\n" +
	"• Decide whether any value or pattern is an anomaly.\n" +
	"• Derive or cite a reasonable threshold from UAV practice or from the data distribution.\n" +
	"• Quote sample indices or seconds since boot together with the offending values.\n" +
	"• If nothing is abnormal, state \"No anomalies detected.\"\n" +
	"• After answering, give THREE first-person follow-up questions answerable from the data below.\n\n" +
	"Output format:\n" +
	"<answer>\n…\n</answer>\n\n" +
	"<suggested_questions>\n" +
	"1. …\n2. …\n3. …\n" +
	"</suggested_questions>"

const generalInstructions = "You are a helpful assistant. If the user's question is too vague (a single word " +
	"like \"max\") or could mean several things, politely ask for clarification before answering. " +
	"The user may or may not have uploaded a UAV flight log.\n" +
	"• If the question is unrelated to UAV telemetry, answer normally.\n" +
	"• If the user would benefit from uploading a flight log, mention it gently.\n\n" +
	outputFormat + "\n\n" +
	"Inside <suggested_questions> write THREE UAV telemetry follow-up questions from the user's point " +
	"of view, even for greetings like \"Hi\"."

// BuildMetricPrompt assembles the prompt for telemetry value questions.
func BuildMetricPrompt(question string, extracted map[string]any, metrics models.MetricRecord) string {
	var b strings.Builder
	b.WriteString(metricInstructions)
	b.WriteString("\n\n## Pre-computed metrics (key = value):\n")
	b.WriteString(jsonShort(metrics, metricsBudget))
	b.WriteString("\n\n## Extracted field samples:\n")
	b.WriteString(jsonShort(extracted, fieldsBudget))
	b.WriteString("\n\n")
	b.WriteString(questionMarker + " " + question)
	return b.String()
}

// BuildAnomalyPrompt assembles the prompt for anomaly questions. Flags are
// hints for the model, not verdicts.
func BuildAnomalyPrompt(question string, extracted map[string]any, metrics models.MetricRecord, flags []models.AnomalyFlag, summary []models.FlagSummary) string {
	var b strings.Builder
	b.WriteString(anomalyInstructions)
	b.WriteString("\n\n## Flight-level metrics\n")
	b.WriteString(jsonShort(metrics, anomalyMetricsBudget))
	b.WriteString("\n\n## Primitive anomaly flags (hints)\n")
	if len(flags) == 0 {
		b.WriteString("None\n")
	} else {
		b.WriteString(jsonShort(flags, flagsBudget))
		b.WriteString("\n\n## Flag summary\n")
		b.WriteString(jsonShort(summary, flagsBudget))
	}
	b.WriteString("\n\n## Extracted field samples\n")
	b.WriteString(jsonShort(extracted, fieldsBudget))
	b.WriteString("\n\n")
	b.WriteString(questionMarker + " " + question)
	return b.String()
}

// BuildGeneralPrompt assembles the prompt used without telemetry context.
func BuildGeneralPrompt(question string) string {
	return generalInstructions + "\n\n" + questionMarker + " " + question
}

// InjectHistory inserts recent turns right before the final question marker.
func InjectHistory(prompt string, turns []models.Turn) string {
	if len(turns) == 0 {
		return prompt
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Recent conversation (last %d turns):\n", historyTurns)
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", capitalize(string(t.Role)), t.Content)
	}
	b.WriteString("\n")

	idx := strings.LastIndex(prompt, questionMarker)
	if idx < 0 {
		return prompt + "\n\n" + b.String()
	}
	return prompt[:idx] + b.String() + prompt[idx:]
}

// jsonShort renders v as indented JSON, keeping the head and tail halves
// when it exceeds budget runes.
func jsonShort(v any, budget int) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	var text string
	if err := enc.Encode(v); err != nil {
		text = fmt.Sprint(v)
	} else {
		text = strings.TrimSuffix(buf.String(), "\n")
	}

	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	half := budget / 2
	return string(runes[:half]) + truncationMarker + string(runes[len(runes)-half:])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
