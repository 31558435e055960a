package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/liu-chun-wu/SleepGenius/internal"
)

// Past these thresholds the prompt carries aggregates instead of
// per-entry lines, keeping its size bounded for long nights.
const (
	stageEnumerationLimit       = 3
	respirationEnumerationLimit = 40
)

// BuildPrompt assembles the coaching prompt from one night's data and
// the user's question.
func BuildPrompt(question string, summary *internal.SleepSummary, stages []internal.SleepStageSegment, samples []internal.SleepRespiration) string {
	var b strings.Builder

	b.WriteString("You are a sleep coach. Based on the user's question and data below, give a short and helpful answer.\n\n")
	b.WriteString("Question:\n\"")
	b.WriteString(question)
	b.WriteString("\"\n\n")
	b.WriteString("Respond in 3 short sections:\n")
	b.WriteString("1. Quick answer\n2. Sleep issues\n3. One or two practical suggestions\n")
	b.WriteString("Be brief and clear.\n\n")

	b.WriteString("【Summary】\n")
	if summary != nil {
		score := "n/a"
		if summary.OverallScore != nil {
			score = fmt.Sprintf("%d", *summary.OverallScore)
		}
		qualifier := "n/a"
		if summary.ScoreQualifier != nil {
			qualifier = *summary.ScoreQualifier
		}
		fmt.Fprintf(&b, "Date: %s, Total: %ds, Deep: %ds, Light: %ds, REM: %ds, Awake: %ds, Score: %s (%s)\n",
			summary.Date, summary.TotalDuration, summary.DeepSleep, summary.LightSleep,
			summary.RemSleep, summary.AwakeSleep, score, qualifier)
	} else {
		b.WriteString("No summary.\n")
	}
	b.WriteString("\n")

	b.WriteString("【Stages】\n")
	writeStages(&b, stages)
	b.WriteString("\n")

	b.WriteString("【Respiration】\n")
	writeRespiration(&b, samples)
	b.WriteString("\n")

	return b.String()
}

func writeStages(b *strings.Builder, stages []internal.SleepStageSegment) {
	if len(stages) == 0 {
		b.WriteString("No stages.\n")
		return
	}
	if len(stages) <= stageEnumerationLimit {
		for _, s := range stages {
			fmt.Fprintf(b, "%s [%s~%s, %ds]\n", s.StageType, clockTime(s.StartTime), clockTime(s.EndTime), s.Duration)
		}
		return
	}
	minDur, maxDur, total := stages[0].Duration, stages[0].Duration, 0
	for _, s := range stages {
		if s.Duration < minDur {
			minDur = s.Duration
		}
		if s.Duration > maxDur {
			maxDur = s.Duration
		}
		total += s.Duration
	}
	fmt.Fprintf(b, "%d segments, Avg: %ds, Range: %ds~%ds\n", len(stages), total/len(stages), minDur, maxDur)
}

func writeRespiration(b *strings.Builder, samples []internal.SleepRespiration) {
	if len(samples) == 0 {
		b.WriteString("No respiration.\n")
		return
	}
	if len(samples) <= respirationEnumerationLimit {
		for _, r := range samples {
			fmt.Fprintf(b, "%ds: %.1f bpm\n", r.OffsetSeconds, r.RespirationRate)
		}
		return
	}
	minRate, maxRate, sum := samples[0].RespirationRate, samples[0].RespirationRate, 0.0
	for _, r := range samples {
		if r.RespirationRate < minRate {
			minRate = r.RespirationRate
		}
		if r.RespirationRate > maxRate {
			maxRate = r.RespirationRate
		}
		sum += r.RespirationRate
	}
	fmt.Fprintf(b, "Samples: %d, Avg: %.1f bpm, Range: %.1f~%.1f bpm\n",
		len(samples), sum/float64(len(samples)), minRate, maxRate)
}

// clockTime renders an epoch-second timestamp as a fixed-width local
// wall-clock time.
func clockTime(epochSeconds int64) string {
	return time.Unix(epochSeconds, 0).Format("15:04")
}
