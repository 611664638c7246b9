package ingest

import (
	"regexp"
	"strings"
)

// Signal classes for funding detection. A funding announcement needs at
// least two distinct classes to fire, which keeps precision high at the
// cost of recall; the classifiers recover the rest.
var (
	fundingActionRe = regexp.MustCompile(`(?i)\braised\b|\bsecured\b|\bclosed\b|\bannounced\s+(?:a|the)\s+\$|\bcompleted\s+(?:a|the)\s+\$`)
	fundingMoneyRe  = regexp.MustCompile(`(?i)\$\d+(?:\.\d+)?\s*(?:million|billion|M|B)\b|\$\d+(?:\.\d+)?[MB]\b`)
	fundingStageRe  = regexp.MustCompile(`(?i)\bseed\s+round\b|\bpre-seed\b|\bseries\s+[a-f]\b|\bbridge\s+round\b`)
	investorRe      = regexp.MustCompile(`(?i)\bled\s+by\b|\bco-led\s+by\b|\binvestors?\s+include\b|\bparticipation\s+from\b|\bfrom\s+investors?\b`)
	valuationRe     = regexp.MustCompile(`(?i)\bvaluation\b|\bpost-money\b|\bvalued\s+at\b`)

	htmlTagRe = regexp.MustCompile(`<[^>]+>`)
)

// FundingDetector flags funding announcements in article text.
type FundingDetector struct {
	minSignals int
}

// NewFundingDetector requires minSignals distinct signal classes
// (default 2 when <= 0).
func NewFundingDetector(minSignals int) *FundingDetector {
	if minSignals <= 0 {
		minSignals = 2
	}
	return &FundingDetector{minSignals: minSignals}
}

// Detect reports whether text announces funding, with a reason string
// naming each matched signal class and its first match.
func (d *FundingDetector) Detect(text string) (bool, string) {
	if text == "" {
		return false, ""
	}

	clean := htmlTagRe.ReplaceAllString(strings.ToLower(text), "")

	var signals []string
	addSignal := func(class string, re *regexp.Regexp) {
		if m := re.FindString(clean); m != "" {
			signals = append(signals, class+":"+m)
		}
	}
	addSignal("action", fundingActionRe)
	addSignal("money", fundingMoneyRe)
	addSignal("stage", fundingStageRe)
	addSignal("investor", investorRe)
	addSignal("valuation", valuationRe)

	return len(signals) >= d.minSignals, strings.Join(signals, "; ")
}
