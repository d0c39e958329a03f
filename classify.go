package cleanhands

import "regexp"

// The result page never states the status in one canonical phrase, so
// classification is a pile of observed wordings. Negative phrasings are
// tested before positive ones: "not in compliance" contains "in compliance"
// and must not be shadowed by it.
//
// An offer to request a Notice of Non-Compliance is counted as evidence of
// compliance: the site only offers to generate that notice for taxpayers who
// do not already have one on file.
var (
	reOfferCertificate = regexp.MustCompile(`(?i)click\s*here\s*to\s*request\s*a\s*current\s*certificate\s*of\s*clean\s*hands`)
	reOfferNonCompNote = regexp.MustCompile(`(?i)request.*notice\s*of\s*non[-\s]?compliance`)

	reNotInCompliance = regexp.MustCompile(`(?i)\bnot\s+in\s+compliance\b`)
	reIsNotCompliant  = regexp.MustCompile(`(?i)\bis\s+not\s+compliant\b`)
	reNotCompliant    = regexp.MustCompile(`(?i)\bnot\s+compliant\b`)
	reNonCompliant    = regexp.MustCompile(`(?i)\bnon[-\s]?compliant\b`)
	reNonCompliance   = regexp.MustCompile(`(?i)\bnon[-\s]?compliance\b`)

	reCurrentlyCompliant = regexp.MustCompile(`(?i)\bis\s+currently\s+compliant\b`)
	reInCompliance       = regexp.MustCompile(`(?i)\bin\s+compliance\b`)
	reIsCompliant        = regexp.MustCompile(`(?i)\bis\s+compliant\b`)
	reCompliant          = regexp.MustCompile(`(?i)\bcompliant\b`)
)

// DetectStatus classifies the free text of a result page. It is explicitly
// a heuristic over observed page wordings and returns [StatusUnknown] for
// anything it does not recognize.
func DetectStatus(text string) Status {
	if text == "" {
		return StatusUnknown
	}

	// What the page offers to generate is the strongest signal.
	if reOfferCertificate.MatchString(text) {
		return StatusCompliant
	}
	if reOfferNonCompNote.MatchString(text) {
		return StatusCompliant
	}

	if reNotInCompliance.MatchString(text) ||
		reIsNotCompliant.MatchString(text) ||
		reNotCompliant.MatchString(text) ||
		reNonCompliant.MatchString(text) {
		return StatusNoncompliant
	}

	if reCurrentlyCompliant.MatchString(text) ||
		reInCompliance.MatchString(text) ||
		reIsCompliant.MatchString(text) {
		return StatusCompliant
	}

	// Bare "compliant" counts only when no negated form appears anywhere.
	if reCompliant.MatchString(text) && !reNonCompliance.MatchString(text) {
		return StatusCompliant
	}

	return StatusUnknown
}
