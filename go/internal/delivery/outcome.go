package delivery

// OutcomeKind says what happened to one attempted send.
type OutcomeKind string

const (
	OutcomeSent               OutcomeKind = "sent"
	OutcomeSkippedNoConsent   OutcomeKind = "skipped_no_consent"
	OutcomeSkippedNoConfig    OutcomeKind = "skipped_no_config"
	OutcomeSkippedBlocked     OutcomeKind = "skipped_blocked"
	OutcomeSkippedRateLimited OutcomeKind = "skipped_rate_limited"
	OutcomeFailed             OutcomeKind = "failed"
)

// Outcome is returned for every attempted send so callers can tell why
// nothing went out instead of inferring it from missing side effects.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

func Sent() Outcome {
	return Outcome{Kind: OutcomeSent}
}

func Failed(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason}
}

func SkippedNoConsent() Outcome {
	return Outcome{Kind: OutcomeSkippedNoConsent, Reason: "no consent for channel"}
}

func SkippedNoConfig() Outcome {
	return Outcome{Kind: OutcomeSkippedNoConfig, Reason: "no send configuration"}
}

func SkippedBlocked(reason string) Outcome {
	return Outcome{Kind: OutcomeSkippedBlocked, Reason: reason}
}

func SkippedRateLimited() Outcome {
	return Outcome{Kind: OutcomeSkippedRateLimited, Reason: "daily limit reached"}
}

// Skipped reports whether no provider call was made.
func (o Outcome) Skipped() bool {
	return o.Kind != OutcomeSent && o.Kind != OutcomeFailed
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return string(o.Kind)
	}
	return string(o.Kind) + ": " + o.Reason
}
