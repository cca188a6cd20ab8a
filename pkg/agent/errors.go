package agent

// Friendly, class-routed strings shown to the user in place of raw
// exception text. Each corresponds to one row
// of the recovery table in recovery.go.
const (
	friendlyBudgetExhausted = "I've hit my budget limit for this conversation and can't make further model calls right now."
	friendlyBusy            = "I'm having trouble reaching the model provider right now — please try again in a moment."
	friendlyRequestFormat   = "Something about that request tripped up the model provider. Try rephrasing, or try again shortly."
	friendlyUnexpected      = "Something unexpected went wrong on my end. Please try again."
)
