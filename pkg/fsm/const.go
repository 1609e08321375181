package fsm

const (
	StateIdle          = "idle"
	StateAwaitingName  = "awaiting_name"
	StateAwaitingEmail = "awaiting_email"
	StateAwaitingScore = "awaiting_score"
)

const (
	EventStartForm    = "start_form"
	EventNameEntered  = "name_entered"
	EventEmailEntered = "email_entered"
	EventScoreSaved   = "score_saved"
	EventCancel       = "cancel"
)

const (
	CommandStart  = "/start"
	CommandForm   = "/form"
	CommandReport = "/report"
	CommandExit   = "/exit"
)

// Bare keywords that leave the form, matched case-insensitively.
var exitKeywords = []string{"exit", "выход"}

const (
	ScoreMin = 1
	ScoreMax = 10
)
