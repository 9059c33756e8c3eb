package events

const (
	SubjectRecalcRequest   = "flexing.recalc.request"
	SubjectRecalcCompleted = "flexing.recalc.completed"
	SubjectAuditFlagged    = "flexing.audit.flagged"

	StreamName   = "FLEXING_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

var StreamSubjects = []string{"flexing.evaluation.>", "flexing.recalc.>", "flexing.audit.>"}

func SubjectEvaluationSubmitted(evaluationID string) string {
	return "flexing.evaluation." + evaluationID + ".submitted"
}

func SubjectEvaluationRescored(evaluationID string) string {
	return "flexing.evaluation." + evaluationID + ".rescored"
}
