package articles

type Outcome string

const (
	OutcomeCreated         Outcome = "created"
	OutcomeLinkedExisting  Outcome = "linked_existing"
	OutcomeTagAdded        Outcome = "tag_added"
	OutcomeAlreadySaved    Outcome = "already_saved"
	OutcomeQuotaExceeded   Outcome = "quota_exceeded"
	OutcomeFailed          Outcome = "failed"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeInvalidURL      Outcome = "invalid_url"
)

type decisionKey struct {
	articleExists     bool
	userHasLink       bool
	tagProvided       bool
	tagAlreadyPresent bool
}

// ingestDecisions covers every reachable combination. A link cannot exist
// without the article, and a tag cannot be present without a link.
var ingestDecisions = map[decisionKey]Outcome{
	{articleExists: false}:                    OutcomeCreated,
	{articleExists: false, tagProvided: true}: OutcomeCreated,

	{articleExists: true}:                    OutcomeLinkedExisting,
	{articleExists: true, tagProvided: true}: OutcomeLinkedExisting,

	{articleExists: true, userHasLink: true}:                                          OutcomeAlreadySaved,
	{articleExists: true, userHasLink: true, tagProvided: true, tagAlreadyPresent: true}: OutcomeAlreadySaved,
	{articleExists: true, userHasLink: true, tagProvided: true}:                       OutcomeTagAdded,
}

func decide(key decisionKey) Outcome {
	if outcome, ok := ingestDecisions[key]; ok {
		return outcome
	}
	return OutcomeFailed
}
