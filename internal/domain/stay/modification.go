package stay

import (
	"context"
	"fmt"
)

// ExtensionDecision is the result of CheckExtension. Existing is set whenever the stay was found.
type ExtensionDecision struct {
	Outcome
	Existing *Stay
}

// CheckExtension decides whether the stay identified by the candidate's guest, unit and
// check-in date may grow to candidate.Nights.
func CheckExtension(ctx context.Context, q Queries, c Candidate) (ExtensionDecision, error) {
	existing, err := q.FindOne(ctx, c.GuestName, c.UnitID, c.CheckIn)
	if err != nil {
		return ExtensionDecision{}, fmt.Errorf("locate stay: %w", err)
	}
	if existing == nil {
		return ExtensionDecision{Outcome: Rejected(ReasonNotFound)}, nil
	}
	if c.Nights <= existing.Nights() {
		return ExtensionDecision{Outcome: Rejected(ReasonCannotShorten), Existing: existing}, nil
	}

	c.ExcludeID = existing.ID()
	outcome, err := evaluate(ctx, q, c, intervalRules)
	if err != nil {
		return ExtensionDecision{}, err
	}
	return ExtensionDecision{Outcome: outcome, Existing: existing}, nil
}
