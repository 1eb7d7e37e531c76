package registry

// Submission is the PUT /beacon request body. Image may be a remote URL, an
// inline data: payload, or the "none" sentinel.
type Submission struct {
	URL         string `json:"url" binding:"required"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	Image       string `json:"image"`
	Adult       bool   `json:"adult"`
	Tags        string `json:"tags"`
}

// Outcome classifies what an upsert did.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeUpdated
	OutcomeUnchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}
