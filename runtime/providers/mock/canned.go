package mock

// canned holds schema-valid replies so a run with the mock provider
// completes offline.
var canned = map[string]string{
	"analysis": `{
  "change_type": "feature",
  "technical_summary": "Adds a bounded review loop to the publishing workflow.",
  "business_impact": "Drafts reach readers faster with fewer manual edits.",
  "key_changes": ["Introduce a review checkpoint", "Route on a publishing decision"],
  "technical_details": ["The loop stops after the configured number of passes"],
  "affected_components": ["workflow", "stages"],
  "narrative_angle": "How a small state machine keeps humans in control of generated drafts.",
  "context_assessment": "sufficient"
}`,
	"document": `{
  "title": "Keeping Humans in the Loop",
  "author": "BlueStar",
  "date": "2025-01-01",
  "tags": ["workflow", "go"],
  "summary": "A look at the review loop that gates every generated post.",
  "body": [
    {"type": "heading", "level": 2, "content": "Why a review loop"},
    {"type": "paragraph", "content": "Generated drafts are useful starting points, but a person decides what ships."},
    {"type": "list", "items": ["Bounded passes", "Explicit feedback", "A final publishing choice"]},
    {"type": "code", "language": "go", "content": "next := workflow.RouteIteration(n, max, satisfied)"}
  ]
}`,
}
