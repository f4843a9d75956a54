// Package teams renders summaries as adaptive cards and posts them to an incoming
// webhook.
package teams

const (
	contentTypeAdaptiveCard = "application/vnd.microsoft.card.adaptive"
	cardSchema              = "http://adaptivecards.io/schemas/adaptive-card.json"
	cardVersion             = "1.4"
)

// Payload is the message envelope accepted by the webhook.
type Payload struct {
	Type        string       `json:"type"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	ContentType string       `json:"contentType"`
	ContentURL  *string      `json:"contentUrl"`
	Content     AdaptiveCard `json:"content"`
}

type AdaptiveCard struct {
	Schema  string    `json:"$schema"`
	Type    string    `json:"type"`
	Version string    `json:"version"`
	Body    []Element `json:"body"`
	MSTeams *MSTeams  `json:"msteams,omitempty"`
}

// MSTeams holds Teams-specific card options.
type MSTeams struct {
	Width string `json:"width,omitempty"`
}

// Element is a body element. Only the fields relevant to its Type are set.
type Element struct {
	Type      string    `json:"type"`
	Text      string    `json:"text,omitempty"`
	Size      string    `json:"size,omitempty"`
	Weight    string    `json:"weight,omitempty"`
	Color     string    `json:"color,omitempty"`
	Wrap      bool      `json:"wrap,omitempty"`
	Spacing   string    `json:"spacing,omitempty"`
	IsSubtle  bool      `json:"isSubtle,omitempty"`
	Separator bool      `json:"separator,omitempty"`
	Facts     []Fact    `json:"facts,omitempty"`
	Items     []Element `json:"items,omitempty"`
	Style     string    `json:"style,omitempty"`
}

type Fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

func newPayload(body []Element) Payload {
	return Payload{
		Type: "message",
		Attachments: []Attachment{{
			ContentType: contentTypeAdaptiveCard,
			Content: AdaptiveCard{
				Schema:  cardSchema,
				Type:    "AdaptiveCard",
				Version: cardVersion,
				Body:    body,
				MSTeams: &MSTeams{Width: "Full"},
			},
		}},
	}
}

func title(text, color string) Element {
	return Element{Type: "TextBlock", Text: text, Size: "Large", Weight: "Bolder", Color: color, Wrap: true}
}

func heading(text string) Element {
	return Element{Type: "TextBlock", Text: text, Weight: "Bolder", Wrap: true, Spacing: "Medium"}
}

func subtle(text string) Element {
	return Element{Type: "TextBlock", Text: text, IsSubtle: true, Wrap: true, Spacing: "Small"}
}

func separator() Element {
	return Element{Type: "TextBlock", Text: "---", Separator: true}
}

func factSet(facts []Fact) Element {
	return Element{Type: "FactSet", Facts: facts}
}
