package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Slack posts notifications to an incoming-webhook URL. An empty URL
// disables the channel.
type Slack struct {
	url    string
	client *http.Client
}

// NewSlack creates a Slack channel for the given webhook URL.
func NewSlack(url string) *Slack {
	return &Slack{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string `json:"color"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Footer string `json:"footer,omitempty"`
}

func severityColor(s Severity) string {
	switch s {
	case SeveritySuccess:
		return "good"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "danger"
	default:
		return "#439FE0"
	}
}

// Send posts the notification as a single-attachment message.
func (s *Slack) Send(n Notification) error {
	if s.url == "" {
		return nil
	}

	msg := slackMessage{
		Text: n.Title,
		Attachments: []slackAttachment{
			{
				Color:  severityColor(n.Severity),
				Title:  n.Issue,
				Text:   n.Message,
				Footer: "julesq",
			},
		},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}
