package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/go-github/v57/github"

	"github.com/henrib/lumen/internal/domain"
)

// AutomationEvent is one normalized activity event extracted from a webhook.
type AutomationEvent struct {
	Title          string
	Content        string
	IsPublic       bool
	Messages       []string
	DeliveryID     string
	SummaryPayload string
}

// IngestResult reports what an ingestion run did.
type IngestResult struct {
	Created       int      `json:"created"`
	Skipped       int      `json:"skipped"`
	Reason        string   `json:"reason,omitempty"`
	EntryIDs      []int64  `json:"entry_ids,omitempty"`
	RoadmapItemID *int64   `json:"roadmap_item_id,omitempty"`
	Matched       string   `json:"matched,omitempty"`
	Titles        []string `json:"titles,omitempty"`
}

// EntryDeduper checks whether a delivery marker already exists in stored
// entries.
type EntryDeduper interface {
	ContainsMarker(ctx context.Context, marker string) (bool, error)
}

// DedupMarker is the idempotency token embedded in every generated entry.
// Re-delivered webhooks are detected by searching stored content for it.
func DedupMarker(deliveryID string) string {
	return "GitHub Delivery ID: " + deliveryID
}

// ParsePushEvent converts a push webhook into a single aggregated event.
// Pushes with no commits (branch deletes, tag-only pushes) yield nothing.
func ParsePushEvent(event *github.PushEvent, deliveryID string) []AutomationEvent {
	if event == nil || len(event.Commits) == 0 {
		return nil
	}

	repo := event.GetRepo().GetFullName()
	branch := strings.TrimPrefix(event.GetRef(), "refs/heads/")

	messages := make([]string, 0, len(event.Commits))
	var lines []string
	for _, c := range event.Commits {
		msg := strings.TrimSpace(c.GetMessage())
		if msg == "" {
			continue
		}
		messages = append(messages, msg)
		lines = append(lines, "- "+firstLine(msg))
	}
	if len(messages) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\nBranch: %s\nCommits: %d\n\n", repo, branch, len(messages))
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n" + DedupMarker(deliveryID))

	return []AutomationEvent{{
		Title:          fmt.Sprintf("GitHub push • %s • %s (%d commits)", repo, branch, len(messages)),
		Content:        b.String(),
		IsPublic:       true,
		Messages:       messages,
		DeliveryID:     deliveryID,
		SummaryPayload: strings.Join(messages, "\n"),
	}}
}

var supportedPRActions = map[string]bool{
	"opened":           true,
	"closed":           true,
	"reopened":         true,
	"ready_for_review": true,
}

// ParsePullRequestEvent converts a pull request webhook into one event.
// Actions outside the supported set (labels, syncs, reviews) are dropped.
func ParsePullRequestEvent(event *github.PullRequestEvent, deliveryID string) []AutomationEvent {
	if event == nil || event.GetPullRequest() == nil {
		return nil
	}
	action := event.GetAction()
	if !supportedPRActions[action] {
		return nil
	}

	pr := event.GetPullRequest()
	repo := event.GetRepo().GetFullName()

	describedAction := action
	if action == "closed" && pr.GetMerged() {
		describedAction = "merged (closed)"
	}

	body := strings.TrimSpace(pr.GetBody())
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\nPull request: #%d %s\nAction: %s\n", repo, pr.GetNumber(), pr.GetTitle(), describedAction)
	if body != "" {
		fmt.Fprintf(&b, "\n%s\n", body)
	}
	b.WriteString("\n" + DedupMarker(deliveryID))

	messages := []string{pr.GetTitle()}
	if body != "" {
		messages = append(messages, body)
	}

	return []AutomationEvent{{
		Title:          fmt.Sprintf("GitHub PR • %s • #%d %s", repo, pr.GetNumber(), describedAction),
		Content:        b.String(),
		IsPublic:       true,
		Messages:       messages,
		DeliveryID:     deliveryID,
		SummaryPayload: strings.Join(messages, "\n"),
	}}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// IngestService turns automation events into roadmap-linked learning
// entries. Summarization and matching are best effort; only storage
// failures abort a run.
type IngestService struct {
	entries   EntryDeduper
	tx        TxRunner
	roadmap   RoadmapReader
	completer Completer
	matcher   *TaxonomyMatcher
}

// NewIngestService creates an IngestService. The completer may be nil, which
// disables summarization; entries then carry the raw event content only.
func NewIngestService(entries EntryDeduper, tx TxRunner, roadmap RoadmapReader, completer Completer, matcher *TaxonomyMatcher) *IngestService {
	if matcher == nil {
		matcher = NewTaxonomyMatcher(DefaultMatchPolicy())
	}
	return &IngestService{entries: entries, tx: tx, roadmap: roadmap, completer: completer, matcher: matcher}
}

// Process ingests a batch of events from one webhook delivery. All entries
// from the batch are created in a single transaction; a duplicate delivery
// skips the whole batch.
func (s *IngestService) Process(ctx context.Context, events []AutomationEvent) (*IngestResult, error) {
	if len(events) == 0 {
		return &IngestResult{Reason: "no_entries"}, nil
	}

	marker := DedupMarker(events[0].DeliveryID)
	seen, err := s.entries.ContainsMarker(ctx, marker)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "dedup check failed", err)
	}
	if seen {
		log.Printf("ingest: duplicate delivery %s, skipping %d events", events[0].DeliveryID, len(events))
		return &IngestResult{Skipped: len(events), Reason: "duplicate_delivery"}, nil
	}

	sections, err := s.roadmap.ListSections(ctx)
	if err != nil {
		log.Printf("ingest: roadmap unavailable, entries will be unlinked: %v", err)
		sections = nil
	}

	// Provider calls happen before the transaction opens so a slow or
	// failing LLM never holds a database connection.
	planned := make([]domain.LogEntry, 0, len(events))
	result := &IngestResult{}
	for _, ev := range events {
		entry := s.planEntry(ctx, ev, sections, result)
		planned = append(planned, entry)
	}

	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		for i := range planned {
			if err := repos.Entries().Create(ctx, &planned[i]); err != nil {
				return err
			}
			result.EntryIDs = append(result.EntryIDs, planned[i].ID)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "entry creation failed", err)
	}

	result.Created = len(planned)
	return result, nil
}

func (s *IngestService) planEntry(ctx context.Context, ev AutomationEvent, sections []*domain.RoadmapSection, result *IngestResult) domain.LogEntry {
	summary, hints := s.summarize(ctx, ev, sections)

	match := s.matcher.Match(sections, summary, ev.Content, ev.Messages, hints)

	title := ev.Title
	if match != nil {
		title = fmt.Sprintf("%d. %s", match.Section.Order, match.Section.Title)
	} else if summary != "" {
		title = "Learning update"
	}

	parts := make([]string, 0, 3)
	if summary != "" {
		parts = append(parts, summary)
	}
	if match != nil {
		parts = append(parts, fmt.Sprintf("Related to: %s > %s", match.Section.Title, match.Item.Title))
	}
	parts = append(parts, "---\nRaw event:\n"+ev.Content)

	entry := domain.LogEntry{
		Title:    title,
		Content:  strings.Join(parts, "\n\n"),
		IsPublic: ev.IsPublic,
	}
	if match != nil {
		itemID := match.Item.ID
		entry.RoadmapItemID = &itemID
		result.RoadmapItemID = &itemID
		result.Matched = match.Section.Title + " > " + match.Item.Title
	}
	result.Titles = append(result.Titles, title)
	return entry
}

const summarySystemPrompt = "You summarize a developer's GitHub activity as a learning log " +
	"entry. Write 1-2 sentences describing what was learned or built, optionally followed by " +
	"up to 3 short bullet points, under 120 words total. Focus on skills and concepts. Never " +
	"mention repository names, branch names, delivery identifiers, or author names. If the " +
	"work clearly relates to one learning topic, end with a final line exactly in the form: " +
	"Roadmap: <topic title> | confidence: <0.0-1.0>"

var roadmapHintRe = regexp.MustCompile(`(?mi)^\s*Roadmap:\s*(.+?)\s*\|\s*confidence:\s*([0-9.]+)\s*$`)

// summarize produces an LLM summary of the event plus any roadmap hint it
// suggests. Failures degrade to the raw event content.
func (s *IngestService) summarize(ctx context.Context, ev AutomationEvent, sections []*domain.RoadmapSection) (string, []TaxonomyCandidate) {
	if s.completer == nil {
		return "", nil
	}

	user := "Activity:\n" + ev.SummaryPayload
	if len(sections) > 0 {
		var topics []string
		for _, section := range sections {
			for _, item := range section.Items {
				topics = append(topics, item.Title)
			}
		}
		user += "\n\nKnown learning topics:\n" + strings.Join(topics, "\n")
	}

	raw, err := s.completer.Complete(ctx, summarySystemPrompt, user, 0.3, 512)
	if err != nil {
		log.Printf("ingest: summarization failed, storing raw event: %v", err)
		return "", nil
	}

	var hints []TaxonomyCandidate
	if m := roadmapHintRe.FindStringSubmatch(raw); m != nil {
		confidence, perr := strconv.ParseFloat(m[2], 64)
		if perr == nil {
			hints = append(hints, TaxonomyCandidate{ItemTitle: m[1], Confidence: confidence})
		}
		raw = roadmapHintRe.ReplaceAllString(raw, "")
	}
	return strings.TrimSpace(raw), hints
}
