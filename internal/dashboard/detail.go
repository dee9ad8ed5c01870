package dashboard

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"jiradash/internal/models"
	"jiradash/internal/tracker"
)

type statusBucket int

const (
	bucketTodo statusBucket = iota
	bucketInProgress
	bucketCompleted
)

var (
	completedStatuses = map[string]struct{}{
		"done": {}, "closed": {}, "resolved": {}, "completed": {},
	}
	inProgressStatuses = map[string]struct{}{
		"in progress": {}, "in review": {}, "testing": {}, "in development": {},
	}
)

// classifyStatus maps a status name onto a progress bucket, ignoring case.
func classifyStatus(name string) statusBucket {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := completedStatuses[name]; ok {
		return bucketCompleted
	}
	if _, ok := inProgressStatuses[name]; ok {
		return bucketInProgress
	}
	return bucketTodo
}

// computeProgress buckets subtask statuses and derives percentages.
func computeProgress(statuses []string) models.Progress {
	p := models.Progress{Total: len(statuses)}
	for _, status := range statuses {
		switch classifyStatus(status) {
		case bucketCompleted:
			p.Completed++
		case bucketInProgress:
			p.InProgress++
		default:
			p.Todo++
		}
	}
	if p.Total == 0 {
		return p
	}
	p.CompletedPercent = percent(p.Completed, p.Total)
	p.InProgressPercent = percent(p.InProgress, p.Total)
	p.TodoPercent = percent(p.Todo, p.Total)
	return p
}

func percent(n, total int) float64 {
	return math.Round(float64(n)/float64(total)*100*100) / 100
}

// IssueDetail fetches an issue with all of its subtasks and summarizes their
// progress, assignees and the issue's backers. Any failed fetch fails the
// whole call.
func (s *Service) IssueDetail(ctx context.Context, key string) (models.IssueDetail, error) {
	issue, err := s.tracker.Issue(ctx, key)
	if err != nil {
		return models.IssueDetail{}, err
	}

	subtasks, err := s.fetchSubtasks(ctx, issue.Fields.Subtasks)
	if err != nil {
		return models.IssueDetail{}, err
	}

	detail := models.IssueDetail{
		Issue: models.Issue{
			Subtask:  s.toSubtask(issue, ""),
			Backers:  decodeBackers(issue.Fields.Custom[s.cfg.Fields.Backers]).Entries(),
			Subtasks: make([]string, 0, len(issue.Fields.Subtasks)),
		},
		Subtasks: make([]models.Subtask, 0, len(subtasks)),
	}
	for _, ref := range issue.Fields.Subtasks {
		detail.Issue.Subtasks = append(detail.Issue.Subtasks, ref.Key)
	}

	assignees := newOrderedSet()
	if name := displayName(issue.Fields.Assignee); name != nil {
		assignees.add(*name)
	}

	statuses := make([]string, 0, len(subtasks))
	for _, sub := range subtasks {
		detail.Subtasks = append(detail.Subtasks, s.toSubtask(sub, issue.Key))
		statuses = append(statuses, refName(sub.Fields.Status))
		if name := displayName(sub.Fields.Assignee); name != nil {
			assignees.add(*name)
		}
	}

	detail.Assignees = assignees.items
	detail.Progress = computeProgress(statuses)
	return detail, nil
}

// fetchSubtasks loads every referenced subtask with bounded concurrency.
// Results keep the order of refs.
func (s *Service) fetchSubtasks(ctx context.Context, refs []tracker.IssueRef) ([]tracker.Issue, error) {
	out := make([]tracker.Issue, len(refs))
	if len(refs) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.cfg.Tracker.SubtaskConcurrency))
	for i, ref := range refs {
		g.Go(func() error {
			sub, err := s.tracker.Issue(gctx, ref.Key)
			if err != nil {
				return fmt.Errorf("fetch subtask %s: %w", ref.Key, err)
			}
			out[i] = sub
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) toSubtask(issue tracker.Issue, parentKey string) models.Subtask {
	f := issue.Fields
	return models.Subtask{
		Key:            issue.Key,
		ParentKey:      parentKey,
		Summary:        f.Summary,
		Description:    f.Description,
		Status:         refName(f.Status),
		IssueType:      typeName(f.IssueType),
		Priority:       optionalRef(f.Priority),
		Assignee:       displayName(f.Assignee),
		Reporter:       displayName(f.Reporter),
		Created:        f.Created,
		Updated:        f.Updated,
		DueDate:        f.DueDate,
		ResolutionDate: f.ResolutionDate,
		StartDate:      s.startDate(f),
	}
}

// orderedSet de-duplicates strings while keeping first-seen order.
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: []string{}}
}

func (o *orderedSet) add(v string) bool {
	if _, ok := o.seen[v]; ok {
		return false
	}
	o.seen[v] = struct{}{}
	o.items = append(o.items, v)
	return true
}
