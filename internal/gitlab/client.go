// Package gitlab implements the upstream API surface against a GitLab
// REST endpoint. All listings are fully paginated and retried on
// transient failures before being handed upstream.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"resty.dev/v3"

	"github.com/uschtwill/hiersnap/internal/debug"
	"github.com/uschtwill/hiersnap/internal/types"
)

// ErrNotFound indicates the upstream reported 404 for the record.
var ErrNotFound = errors.New("upstream record not found")

const (
	defaultPerPage   = 100
	defaultTimeout   = 30 * time.Second
	defaultRetries   = 3
	defaultRetryWait = 2 * time.Second
)

// Options configures a Client. BaseURL points at the API root, e.g.
// "https://gitlab.example.com/api/v4".
type Options struct {
	BaseURL    string
	Token      string
	PerPage    int
	Timeout    time.Duration
	RetryCount int
}

// Client talks to one GitLab deployment.
type Client struct {
	http    *resty.Client
	perPage int
}

// New builds a client from options. Close releases its transport.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("gitlab: base URL is required")
	}
	if opts.PerPage <= 0 {
		opts.PerPage = defaultPerPage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = defaultRetries
	}

	hc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(defaultRetryWait).
		AddRetryConditions(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	if opts.Token != "" {
		hc.SetHeader("PRIVATE-TOKEN", opts.Token)
	}

	return &Client{http: hc, perPage: opts.PerPage}, nil
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.http.Close()
}

// epicDTO is the wire shape of an epic record.
type epicDTO struct {
	ID          int64    `json:"id"`
	IID         int      `json:"iid"`
	GroupID     int      `json:"group_id"`
	ParentID    *int64   `json:"parent_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	State       string   `json:"state"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	ClosedAt    *string  `json:"closed_at"`
	StartDate   *string  `json:"start_date"`
	DueDate     *string  `json:"due_date"`
	Labels      []string `json:"labels"`
	WebURL      string   `json:"web_url"`
}

// issueDTO is the wire shape of an issue record.
type issueDTO struct {
	ID        int64    `json:"id"`
	IID       int      `json:"iid"`
	ProjectID int      `json:"project_id"`
	Title     string   `json:"title"`
	State     string   `json:"state"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
	ClosedAt  *string  `json:"closed_at"`
	DueDate   *string  `json:"due_date"`
	Labels    []string `json:"labels"`
	WebURL    string   `json:"web_url"`
}

// GetEpic fetches a single epic by group and local sequence number.
func (c *Client) GetEpic(ctx context.Context, group, iid int) (*types.WorkItem, error) {
	var dto epicDTO
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("group", strconv.Itoa(group)).
		SetPathParam("iid", strconv.Itoa(iid)).
		SetResult(&dto).
		Get("/groups/{group}/epics/{iid}")
	if err != nil {
		return nil, fmt.Errorf("get epic %d#%d: %w", group, iid, err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("epic %d#%d: %w", group, iid, ErrNotFound)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("get epic %d#%d: %s", group, iid, res.Status())
	}
	return epicItem(&dto), nil
}

// ListGroupEpics lists every epic in a group, following pagination.
func (c *Client) ListGroupEpics(ctx context.Context, group int) ([]*types.WorkItem, error) {
	path := fmt.Sprintf("/groups/%d/epics", group)
	params := map[string]string{"include_descendant_groups": "false"}
	return listPaged(ctx, c, path, params, epicItem)
}

// ListChildEpics lists the direct child epics of an epic.
func (c *Client) ListChildEpics(ctx context.Context, group, parentIID int) ([]*types.WorkItem, error) {
	path := fmt.Sprintf("/groups/%d/epics/%d/epics", group, parentIID)
	return listPaged(ctx, c, path, nil, epicItem)
}

// ListEpicIssues lists the issues attached to an epic.
func (c *Client) ListEpicIssues(ctx context.Context, group, epicIID int) ([]*types.WorkItem, error) {
	path := fmt.Sprintf("/groups/%d/epics/%d/issues", group, epicIID)
	return listPaged(ctx, c, path, nil, issueItem)
}

// listPaged walks X-Next-Page until the upstream stops offering one,
// converting each record as it arrives.
func listPaged[T any](ctx context.Context, c *Client, path string, params map[string]string, conv func(*T) *types.WorkItem) ([]*types.WorkItem, error) {
	var out []*types.WorkItem
	page := 1
	for {
		req := c.http.R().
			SetContext(ctx).
			SetQueryParam("per_page", strconv.Itoa(c.perPage)).
			SetQueryParam("page", strconv.Itoa(page))
		for k, v := range params {
			req.SetQueryParam(k, v)
		}

		var batch []T
		res, err := req.SetResult(&batch).Get(path)
		if err != nil {
			return nil, fmt.Errorf("list %s page %d: %w", path, page, err)
		}
		if !res.IsSuccess() {
			return nil, fmt.Errorf("list %s page %d: %s", path, page, res.Status())
		}
		for i := range batch {
			out = append(out, conv(&batch[i]))
		}

		next := res.Header().Get("X-Next-Page")
		if next == "" {
			break
		}
		n, err := strconv.Atoi(next)
		if err != nil || n <= page {
			break
		}
		page = n
	}
	debug.Logf("gitlab: %s yielded %d records through page %d", path, len(out), page)
	return out, nil
}

func epicItem(dto *epicDTO) *types.WorkItem {
	id := types.ItemID{Kind: types.KindEpic, Container: dto.GroupID, IID: dto.IID}
	item := &types.WorkItem{
		ID:                id,
		Kind:              types.KindEpic,
		InternalRef:       dto.ID,
		DeclaredParentRef: dto.ParentID,
		HomeContainer:     dto.GroupID,
		Title:             dto.Title,
		State:             types.ItemState(dto.State),
		CreatedAt:         parseTimestamp(dto.CreatedAt),
		UpdatedAt:         parseTimestamp(dto.UpdatedAt),
		ClosedAt:          parseTimestampPtr(dto.ClosedAt),
		StartDate:         parseDatePtr(dto.StartDate),
		DueDate:           parseDatePtr(dto.DueDate),
		Labels:            dto.Labels,
		Attrs:             types.AttrMap{},
	}
	if dto.WebURL != "" {
		item.Attrs["web_url"] = dto.WebURL
	}
	if dto.Description != "" {
		item.Attrs["description"] = dto.Description
	}
	return item
}

func issueItem(dto *issueDTO) *types.WorkItem {
	id := types.ItemID{Kind: types.KindIssue, Container: dto.ProjectID, IID: dto.IID}
	item := &types.WorkItem{
		ID:            id,
		Kind:          types.KindIssue,
		InternalRef:   dto.ID,
		HomeContainer: dto.ProjectID,
		Title:         dto.Title,
		State:         types.ItemState(dto.State),
		CreatedAt:     parseTimestamp(dto.CreatedAt),
		UpdatedAt:     parseTimestamp(dto.UpdatedAt),
		ClosedAt:      parseTimestampPtr(dto.ClosedAt),
		DueDate:       parseDatePtr(dto.DueDate),
		Labels:        dto.Labels,
		Attrs:         types.AttrMap{},
	}
	if dto.WebURL != "" {
		item.Attrs["web_url"] = dto.WebURL
	}
	return item
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimestampPtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t := parseTimestamp(*s)
	if t.IsZero() {
		return nil
	}
	return &t
}

// parseDatePtr parses date-only fields ("2006-01-02").
func parseDatePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil
	}
	return &t
}
