package caldav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tazhate/calkit/internal/calstore"
	"github.com/tazhate/calkit/internal/domain"
)

const (
	// Apple iCloud CalDAV endpoint
	DefaultiCloudURL = "https://caldav.icloud.com"

	requestTimeout = 30 * time.Second
)

// Client is a calendar store backed by a CalDAV server. Events live in
// VEVENT resources and reminders in VTODO resources; a recurring series is
// one resource holding the master, its overrides and its EXDATEs.
type Client struct {
	baseURL      string
	username     string
	password     string
	calendarPath string // Optional: default calendar for new events
	listPath     string // Optional: default calendar for new reminders
	logger       *zap.Logger

	mu     sync.Mutex
	client *caldav.Client
}

var _ calstore.Store = (*Client)(nil)

// NewClient creates a new CalDAV client
func NewClient(baseURL, username, password string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultiCloudURL
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		logger:   logger,
	}
}

// IsConfigured returns true if the client has credentials
func (c *Client) IsConfigured() bool {
	return c.username != "" && c.password != ""
}

// SetDefaults sets the calendars used when a create names none. Either
// may be empty.
func (c *Client) SetDefaults(calendarPath, listPath string) {
	c.calendarPath = calendarPath
	c.listPath = listPath
}

// connect establishes connection to CalDAV server
func (c *Client) connect() (*caldav.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: requestTimeout,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// AuthError is returned when the server rejects the credentials.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("caldav: authentication rejected (%d %s)", e.StatusCode, http.StatusText(e.StatusCode))
}

// basicAuthTransport adds Basic Auth to HTTP requests and turns 401/403
// responses into *AuthError.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, &AuthError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func isAuthError(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	// go-webdav does not always wrap transport errors
	msg := err.Error()
	return strings.Contains(msg, "401") || strings.Contains(msg, "403")
}

// === Authorization ===

// Authorization checks the credentials against the server. Missing
// credentials mean access was never set up; rejected credentials mean
// access is denied.
func (c *Client) Authorization(ctx context.Context, kind domain.Kind) (domain.AuthState, error) {
	if !c.IsConfigured() {
		return domain.AuthNotDetermined, nil
	}
	if _, err := c.homeSet(ctx); err != nil {
		if isAuthError(err) {
			return domain.AuthDenied, nil
		}
		return "", err
	}
	return domain.AuthAuthorized, nil
}

// RequestAccess cannot prompt anyone; access follows the configured
// credentials.
func (c *Client) RequestAccess(ctx context.Context, kind domain.Kind) (domain.AuthState, error) {
	return c.Authorization(ctx, kind)
}

// === Containers ===

func (c *Client) homeSet(ctx context.Context) (string, error) {
	client, err := c.connect()
	if err != nil {
		return "", err
	}

	// Find the user's calendar home
	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("find home set: %w", err)
	}
	return homeSet, nil
}

// Containers returns the calendars that can hold items of kind.
func (c *Client) Containers(ctx context.Context, kind domain.Kind) ([]domain.Container, error) {
	homeSet, err := c.homeSet(ctx)
	if err != nil {
		return nil, err
	}

	client, err := c.connect()
	if err != nil {
		return nil, err
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	defaultPath := c.defaultPath(kind)
	var result []domain.Container
	for _, cal := range cals {
		if !supports(cal.SupportedComponentSet, componentName(kind)) {
			continue
		}
		result = append(result, domain.Container{
			ID:                  cal.Path,
			Title:               cal.Name,
			Kind:                kind,
			AllowsModifications: true,
			IsDefault:           cal.Path == defaultPath,
		})
	}
	return result, nil
}

func supports(set []string, comp string) bool {
	// Servers that omit the set accept every component
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if strings.EqualFold(s, comp) {
			return true
		}
	}
	return false
}

func (c *Client) defaultPath(kind domain.Kind) string {
	if kind == domain.KindReminder {
		return c.listPath
	}
	return c.calendarPath
}

func (c *Client) DefaultContainer(ctx context.Context, kind domain.Kind) (domain.Container, error) {
	containers, err := c.Containers(ctx, kind)
	if err != nil {
		return domain.Container{}, err
	}
	if len(containers) == 0 {
		return domain.Container{}, calstore.ErrNoContainer
	}
	for _, ct := range containers {
		if ct.IsDefault {
			return ct, nil
		}
	}
	return containers[0], nil
}

func (c *Client) selectContainers(ctx context.Context, kind domain.Kind, ids []string) ([]domain.Container, error) {
	all, err := c.Containers(ctx, kind)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return all, nil
	}
	var out []domain.Container
	for _, ct := range all {
		for _, id := range ids {
			if ct.ID == id {
				out = append(out, ct)
				break
			}
		}
	}
	return out, nil
}

// === Queries ===

func (c *Client) query(ctx context.Context, ct domain.Container, kind domain.Kind, filter caldav.CompFilter) ([]*object, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	filter.Name = componentName(kind)
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{filter},
		},
	}

	objects, err := client.QueryCalendar(ctx, ct.ID, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar %s: %w", ct.ID, err)
	}

	out := make([]*object, 0, len(objects))
	for _, o := range objects {
		obj, err := decodeObject(o.Path, ct, o.Data, kind)
		if err != nil {
			c.logger.Warn("skipping calendar object", zap.String("path", o.Path), zap.Error(err))
			continue
		}
		out = append(out, obj)
	}
	return out, nil
}

func (c *Client) Events(ctx context.Context, from, to time.Time, containerIDs []string) ([]*calstore.Item, error) {
	containers, err := c.selectContainers(ctx, domain.KindEvent, containerIDs)
	if err != nil {
		return nil, err
	}

	var out []*calstore.Item
	for _, ct := range containers {
		objects, err := c.query(ctx, ct, domain.KindEvent, caldav.CompFilter{Start: from, End: to})
		if err != nil {
			return nil, err
		}
		for _, obj := range objects {
			if obj.Single != nil {
				if calstore.Overlaps(obj.Single, from, to) {
					out = append(out, obj.Single)
				}
				continue
			}
			occ, err := obj.Series.Occurrences(from, to)
			if err != nil {
				return nil, fmt.Errorf("expand %s: %w", obj.Path, err)
			}
			out = append(out, occ...)
		}
	}

	calstore.SortByAnchor(out)
	return out, nil
}

func (c *Client) Reminders(ctx context.Context, containerIDs []string) ([]*calstore.Item, error) {
	containers, err := c.selectContainers(ctx, domain.KindReminder, containerIDs)
	if err != nil {
		return nil, err
	}

	var out []*calstore.Item
	for _, ct := range containers {
		objects, err := c.query(ctx, ct, domain.KindReminder, caldav.CompFilter{})
		if err != nil {
			return nil, err
		}
		for _, obj := range objects {
			if obj.Single != nil {
				out = append(out, obj.Single)
			} else {
				out = append(out, obj.Series.Item())
			}
		}
	}
	return out, nil
}

// find locates the resource holding uid.
func (c *Client) find(ctx context.Context, kind domain.Kind, uid string) (*object, error) {
	containers, err := c.Containers(ctx, kind)
	if err != nil {
		return nil, err
	}
	for _, ct := range containers {
		objects, err := c.query(ctx, ct, kind, caldav.CompFilter{
			Props: []caldav.PropFilter{{
				Name:      ical.PropUID,
				TextMatch: &caldav.TextMatch{Text: uid},
			}},
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range objects {
			if obj.UID() == uid {
				return obj, nil
			}
		}
	}
	return nil, calstore.ErrNotFound
}

func (c *Client) Item(ctx context.Context, kind domain.Kind, id string) (*calstore.Item, error) {
	if uid, rid, ok := calstore.SplitOccurrenceID(id); ok {
		obj, err := c.find(ctx, kind, uid)
		if err != nil {
			return nil, err
		}
		if obj.Series == nil {
			return nil, calstore.ErrNotFound
		}
		return obj.Series.Occurrence(rid)
	}

	obj, err := c.find(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if obj.Single != nil {
		return obj.Single, nil
	}
	return obj.Series.Item(), nil
}

func (c *Client) FirstOccurrence(ctx context.Context, kind domain.Kind, seriesID string) (*calstore.Item, error) {
	obj, err := c.find(ctx, kind, seriesID)
	if err != nil {
		return nil, err
	}
	if obj.Series == nil {
		return nil, calstore.ErrNotFound
	}
	return obj.Series.FirstOpen()
}

// === Writes ===

func (c *Client) put(ctx context.Context, obj *object) error {
	client, err := c.connect()
	if err != nil {
		return err
	}
	if _, err := client.PutCalendarObject(ctx, obj.Path, encodeObject(obj)); err != nil {
		return fmt.Errorf("put %s: %w", obj.Path, err)
	}
	return nil
}

func (c *Client) remove(ctx context.Context, path string) error {
	client, err := c.connect()
	if err != nil {
		return err
	}
	if err := client.RemoveAll(ctx, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func objectPath(containerPath, uid string) string {
	if !strings.HasSuffix(containerPath, "/") {
		containerPath += "/"
	}
	return containerPath + uid + ".ics"
}

func (c *Client) Save(ctx context.Context, item *calstore.Item, span calstore.Span) (*calstore.Item, error) {
	if item.ID == "" {
		return c.create(ctx, item)
	}

	switch item.Handle {
	case calstore.HandleSingle:
		obj, err := c.find(ctx, item.Kind, item.ID)
		if err != nil {
			return nil, err
		}
		if obj.Single == nil {
			return nil, fmt.Errorf("save %s: %w", item.ID, calstore.ErrUnsupportedSpan)
		}
		if item.RRule != "" {
			series, err := calstore.NewSeries(item.Clone())
			if err != nil {
				return nil, err
			}
			obj.Single, obj.Series = nil, series
		} else {
			obj.Single = item
		}
		if err := c.put(ctx, obj); err != nil {
			return nil, err
		}

	case calstore.HandleSeries:
		obj, err := c.find(ctx, item.Kind, item.ID)
		if err != nil {
			return nil, err
		}
		if obj.Series == nil {
			return nil, calstore.ErrNotFound
		}
		if err := obj.Series.ReplaceMaster(item); err != nil {
			return nil, err
		}
		if err := c.put(ctx, obj); err != nil {
			return nil, err
		}

	case calstore.HandleOccurrence:
		obj, err := c.find(ctx, item.Kind, item.SeriesID)
		if err != nil {
			return nil, err
		}
		if obj.Series == nil {
			return nil, calstore.ErrNotFound
		}
		tail, saved, err := obj.Series.Apply(item, span, uuid.NewString)
		if err != nil {
			return nil, err
		}
		if tail == nil {
			if err := c.put(ctx, obj); err != nil {
				return nil, err
			}
			return c.Item(ctx, item.Kind, saved.ID)
		}

		// New series first, so a failed split never loses occurrences.
		tailObj := &object{
			Path:      objectPath(obj.Container.ID, tail.Master.ID),
			Container: obj.Container,
			Series:    tail,
		}
		if err := c.put(ctx, tailObj); err != nil {
			return nil, err
		}
		if err := c.put(ctx, obj); err != nil {
			if rmErr := c.remove(ctx, tailObj.Path); rmErr != nil {
				c.logger.Error("split rollback failed", zap.String("path", tailObj.Path), zap.Error(rmErr))
			}
			return nil, err
		}
		c.logger.Debug("series split",
			zap.String("series", obj.UID()),
			zap.String("tail", tail.Master.ID),
		)
		return c.Item(ctx, item.Kind, saved.ID)

	default:
		return nil, fmt.Errorf("save %s: unknown handle %q", item.ID, item.Handle)
	}

	return c.Item(ctx, item.Kind, item.ID)
}

func (c *Client) create(ctx context.Context, item *calstore.Item) (*calstore.Item, error) {
	ct, err := c.containerFor(ctx, item)
	if err != nil {
		return nil, err
	}

	it := item.Clone()
	it.ID = uuid.NewString()
	it.Created = time.Now().UTC()
	obj := &object{Path: objectPath(ct.ID, it.ID), Container: ct}
	if it.RRule != "" {
		it.Handle = calstore.HandleSeries
		series, err := calstore.NewSeries(it)
		if err != nil {
			return nil, fmt.Errorf("invalid rrule %q: %w", it.RRule, err)
		}
		obj.Series = series
	} else {
		it.Handle = calstore.HandleSingle
		obj.Single = it
	}

	if err := c.put(ctx, obj); err != nil {
		return nil, err
	}
	c.logger.Debug("item created", zap.String("uid", it.ID), zap.String("path", obj.Path))
	return c.Item(ctx, it.Kind, it.ID)
}

func (c *Client) containerFor(ctx context.Context, item *calstore.Item) (domain.Container, error) {
	if item.ContainerID == "" {
		return c.DefaultContainer(ctx, item.Kind)
	}
	containers, err := c.Containers(ctx, item.Kind)
	if err != nil {
		return domain.Container{}, err
	}
	for _, ct := range containers {
		if ct.ID == item.ContainerID {
			return ct, nil
		}
	}
	return domain.Container{}, calstore.ErrNoContainer
}

func (c *Client) Remove(ctx context.Context, item *calstore.Item, span calstore.Span) error {
	switch item.Handle {
	case calstore.HandleSingle, calstore.HandleSeries:
		obj, err := c.find(ctx, item.Kind, item.ID)
		if err != nil {
			return err
		}
		return c.remove(ctx, obj.Path)

	case calstore.HandleOccurrence:
		if item.RecurrenceID == nil {
			return fmt.Errorf("remove %s: %w", item.ID, calstore.ErrUnsupportedSpan)
		}
		obj, err := c.find(ctx, item.Kind, item.SeriesID)
		if err != nil {
			return err
		}
		if obj.Series == nil {
			return calstore.ErrNotFound
		}
		gone, err := obj.Series.Drop(*item.RecurrenceID, span)
		if err != nil {
			return err
		}
		if gone {
			return c.remove(ctx, obj.Path)
		}
		return c.put(ctx, obj)

	default:
		return fmt.Errorf("remove %s: unknown handle %q", item.ID, item.Handle)
	}
}

func (c *Client) Capabilities() calstore.Capabilities {
	return calstore.Capabilities{FutureEdits: true, FutureDeletes: true}
}

// SerializeCalendar converts calendar to string (for debugging)
func SerializeCalendar(cal *ical.Calendar) string {
	var buf bytes.Buffer
	enc := ical.NewEncoder(&buf)
	_ = enc.Encode(cal)
	return buf.String()
}
