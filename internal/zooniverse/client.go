// Package zooniverse talks to the remote subject API.
package zooniverse

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"zooclient/internal/domain"
)

const defaultHTTPTimeout = 30 * time.Second

// NoNetworkError means the request never reached the server. Retrying later
// may succeed.
type NoNetworkError struct {
	Err error
}

func (e *NoNetworkError) Error() string { return fmt.Sprintf("no network: %v", e.Err) }
func (e *NoNetworkError) Unwrap() error { return e.Err }

// RequestFailedError means the server answered but not with usable subjects.
type RequestFailedError struct {
	StatusCode int
	Err        error
}

func (e *RequestFailedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("subject request failed: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("subject request failed: %v", e.Err)
}

func (e *RequestFailedError) Unwrap() error { return e.Err }

// Client fetches new subjects for the configured groups.
type Client struct {
	baseURL    string
	groupIDs   []string
	httpClient *http.Client

	// pickGroup is swapped out in tests for determinism.
	pickGroup func(n int) int
}

// NewClient returns a client for the given API base URL. Each request picks
// one of groupIDs at random, matching how the server spreads subjects over
// groups. A zero timeout falls back to the default.
func NewClient(baseURL string, groupIDs []string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{
		baseURL:    baseURL,
		groupIDs:   groupIDs,
		httpClient: &http.Client{Timeout: timeout},
		pickGroup:  rand.Intn,
	}
}

// wireSubject is the server's JSON shape. Each location is a list of
// mirrors; only the first is used.
type wireSubject struct {
	ID           string `json:"id"`
	ZooniverseID string `json:"zooniverse_id"`
	GroupID      string `json:"group_id"`
	Location     struct {
		Standard  []string `json:"standard"`
		Thumbnail []string `json:"thumbnail"`
		Inverted  []string `json:"inverted"`
	} `json:"location"`
}

// RequestMoreItems asks the server for count new subjects from one of the
// configured groups.
func (c *Client) RequestMoreItems(count int) ([]domain.Subject, error) {
	if count <= 0 {
		return nil, nil
	}

	groupID := ""
	if len(c.groupIDs) > 0 {
		groupID = c.groupIDs[c.pickGroup(len(c.groupIDs))]
	}

	resp, err := c.httpClient.Get(c.subjectsURL(groupID, count))
	if err != nil {
		// A transport-level failure (DNS, refused, timeout) means no
		// response ever arrived; that is a network problem, not a server
		// rejection.
		return nil, &NoNetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RequestFailedError{StatusCode: resp.StatusCode}
	}

	var wire []wireSubject
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &RequestFailedError{Err: fmt.Errorf("decoding subjects: %w", err)}
	}

	subjects := make([]domain.Subject, 0, len(wire))
	for _, w := range wire {
		s := domain.Subject{
			SubjectID:    w.ID,
			ZooniverseID: w.ZooniverseID,
			GroupID:      w.GroupID,
		}
		if s.GroupID == "" {
			s.GroupID = groupID
		}
		if len(w.Location.Standard) > 0 {
			s.LocationStandard = w.Location.Standard[0]
		}
		if len(w.Location.Thumbnail) > 0 {
			s.LocationThumbnail = w.Location.Thumbnail[0]
		}
		if len(w.Location.Inverted) > 0 {
			s.LocationInverted = w.Location.Inverted[0]
		}
		if s.SubjectID == "" || s.LocationStandard == "" {
			return nil, &RequestFailedError{Err: fmt.Errorf("subject missing id or image location")}
		}
		subjects = append(subjects, s)
	}
	return subjects, nil
}

func (c *Client) subjectsURL(groupID string, count int) string {
	u := c.baseURL + "/groups/" + url.PathEscape(groupID) + "/subjects"
	if groupID == "" {
		u = c.baseURL + "/subjects"
	}
	return u + "?limit=" + strconv.Itoa(count)
}
