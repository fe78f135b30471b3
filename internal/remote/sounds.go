package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/abelbrown/soundprints/internal/sound"
)

// Endpoint paths, relative to the base URL.
const (
	pathSounds      = "sounds"
	pathRecent      = "sounds/recent"
	pathUpload      = "sounds/upload"
	pathResourceFmt = "sounds/%s/resourceUrl"
)

type wireLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type wireUser struct {
	ID              string `json:"id"`
	DisplayName     string `json:"displayName"`
	ProfileImageURL string `json:"profileImageUrl"`
}

type wireSound struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Location       *wireLocation `json:"location"`
	User           *wireUser     `json:"user"`
	Type           string        `json:"type"`
	Duration       float64       `json:"duration"`       // seconds
	Distance       *float64      `json:"distance"`       // meters
	SubmissionDate float64       `json:"submissionDate"` // unix seconds
}

type soundsResponse struct {
	Sounds []wireSound `json:"sounds"`
}

type resourceResponse struct {
	URL            string  `json:"url"`
	ExpirationDate float64 `json:"expirationDate"`
}

func (w wireSound) item() sound.Item {
	it := sound.Item{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Category:    sound.Category(w.Type),
		Duration:    time.Duration(w.Duration * float64(time.Second)),
		Distance:    w.Distance,
	}
	if it.Category == "" {
		it.Category = sound.CategoryNormal
	}
	if w.Location != nil {
		it.Location = &sound.Location{Lat: w.Location.Lat, Lon: w.Location.Lon}
	}
	if w.User != nil {
		it.Author = sound.Author{ID: w.User.ID, DisplayName: w.User.DisplayName, ProfileImageURL: w.User.ProfileImageURL}
	}
	if w.SubmissionDate > 0 {
		it.CreatedAt = unixTime(w.SubmissionDate)
	}
	return it
}

func unixTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}

// unixSeconds keeps the fraction so a cursor taken from a fractional
// submissionDate is sent back unchanged.
func unixSeconds(t time.Time) string {
	return formatFloat(float64(t.Unix()) + float64(t.Nanosecond())/1e9)
}

func items(ws []wireSound) []sound.Item {
	out := make([]sound.Item, 0, len(ws))
	for _, w := range ws {
		if w.ID == "" {
			continue
		}
		out = append(out, w.item())
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FetchByLocation returns sounds ordered by ascending distance from
// q.Origin, farther than q.MinDistance and within q.MaxDistance.
func (c *Client) FetchByLocation(ctx context.Context, q sound.LocationQuery) ([]sound.Item, error) {
	v := url.Values{}
	v.Set("lat", formatFloat(q.Origin.Lat))
	v.Set("lon", formatFloat(q.Origin.Lon))
	v.Set("minDistance", formatFloat(q.MinDistance))
	v.Set("maxDistance", formatFloat(q.MaxDistance))
	v.Set("onlyLastDay", strconv.FormatBool(q.OnlyLastDay))
	if q.Category != "" {
		v.Set("type", string(q.Category))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	var resp soundsResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: pathSounds, query: v}, &resp); err != nil {
		return nil, fmt.Errorf("fetch sounds by location: %w", err)
	}
	return items(resp.Sounds), nil
}

// FetchByTime returns sounds newest first, older than q.UpTo and not older
// than q.Since.
func (c *Client) FetchByTime(ctx context.Context, q sound.TimeQuery) ([]sound.Item, error) {
	v := url.Values{}
	if q.Category != "" {
		v.Set("type", string(q.Category))
	}
	if q.UpTo != nil {
		v.Set("upToDate", unixSeconds(*q.UpTo))
	}
	if q.Since != nil {
		v.Set("sinceDate", unixSeconds(*q.Since))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	var resp soundsResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: pathRecent, query: v}, &resp); err != nil {
		return nil, fmt.Errorf("fetch sounds by time: %w", err)
	}
	return items(resp.Sounds), nil
}

// Upload publishes the recorded file at r.FilePath and returns the created
// sound.
func (c *Client) Upload(ctx context.Context, r sound.UploadRequest) (sound.Item, error) {
	body, contentType, err := uploadBody(r)
	if err != nil {
		return sound.Item{}, fmt.Errorf("upload sound: %w", err)
	}

	var resp wireSound
	req := request{method: http.MethodPost, path: pathUpload, body: body, contentType: contentType}
	if err := c.do(ctx, req, &resp); err != nil {
		return sound.Item{}, fmt.Errorf("upload sound: %w", err)
	}
	if resp.ID == "" {
		return sound.Item{}, fmt.Errorf("upload sound: %w: response has no id", ErrParseFailure)
	}
	return resp.item(), nil
}

func uploadBody(r sound.UploadRequest) ([]byte, string, error) {
	f, err := os.Open(r.FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	category := r.Category
	if category == "" {
		category = sound.UploadCategory
	}
	if err := mw.WriteField("type", string(category)); err != nil {
		return nil, "", err
	}
	if r.Location != nil {
		if err := mw.WriteField("lat", formatFloat(r.Location.Lat)); err != nil {
			return nil, "", err
		}
		if err := mw.WriteField("lon", formatFloat(r.Location.Lon)); err != nil {
			return nil, "", err
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(r.FilePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read recording: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// ResolveResource asks for a signed playback URL valid for the given
// number of minutes.
func (c *Client) ResolveResource(ctx context.Context, itemID string, validityMinutes int) (sound.ResourceRef, error) {
	v := url.Values{}
	if validityMinutes > 0 {
		v.Set("minutes", strconv.Itoa(validityMinutes))
	}
	req := request{
		method: http.MethodGet,
		path:   fmt.Sprintf(pathResourceFmt, url.PathEscape(itemID)),
		query:  v,
	}

	var resp resourceResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return sound.ResourceRef{}, fmt.Errorf("resolve resource %s: %w", itemID, err)
	}
	if resp.URL == "" || resp.ExpirationDate <= 0 {
		return sound.ResourceRef{}, fmt.Errorf("resolve resource %s: %w: missing url or expiration", itemID, ErrParseFailure)
	}
	return sound.ResourceRef{URL: resp.URL, ExpiresAt: unixTime(resp.ExpirationDate)}, nil
}
