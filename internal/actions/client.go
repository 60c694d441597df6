package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cog-cli/internal/model"
)

// Envelope is the wire shape of every action response.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client calls a remote cog server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: decode response (%s): %w", op, resp.Status, err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = resp.Status
		}
		return &Error{Op: op, Msg: msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", op, err)
		}
	}
	return nil
}

func esc(s string) string { return url.PathEscape(s) }

func (c *Client) GetSeries(ctx context.Context, seriesID string) (model.Series, error) {
	var sr model.Series
	err := c.do(ctx, "get series", http.MethodGet, "/api/series/"+esc(seriesID), nil, &sr)
	return sr, err
}

func (c *Client) ListImages(ctx context.Context, seriesID string) ([]model.Image, error) {
	var ims []model.Image
	err := c.do(ctx, "list images", http.MethodGet, "/api/series/"+esc(seriesID)+"/images", nil, &ims)
	return ims, err
}

func (c *Client) ListGroup(ctx context.Context, groupID string) ([]model.Image, error) {
	var ims []model.Image
	err := c.do(ctx, "list group", http.MethodGet, "/api/groups/"+esc(groupID)+"/images", nil, &ims)
	return ims, err
}

func (c *Client) VersionChain(ctx context.Context, imageID string) ([]model.Image, error) {
	var ims []model.Image
	err := c.do(ctx, "version chain", http.MethodGet, "/api/images/"+esc(imageID)+"/versions", nil, &ims)
	return ims, err
}

func (c *Client) ListTags(ctx context.Context, seriesID string) ([]model.Tag, error) {
	var tags []model.Tag
	err := c.do(ctx, "list tags", http.MethodGet, "/api/series/"+esc(seriesID)+"/tags", nil, &tags)
	return tags, err
}

func (c *Client) ImageTags(ctx context.Context, seriesID string) (map[string][]string, error) {
	m := map[string][]string{}
	err := c.do(ctx, "image tags", http.MethodGet, "/api/series/"+esc(seriesID)+"/image-tags", nil, &m)
	return m, err
}

type ratingBody struct {
	Rating int `json:"rating"`
}

func (c *Client) SetRating(ctx context.Context, imageID string, rating int) error {
	return c.do(ctx, "set rating", http.MethodPost, "/api/images/"+esc(imageID)+"/rating", ratingBody{Rating: rating}, nil)
}

type primaryBody struct {
	ImageID *string `json:"imageId"`
}

func (c *Client) SetPrimary(ctx context.Context, seriesID, imageID string) error {
	body := primaryBody{}
	if imageID != "" {
		body.ImageID = &imageID
	}
	return c.do(ctx, "set primary", http.MethodPost, "/api/series/"+esc(seriesID)+"/primary", body, nil)
}

func (c *Client) AddTag(ctx context.Context, imageID, tagID string) error {
	return c.do(ctx, "add tag", http.MethodPost, "/api/images/"+esc(imageID)+"/tags/"+esc(tagID), nil, nil)
}

func (c *Client) RemoveTag(ctx context.Context, imageID, tagID string) error {
	return c.do(ctx, "remove tag", http.MethodDelete, "/api/images/"+esc(imageID)+"/tags/"+esc(tagID), nil, nil)
}

type groupBody struct {
	ImageIDs []string `json:"imageIds"`
	GroupID  string   `json:"groupId"`
}

func (c *Client) SetGroup(ctx context.Context, imageIDs []string, groupID string) error {
	return c.do(ctx, "set group", http.MethodPost, "/api/groups", groupBody{ImageIDs: imageIDs, GroupID: groupID}, nil)
}

func (c *Client) DeleteImage(ctx context.Context, imageID string) (DeleteResult, error) {
	var res DeleteResult
	err := c.do(ctx, "delete image", http.MethodDelete, "/api/images/"+esc(imageID), nil, &res)
	return res, err
}

// MorphBody carries the encoded canvas; encoding/json base64-encodes the bytes.
type MorphBody struct {
	Image []byte `json:"image"`
}

type idData struct {
	ID string `json:"id"`
}

func (c *Client) SaveMorph(ctx context.Context, originalImageID string, png []byte) (string, error) {
	var out idData
	err := c.do(ctx, "save morph", http.MethodPost, "/api/images/"+esc(originalImageID)+"/morph", MorphBody{Image: png}, &out)
	return out.ID, err
}

func (c *Client) Refine(ctx context.Context, req RefineRequest) (string, error) {
	var out idData
	err := c.do(ctx, "refine", http.MethodPost, "/api/images/"+esc(req.ImageID)+"/refine", req, &out)
	return out.ID, err
}

func (c *Client) Touchup(ctx context.Context, req TouchupRequest) (string, error) {
	var out idData
	err := c.do(ctx, "touchup", http.MethodPost, "/api/images/"+esc(req.ImageID)+"/touchup", req, &out)
	return out.ID, err
}

func (c *Client) DuplicateJob(ctx context.Context, jobID string) (string, error) {
	var out idData
	err := c.do(ctx, "duplicate job", http.MethodPost, "/api/jobs/"+esc(jobID)+"/duplicate", nil, &out)
	return out.ID, err
}

// ReadBlob fetches raw image bytes. Blob responses are not enveloped.
func (c *Client) ReadBlob(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/blobs/"+strings.TrimPrefix(ref, "/"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: "read blob", Msg: resp.Status}
	}
	return io.ReadAll(resp.Body)
}

var (
	_ Actions = (*Client)(nil)
	_ Blobs   = (*Client)(nil)
)
