// Package actions defines the remote procedures the editor consumes and their
// implementations. Expected failures are returned as *Error values.
package actions

import (
	"context"
	"errors"
	"fmt"

	"cog-cli/internal/model"
)

// Error is an expected failure of a remote action (validation, not found, backend error).
type Error struct {
	Op  string
	Msg string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return e.Op + ": " + e.Msg
}

// Fail builds an *Error for op.
func Fail(op, format string, args ...any) error {
	return &Error{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Message returns the user-facing text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Msg
	}
	return err.Error()
}

type TouchupMode string

const (
	TouchupSpotRemoval TouchupMode = "spot_removal"
	TouchupGuidedEdit  TouchupMode = "guided_edit"
)

type RefineRequest struct {
	ImageID     string `json:"imageId"`
	Feedback    string `json:"feedback"`
	Model       string `json:"model"`
	Size        string `json:"size,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type TouchupRequest struct {
	ImageID string      `json:"imageId"`
	Mask    string      `json:"mask"` // base64 PNG
	Mode    TouchupMode `json:"mode"`
	Prompt  string      `json:"prompt,omitempty"`
}

type DeleteResult struct {
	ImageID        string   `json:"imageId"`
	SeriesID       string   `json:"seriesId"`
	PrimaryCleared bool     `json:"primaryCleared"`
	Reparented     []string `json:"reparented,omitempty"`
}

// Actions is the contract between the editor and its backend.
type Actions interface {
	GetSeries(ctx context.Context, seriesID string) (model.Series, error)
	ListImages(ctx context.Context, seriesID string) ([]model.Image, error)
	ListGroup(ctx context.Context, groupID string) ([]model.Image, error)
	VersionChain(ctx context.Context, imageID string) ([]model.Image, error)
	ListTags(ctx context.Context, seriesID string) ([]model.Tag, error)
	ImageTags(ctx context.Context, seriesID string) (map[string][]string, error)

	SetRating(ctx context.Context, imageID string, rating int) error
	// SetPrimary clears the pointer when imageID is empty.
	SetPrimary(ctx context.Context, seriesID, imageID string) error
	AddTag(ctx context.Context, imageID, tagID string) error
	RemoveTag(ctx context.Context, imageID, tagID string) error
	SetGroup(ctx context.Context, imageIDs []string, groupID string) error
	DeleteImage(ctx context.Context, imageID string) (DeleteResult, error)

	SaveMorph(ctx context.Context, originalImageID string, png []byte) (string, error)
	Refine(ctx context.Context, req RefineRequest) (string, error)
	Touchup(ctx context.Context, req TouchupRequest) (string, error)

	DuplicateJob(ctx context.Context, jobID string) (string, error)
}

// Blobs reads stored image bytes by storage reference.
type Blobs interface {
	ReadBlob(ctx context.Context, ref string) ([]byte, error)
}
