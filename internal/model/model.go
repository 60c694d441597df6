package model

import "time"

type ImageSource string

const (
	SourceUploaded  ImageSource = "uploaded"
	SourceGenerated ImageSource = "generated"
	SourceMorph     ImageSource = "morph"
	SourceRefine    ImageSource = "refine"
	SourceTouchup   ImageSource = "touchup"
)

const (
	MinRating = 0
	MaxRating = 5
)

type Series struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	PrimaryImageID *string   `json:"primaryImageId,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Private        bool      `json:"private"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Image struct {
	ID          string `json:"id"`
	SeriesID    string `json:"seriesId"`
	StoragePath string `json:"storagePath"`

	// GroupID is nil for standalone images.
	GroupID *string `json:"groupId,omitempty"`
	// ParentID is nil for the root of a version chain.
	ParentID *string `json:"parentId,omitempty"`

	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Rating    int         `json:"rating"`
	Prompt    string      `json:"prompt,omitempty"`
	Source    ImageSource `json:"source"`
	CreatedAt time.Time   `json:"createdAt"`
}

// InGroup reports whether the image belongs to a group.
func (im Image) InGroup() bool {
	return im.GroupID != nil && *im.GroupID != ""
}

func (im Image) Group() string {
	if im.GroupID == nil {
		return ""
	}
	return *im.GroupID
}

func (im Image) Parent() string {
	if im.ParentID == nil {
		return ""
	}
	return *im.ParentID
}

type TagGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Tag struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GroupID string `json:"groupId,omitempty"`

	// SeriesID is nil for global tags. Local tags are only visible inside their series.
	SeriesID *string `json:"seriesId,omitempty"`
}

func (t Tag) Local() bool {
	return t.SeriesID != nil && *t.SeriesID != ""
}

// VisibleIn reports whether the tag may be shown or applied inside seriesID.
func (t Tag) VisibleIn(seriesID string) bool {
	return !t.Local() || *t.SeriesID == seriesID
}

// ClampRating bounds n to the star range.
func ClampRating(n int) int {
	if n < MinRating {
		return MinRating
	}
	if n > MaxRating {
		return MaxRating
	}
	return n
}

func StrPtr(s string) *string {
	return &s
}
