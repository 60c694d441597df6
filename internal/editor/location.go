package editor

import (
	"fmt"
	"net/url"
	"strings"
)

const locationPrefix = "/tools/cog/"

// Location is the addressable part of the editor state:
// /tools/cog/{seriesId}/editor/{imageId}[?group=true].
type Location struct {
	SeriesID string
	ImageID  string
	Group    bool
}

func (l Location) String() string {
	if l.SeriesID == "" {
		return ""
	}
	p := locationPrefix + url.PathEscape(l.SeriesID) + "/editor"
	if l.ImageID != "" {
		p += "/" + url.PathEscape(l.ImageID)
	}
	if l.Group {
		p += "?group=true"
	}
	return p
}

// ParseLocation accepts a path (or full URL) in the editor address format.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Location{}, err
	}
	rest, ok := strings.CutPrefix(u.Path, locationPrefix)
	if !ok {
		return Location{}, fmt.Errorf("not an editor location: %q", raw)
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] != "editor" || len(parts) > 3 {
		return Location{}, fmt.Errorf("not an editor location: %q", raw)
	}
	loc := Location{SeriesID: parts[0]}
	if len(parts) == 3 {
		loc.ImageID = parts[2]
	}
	loc.Group = u.Query().Get("group") == "true"
	return loc, nil
}

// History is a back/forward stack of locations.
type History struct {
	entries []Location
	pos     int
}

func (h *History) Current() (Location, bool) {
	if len(h.entries) == 0 {
		return Location{}, false
	}
	return h.entries[h.pos], true
}

// Push adds loc after the current entry and drops any forward entries.
func (h *History) Push(loc Location) {
	if cur, ok := h.Current(); ok && cur == loc {
		return
	}
	if len(h.entries) > 0 {
		h.entries = h.entries[:h.pos+1]
	}
	h.entries = append(h.entries, loc)
	h.pos = len(h.entries) - 1
}

// Replace overwrites the current entry.
func (h *History) Replace(loc Location) {
	if len(h.entries) == 0 {
		h.Push(loc)
		return
	}
	h.entries[h.pos] = loc
}

func (h *History) Back() (Location, bool) {
	if h.pos == 0 || len(h.entries) == 0 {
		return Location{}, false
	}
	h.pos--
	return h.entries[h.pos], true
}

func (h *History) Forward() (Location, bool) {
	if h.pos+1 >= len(h.entries) {
		return Location{}, false
	}
	h.pos++
	return h.entries[h.pos], true
}

func (h *History) Len() int { return len(h.entries) }
