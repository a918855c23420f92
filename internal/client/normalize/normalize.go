// Package normalize flattens Reddit's heterogeneous saved-listing entries
// (link posts, text posts, comments) into one display-ready item shape.
package normalize

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"
)

// SavedItem is the normalized form of one saved listing entry.
type SavedItem struct {
	ID           string     `json:"id"`
	Fullname     string     `json:"fullname"`
	Type         string     `json:"type"` // "Post" or "Comment"
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Subreddit    string     `json:"subreddit"`
	Author       string     `json:"author"`
	URL          string     `json:"url"`
	CreatedAt    float64    `json:"createdAt"`
	Score        int        `json:"score"`
	CommentCount int        `json:"commentCount"`
	Thumbnail    string     `json:"thumbnail"`
	Images       []string   `json:"images,omitempty"`
	Video        *VideoInfo `json:"video,omitempty"`
	NSFW         bool       `json:"nsfw"`
}

// VideoInfo describes a playable video attached to an item.
type VideoInfo struct {
	URL      string  `json:"url"`
	DashURL  string  `json:"dashUrl,omitempty"`
	HLSURL   string  `json:"hlsUrl,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	IsGif    bool    `json:"isGif,omitempty"`
}

// rawEntry mirrors the subset of Reddit's listing child we care about.
// Posts and comments share this shape with different fields populated.
type rawEntry struct {
	Kind string `json:"kind"`
	Data struct {
		ID        string `json:"id"`
		Subreddit string `json:"subreddit"`
		Author    string `json:"author"`

		// Posts carry title/selftext; comments carry link_title/body.
		Title     string `json:"title"`
		LinkTitle string `json:"link_title"`
		Selftext  string `json:"selftext"`
		Body      string `json:"body"`

		URL     string `json:"url"`
		LinkURL string `json:"link_url"`

		Created     float64 `json:"created"`
		Score       int     `json:"score"`
		NumComments int     `json:"num_comments"`
		Over18      bool    `json:"over_18"`

		Thumbnail     string                  `json:"thumbnail"`
		MediaMetadata map[string]mediaElement `json:"media_metadata"`
		Media         *struct {
			RedditVideo *redditVideo `json:"reddit_video"`
			Oembed      *oembed      `json:"oembed"`
		} `json:"media"`
	} `json:"data"`
}

type mediaElement struct {
	S *struct {
		U string `json:"u"`
	} `json:"s"`
	P []struct {
		U string `json:"u"`
	} `json:"p"`
}

type redditVideo struct {
	FallbackURL string  `json:"fallback_url"`
	DashURL     string  `json:"dash_url"`
	HLSURL      string  `json:"hls_url"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Duration    float64 `json:"duration"`
	IsGif       bool    `json:"is_gif"`
}

type oembed struct {
	Type   string `json:"type"`
	HTML   string `json:"html"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

var srcAttr = regexp.MustCompile(`src="([^"]+)"`)

// Items normalizes a slice of raw listing children. Entries that fail to
// decode are skipped rather than aborting the whole batch.
func Items(children []json.RawMessage) []SavedItem {
	items := make([]SavedItem, 0, len(children))
	for _, child := range children {
		var raw rawEntry
		if err := json.Unmarshal(child, &raw); err != nil {
			continue
		}
		if raw.Data.ID == "" {
			continue
		}
		items = append(items, normalizeEntry(raw))
	}
	return items
}

func normalizeEntry(raw rawEntry) SavedItem {
	d := raw.Data

	title := d.Title
	if title == "" {
		title = d.LinkTitle
	}
	description := d.Selftext
	if description == "" {
		description = d.Body
	}
	itemURL := d.URL
	if itemURL == "" {
		itemURL = d.LinkURL
	}

	itemType := "Comment"
	if raw.Kind == "t3" {
		itemType = "Post"
	}

	// "self" and "default" are Reddit placeholders, not real image URLs.
	thumbnail := d.Thumbnail
	if thumbnail == "self" || thumbnail == "default" {
		thumbnail = ""
	}

	images := extractImages(d.MediaMetadata)
	if len(images) == 0 && thumbnail != "" {
		images = []string{thumbnail}
	}

	var video *VideoInfo
	if d.Media != nil {
		video = extractHostedVideo(d.Media.RedditVideo, d.Media.Oembed)
	}
	if video == nil {
		video = videoFromURL(d.URL)
	}

	return SavedItem{
		ID:           d.ID,
		Fullname:     raw.Kind + "_" + d.ID,
		Type:         itemType,
		Title:        title,
		Description:  description,
		Subreddit:    d.Subreddit,
		Author:       d.Author,
		URL:          itemURL,
		CreatedAt:    d.Created,
		Score:        d.Score,
		CommentCount: d.NumComments,
		Thumbnail:    thumbnail,
		Images:       images,
		Video:        video,
		NSFW:         d.Over18,
	}
}

// extractImages picks the richest resolution per metadata entry: the
// source (s.u) when present, else the last (largest) preview. Reddit
// HTML-escapes these URLs, so every one must be entity-decoded to resolve.
func extractImages(meta map[string]mediaElement) []string {
	if len(meta) == 0 {
		return nil
	}
	var images []string
	for _, m := range meta {
		switch {
		case m.S != nil && m.S.U != "":
			images = append(images, html.UnescapeString(m.S.U))
		case len(m.P) > 0 && m.P[len(m.P)-1].U != "":
			images = append(images, html.UnescapeString(m.P[len(m.P)-1].U))
		}
	}
	return images
}

func extractHostedVideo(rv *redditVideo, oe *oembed) *VideoInfo {
	if rv != nil && rv.FallbackURL != "" {
		return &VideoInfo{
			URL:      html.UnescapeString(rv.FallbackURL),
			DashURL:  html.UnescapeString(rv.DashURL),
			HLSURL:   html.UnescapeString(rv.HLSURL),
			Width:    rv.Width,
			Height:   rv.Height,
			Duration: rv.Duration,
			IsGif:    rv.IsGif,
		}
	}
	if oe != nil && oe.Type == "video" && oe.HTML != "" {
		if m := srcAttr.FindStringSubmatch(oe.HTML); m != nil {
			return &VideoInfo{
				URL:    html.UnescapeString(m[1]),
				Width:  oe.Width,
				Height: oe.Height,
			}
		}
	}
	return nil
}

// videoFromURL covers hosts that serve video behind plain links:
// gfycat pages, imgur .gifv (rewritten to its .mp4 twin), and direct .mp4.
func videoFromURL(rawURL string) *VideoInfo {
	if rawURL == "" {
		return nil
	}
	if !strings.Contains(rawURL, "gfycat.com") &&
		!strings.Contains(rawURL, ".gifv") &&
		!strings.Contains(rawURL, ".mp4") {
		return nil
	}
	videoURL := rawURL
	if strings.HasSuffix(videoURL, ".gifv") {
		videoURL = strings.Replace(videoURL, ".gifv", ".mp4", 1)
	}
	return &VideoInfo{
		URL:   html.UnescapeString(videoURL),
		IsGif: strings.Contains(videoURL, ".gif") || strings.Contains(videoURL, "gfycat"),
	}
}
