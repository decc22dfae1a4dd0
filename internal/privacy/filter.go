// Package privacy filters and compresses captured media before any of it
// leaves the device. Filtering is a pure function: no I/O beyond the image
// re-encode, no side effects.
package privacy

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
)

var (
	ErrMediaDecode = errors.New("privacy: media decode failed")
	ErrMediaEncode = errors.New("privacy: media encode failed")
)

type Config struct {
	// ExcludedApps suppresses any capture taken while one of these app IDs
	// holds the foreground. Compared case-insensitively.
	ExcludedApps []string
	// TitleKeywords suppresses any capture whose lowercased window title
	// contains one of these substrings.
	TitleKeywords []string
	// MaxWidth is the compression width ceiling; wider images are downscaled
	// to exactly this width, narrower ones are left alone.
	MaxWidth int
	// JPEGQuality is the lossy re-encode quality, 1-100.
	JPEGQuality int
}

// Suppressed reports whether a capture under the given foreground window
// must be discarded. Checked before any compression work is spent.
func (c Config) Suppressed(windowTitle, appID string) bool {
	app := strings.ToLower(strings.TrimSpace(appID))
	for _, ex := range c.ExcludedApps {
		if app != "" && app == strings.ToLower(strings.TrimSpace(ex)) {
			return true
		}
	}
	title := strings.ToLower(windowTitle)
	for _, kw := range c.TitleKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// Filter applies the suppression rule and, for images, the downscale and
// lossy re-encode. Suppressed output carries no bytes. Video clips pass
// through unrecoded; the suppression gate still applies.
func Filter(media event.CapturedMedia, windowTitle, appID string, cfg Config) (event.FilteredMedia, error) {
	if cfg.Suppressed(windowTitle, appID) {
		return event.FilteredMedia{
			Suppressed: true,
			Start:      media.Start,
			End:        media.End,
		}, nil
	}

	if strings.HasPrefix(media.MIME, "video/") {
		return event.FilteredMedia{
			Data:      media.Data,
			MIME:      media.MIME,
			SizeBytes: len(media.Data),
			Width:     media.Width,
			Height:    media.Height,
			Start:     media.Start,
			End:       media.End,
		}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(media.Data))
	if err != nil {
		return event.FilteredMedia{}, fmt.Errorf("%w: %v", ErrMediaDecode, err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if cfg.MaxWidth > 0 && w > cfg.MaxWidth {
		// Downscale only, never upscale. CatmullRom for quality.
		nh := int(float64(h) * float64(cfg.MaxWidth) / float64(w))
		if nh < 1 {
			nh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, cfg.MaxWidth, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
		src = dst
		w, h = cfg.MaxWidth, nh
	}

	quality := cfg.JPEGQuality
	if quality < 1 || quality > 100 {
		quality = 60
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return event.FilteredMedia{}, fmt.Errorf("%w: %v", ErrMediaEncode, err)
	}

	return event.FilteredMedia{
		Data:      buf.Bytes(),
		MIME:      "image/jpeg",
		SizeBytes: buf.Len(),
		Width:     w,
		Height:    h,
		Start:     media.Start,
		End:       media.End,
	}, nil
}
