package capture

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
)

// WindowLister supplies the visible-window list when the screenshot tool
// itself cannot (the X11 monitor source implements it).
type WindowLister interface {
	ListVisibleWindows(ctx context.Context) ([]event.WindowInfo, error)
}

// CommandGrabber shells out to an external screenshot tool that writes one
// encoded frame to stdout (e.g. `scrot -z -o /dev/stdout` or `maim`). An
// empty argv disables capture: every cycle yields no sample.
type CommandGrabber struct {
	Argv   []string
	MIME   string
	Lister WindowLister
}

func (g *CommandGrabber) RequestPermission() bool {
	if len(g.Argv) == 0 {
		return false
	}
	if _, err := exec.LookPath(g.Argv[0]); err != nil {
		logrus.Warnf("Capture command %q not found: %v", g.Argv[0], err)
		return false
	}
	return true
}

func (g *CommandGrabber) CaptureScreen(ctx context.Context) (*event.CapturedMedia, error) {
	if len(g.Argv) == 0 {
		return nil, nil
	}
	start := time.Now()
	out, err := exec.CommandContext(ctx, g.Argv[0], g.Argv[1:]...).Output()
	if err != nil || len(out) == 0 {
		logrus.Debugf("Capture command failed: %v", err)
		return nil, nil
	}

	media := &event.CapturedMedia{
		Data:  out,
		MIME:  g.MIME,
		Start: start,
		End:   time.Now(),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(out)); err == nil {
		media.Width = cfg.Width
		media.Height = cfg.Height
	}
	return media, nil
}

func (g *CommandGrabber) ListVisibleWindows(ctx context.Context) ([]event.WindowInfo, error) {
	if g.Lister == nil {
		return nil, nil
	}
	return g.Lister.ListVisibleWindows(ctx)
}
