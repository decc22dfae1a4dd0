package analysis

import "strings"

// Zero-cost keyword classifier: tags capture events and backfills card
// categories without spending an AI call.

var appRules = map[string][]string{
	"coding": {
		"visual studio code", "vscode", "code", "intellij", "pycharm",
		"goland", "sublime text", "vim", "neovim", "nvim", "emacs",
		"terminal", "alacritty", "kitty", "konsole", "gnome-terminal",
		"cursor", "zed",
	},
	"writing": {
		"libreoffice writer", "word", "notion", "obsidian", "typora",
		"gedit", "kate",
	},
	"browsing": {
		"chrome", "chromium", "firefox", "safari", "edge", "brave",
	},
	"media": {
		"vlc", "mpv", "spotify", "rhythmbox",
	},
	"social": {
		"discord", "slack", "telegram", "signal", "element",
	},
	"gaming": {
		"steam", "lutris", "minecraft",
	},
	"communication": {
		"thunderbird", "evolution", "zoom", "teams",
	},
	"design": {
		"gimp", "inkscape", "blender", "figma", "krita",
	},
	"reading": {
		"evince", "okular", "zathura", "calibre",
	},
}

var browserTitleRules = map[string][]string{
	"coding": {
		"github", "gitlab", "stack overflow", "stackoverflow",
		"documentation", "api reference", "pkg.go.dev",
	},
	"learning": {
		"tutorial", "course", "lecture", "how to", "guide", "learn",
	},
	"social": {
		"twitter", "x.com", "reddit", "instagram", "facebook",
	},
	"media": {
		"youtube", "netflix", "twitch", "bilibili",
	},
	"work": {
		"jira", "confluence", "linear", "trello", "asana",
	},
}

// ClassifyWindow maps an (appID, title) pair to a coarse category with a
// confidence score. Browser hits are refined by title keywords.
func ClassifyWindow(appID, title string) (string, float64) {
	app := strings.ToLower(appID)
	titleLower := strings.ToLower(title)

	for category, keywords := range appRules {
		for _, kw := range keywords {
			if !strings.Contains(app, kw) {
				continue
			}
			if category == "browsing" {
				if refined, ok := refineBrowserTitle(titleLower); ok {
					return refined, 0.75
				}
				return "browsing", 0.5
			}
			return category, 0.8
		}
	}

	for category, keywords := range appRules {
		for _, kw := range keywords {
			if strings.Contains(titleLower, kw) {
				return category, 0.6
			}
		}
	}

	return "unknown", 0.3
}

func refineBrowserTitle(titleLower string) (string, bool) {
	for category, keywords := range browserTitleRules {
		for _, kw := range keywords {
			if strings.Contains(titleLower, kw) {
				return category, true
			}
		}
	}
	return "", false
}
