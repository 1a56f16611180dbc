package detector

import (
	"net/url"
	"strings"

	"shortsguard/internal/rules"
	"shortsguard/internal/settings"
)

// Each platform enumerates its own exact host suffix set; subdomains of a
// listed suffix match, nothing else does (no wildcard TLD matching).

// youtubeDetector also resolves channels from /@handle URLs.
type youtubeDetector struct{ base }

// NewYouTube recognizes Shorts shelves and tiles in YouTube markup. Blocking
// is suppressed on search result pages, where a shorts filter would hide
// unrelated results.
func NewYouTube() Detector {
	return &youtubeDetector{base{
		platform: settings.PlatformYouTube,
		hosts:    []string{"youtube.com", "m.youtube.com"},
		exemptPage: func(u *url.URL) bool {
			return strings.HasPrefix(u.Path, "/results")
		},
		rules: []rules.Rule{
			rules.Tag("reel-shelf", "ytd-reel-shelf-renderer", rules.ActionHide),
			rules.AttrPresent("shorts-shelf", "is-shorts", rules.ActionHide),
			rules.Containing("shorts-rich-item", "ytd-rich-item-renderer",
				rules.AnchorWithSegment("/shorts/"), rules.ActionHide),
			rules.Containing("shorts-grid-video", "ytd-grid-video-renderer",
				rules.AnchorWithSegment("/shorts/"), rules.ActionHide),
			rules.Tag("reel-player", "ytd-reel-video-renderer", rules.ActionRemove),
			rules.AttrEquals("shorts-guide-entry", "title", "Shorts", rules.ActionHide),
			rules.HrefPrefix("shorts-anchor", "/shorts/", rules.ActionHide),
		},
	}}
}

func (d *youtubeDetector) ChannelFromURL(pageURL string) string {
	return handleFromPath(pageURL)
}

type tiktokDetector struct{ base }

// NewTikTok treats the whole recommend feed as short-form; individual feed
// items are hidden, the fullscreen swiper is removed.
func NewTikTok() Detector {
	return &tiktokDetector{base{
		platform: settings.PlatformTikTok,
		hosts:    []string{"tiktok.com", "m.tiktok.com", "vm.tiktok.com"},
		rules: []rules.Rule{
			rules.AttrEquals("feed-item", "data-e2e", "recommend-list-item-container", rules.ActionHide),
			rules.AttrEquals("video-feed", "data-e2e", "video-feed-item", rules.ActionHide),
			rules.Selector("feed-swiper", "div[class*=\"DivVideoFeedV2\"]", rules.ActionRemove),
			rules.AttrEquals("browse-video", "data-e2e", "browse-video", rules.ActionHide),
		},
	}}
}

func (d *tiktokDetector) ChannelFromURL(pageURL string) string {
	return handleFromPath(pageURL)
}

type instagramDetector struct{ base }

// NewInstagram targets Reels tray, clips and feed reel units.
func NewInstagram() Detector {
	return &instagramDetector{base{
		platform: settings.PlatformInstagram,
		hosts:    []string{"instagram.com"},
		rules: []rules.Rule{
			rules.Containing("reel-article", "article", rules.AnchorWithSegment("/reels/"), rules.ActionHide),
			rules.Containing("reel-post", "article", rules.AnchorWithSegment("/reel/"), rules.ActionHide),
			rules.Selector("clips-viewer", "section main div[style*=\"--clips\"]", rules.ActionHide),
			rules.HrefPrefix("reels-tab", "/reels/", rules.ActionHide),
			rules.HrefSegment("reel-anchor", "/reel/", rules.ActionHide),
		},
	}}
}

func (d *instagramDetector) ChannelFromURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	seg := firstPathSegment(u.Path)
	switch seg {
	case "", "reel", "reels", "explore", "p", "stories", "accounts", "direct":
		return ""
	}
	return seg
}

// NewFacebook recognizes the Reels shelf and reel permalinks in the feed.
func NewFacebook() Detector {
	return &base{
		platform: settings.PlatformFacebook,
		hosts:    []string{"facebook.com", "m.facebook.com", "web.facebook.com"},
		rules: []rules.Rule{
			rules.AttrEquals("reels-shelf", "aria-label", "Reels", rules.ActionHide),
			rules.Containing("reel-article", "div[role=\"article\"]",
				rules.AnchorWithSegment("/reel/"), rules.ActionHide),
			rules.HrefPrefix("reel-permalink", "/reel/", rules.ActionHide),
			rules.HrefPrefix("reels-tab", "/reels/", rules.ActionHide),
		},
	}
}

// NewTwitter covers both twitter.com and x.com immersive video timelines.
func NewTwitter() Detector {
	return &base{
		platform: settings.PlatformTwitter,
		hosts:    []string{"twitter.com", "x.com", "mobile.twitter.com"},
		rules: []rules.Rule{
			rules.Containing("immersive-cell", "div[data-testid=\"cellInnerDiv\"]",
				rules.AnchorWithSegment("/i/immersive/"), rules.ActionHide),
			rules.AttrEquals("immersive-player", "data-testid", "immersivePlayer", rules.ActionHide),
			rules.HrefSegment("immersive-anchor", "/i/immersive/", rules.ActionHide),
		},
	}
}

// NewReddit targets the video shorts feed on modern reddit markup.
func NewReddit() Detector {
	return &base{
		platform: settings.PlatformReddit,
		hosts:    []string{"reddit.com", "old.reddit.com", "new.reddit.com"},
		rules: []rules.Rule{
			rules.Tag("shorts-player", "shreddit-media-lightbox", rules.ActionHide),
			rules.Containing("shorts-post", "shreddit-post",
				rules.AnchorWithSegment("/shorts/"), rules.ActionHide),
			rules.HrefPrefix("shorts-feed", "/shorts", rules.ActionHide),
		},
	}
}

// NewLinkedIn hides the short-video tab and video feed updates.
func NewLinkedIn() Detector {
	return &base{
		platform: settings.PlatformLinkedIn,
		hosts:    []string{"linkedin.com"},
		rules: []rules.Rule{
			rules.AttrContains("video-update", "class", "feed-shared-update-v2--video", rules.ActionHide),
			rules.HrefPrefix("video-tab", "/video/", rules.ActionHide),
			rules.Containing("video-chain", "div[data-id*=\"videoChain\"]",
				rules.AnchorWithSegment("/video/"), rules.ActionHide),
		},
	}
}

// NewPinterest hides Idea Pins and the watch surface.
func NewPinterest() Detector {
	return &base{
		platform: settings.PlatformPinterest,
		hosts:    []string{"pinterest.com"},
		rules: []rules.Rule{
			rules.AttrEquals("idea-pin", "data-test-id", "idea-pin-rep", rules.ActionHide),
			rules.Containing("watch-pin", "div[data-test-id=\"pin\"]",
				rules.AnchorWithSegment("/pin/"), rules.ActionSkip),
			rules.HrefPrefix("watch-tab", "/watch/", rules.ActionHide),
		},
	}
}

// NewSnapchat hides Spotlight tiles on the web client.
func NewSnapchat() Detector {
	return &base{
		platform: settings.PlatformSnapchat,
		hosts:    []string{"snapchat.com", "web.snapchat.com"},
		rules: []rules.Rule{
			rules.HrefPrefix("spotlight-anchor", "/spotlight/", rules.ActionHide),
			rules.Containing("spotlight-tile", "div[class*=\"SpotlightTile\"]",
				rules.AnchorWithSegment("/spotlight/"), rules.ActionHide),
		},
	}
}

// handleFromPath extracts an "@handle" first path segment, the channel shape
// shared by youtube and tiktok.
func handleFromPath(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	seg := firstPathSegment(u.Path)
	if strings.HasPrefix(seg, "@") && len(seg) > 1 {
		return seg
	}
	return ""
}

func firstPathSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}
