package detector

import "shortsguard/internal/settings"

// Registry maps hostnames to the single applicable detector. The detector
// list is fixed at construction; no dynamic loading.
type Registry struct {
	detectors []Detector
}

// NewRegistry builds the default registry: three short-video platforms
// followed by six social-network platforms, in stable order.
func NewRegistry() *Registry {
	return &Registry{detectors: []Detector{
		NewYouTube(),
		NewTikTok(),
		NewInstagram(),
		NewFacebook(),
		NewTwitter(),
		NewReddit(),
		NewLinkedIn(),
		NewPinterest(),
		NewSnapchat(),
	}}
}

// NewRegistryWith builds a registry over an explicit detector list, in the
// given order.
func NewRegistryWith(ds ...Detector) *Registry {
	return &Registry{detectors: ds}
}

// ForHostname returns the first detector that supports hostname, or nil when
// no platform matches (the page is never scanned).
func (r *Registry) ForHostname(hostname string) Detector {
	for _, d := range r.detectors {
		if d.IsSupported(hostname) {
			return d
		}
	}
	return nil
}

// All returns the stable detector enumeration, one entry per platform.
func (r *Registry) All() []Detector {
	out := make([]Detector, len(r.detectors))
	copy(out, r.detectors)
	return out
}

// SetSettings pushes a snapshot to every registered detector.
func (r *Registry) SetSettings(s *settings.Settings) {
	for _, d := range r.detectors {
		d.SetSettings(s)
	}
}
