package model

// Profile is the self-published metadata of a Nostr identity.
type Profile struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Picture     string `json:"picture,omitempty"`
	Image       string `json:"image,omitempty"`
	About       string `json:"about,omitempty"`
}

// IsEmpty reports whether no usable field was resolved.
func (p Profile) IsEmpty() bool {
	return p.BestName() == "" && p.AvatarURI() == ""
}

// BestName prefers the short name, falling back to display_name.
func (p Profile) BestName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.DisplayName
}

// AvatarURI returns the avatar, accepting both "picture" and "image" keys.
func (p Profile) AvatarURI() string {
	if p.Picture != "" {
		return p.Picture
	}
	return p.Image
}

// NameOr returns BestName or fallback when empty.
func (p Profile) NameOr(fallback string) string {
	if n := p.BestName(); n != "" {
		return n
	}
	return fallback
}
