package model

import "time"

// DefaultCharacter is granted to every player record on creation.
const DefaultCharacter = "Dog"

// AnonymousName is used when a player has no resolvable display name.
const AnonymousName = "Anonymous"

// PlayerRecord is the durable per-identity player state.
type PlayerRecord struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"displayName"`
	Characters  []string  `json:"characters"`
	Inventory   []string  `json:"inventory"`
	CreatedAt   time.Time `json:"createdAt"`
	LastLogin   time.Time `json:"lastLogin"`
}

// Clone returns a deep copy so callers never share slices with a store.
func (p *PlayerRecord) Clone() *PlayerRecord {
	if p == nil {
		return nil
	}
	out := *p
	out.Characters = append(make([]string, 0, len(p.Characters)), p.Characters...)
	out.Inventory = append(make([]string, 0, len(p.Inventory)), p.Inventory...)
	return &out
}

// HasCharacter reports whether the record owns the named character.
func (p *PlayerRecord) HasCharacter(name string) bool {
	for _, c := range p.Characters {
		if c == name {
			return true
		}
	}
	return false
}

// PurchaseResult is returned by a character purchase.
type PurchaseResult struct {
	Characters   []string `json:"characters"`
	Character    string   `json:"character"`
	AlreadyOwned bool     `json:"alreadyOwned"`
}
