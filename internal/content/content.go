// Package content serves the per-section informational text (rules, terms)
// shown in the menu flows. Keys are (section, sub); an absent key reads as
// an empty string, never an error surface for callers building menu text.
package content

import (
	"context"

	"relaybot/internal/storage"
)

// Sections and subsections used by the menu flows.
const (
	SectionBots  = "bots"
	SectionSouls = "souls"
	SectionVserv = "vserv"
	SectionFree  = "free"

	SubGeneral = "general"
	SubChat    = "chat"
	SubCall    = "call"
)

type Store struct {
	db storage.Store
}

func NewStore(db storage.Store) *Store {
	return &Store{db: db}
}

// Get returns the stored text for (section, sub), or "" if absent.
func (s *Store) Get(ctx context.Context, section, sub string) (string, error) {
	return s.db.GetRule(ctx, section, sub)
}

// Set upserts the text for (section, sub).
func (s *Store) Set(ctx context.Context, section, sub, text string) error {
	return s.db.SetRule(ctx, section, sub, text)
}
