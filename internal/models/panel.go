package models

import (
	"encoding/json"
	"sort"
)

// PanelState is the UI-facing projection of a scene config onto current holdings.
type PanelState struct {
	DisplayedItems map[string]struct{}
	Transforms     map[string]Transform
}

func NewPanelState() PanelState {
	return PanelState{
		DisplayedItems: make(map[string]struct{}),
		Transforms:     make(map[string]Transform),
	}
}

// IsDisplayed reports whether id is in the displayed set.
func (p PanelState) IsDisplayed(id string) bool {
	_, ok := p.DisplayedItems[id]
	return ok
}

// DisplayedIDs returns the displayed set sorted.
func (p PanelState) DisplayedIDs() []string {
	ids := make([]string, 0, len(p.DisplayedItems))
	for id := range p.DisplayedItems {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p PanelState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DisplayedItems []string             `json:"displayedItems"`
		Transforms     map[string]Transform `json:"transforms"`
	}{p.DisplayedIDs(), p.Transforms})
}
