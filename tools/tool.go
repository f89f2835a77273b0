package tools

import (
	"sort"
	"strings"
)

// Descriptor is a tool advertised by the chat server. The server executes
// tools; the client only chooses which ones a question may use.
type Descriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// DisplayName strips everything up to and including the last underscore,
// so "svc_search" becomes "search". IDs without an underscore are unchanged.
func DisplayName(id string) string {
	if i := strings.LastIndex(id, "_"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// Describe converts the server's id to description map into descriptors
// sorted by id.
func Describe(available map[string]string) []Descriptor {
	out := make([]Descriptor, 0, len(available))
	for id, desc := range available {
		out = append(out, Descriptor{
			ID:          id,
			DisplayName: DisplayName(id),
			Description: desc,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}
