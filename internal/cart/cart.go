package cart

// LineRef identifies the purchasable variant (product + color + version)
// behind a cart line. It is distinct from any row id the backend may keep
// for the line itself.
type LineRef string

type Line struct {
	Ref         LineRef `json:"lineRef"`
	ProductName string  `json:"productName"`
	Color       string  `json:"color"`
	Version     string  `json:"version"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	UnitPrice   int64   `json:"unitPrice"`
	Quantity    int     `json:"quantity"`
	LineTotal   int64   `json:"lineTotal"`
}

// Snapshot is the complete server-authoritative view of a cart. It is always
// replaced wholesale after a mutation, never patched in place.
type Snapshot struct {
	Lines      []Line `json:"lines"`
	TotalItems int    `json:"totalItemCount"`
	TotalPrice int64  `json:"totalPrice"`
}

// Line returns the line for ref, or nil if the cart no longer holds it.
func (s *Snapshot) Line(ref LineRef) *Line {
	for i := range s.Lines {
		if s.Lines[i].Ref == ref {
			return &s.Lines[i]
		}
	}
	return nil
}

// Delta is a relative quantity change for one cart line. The server is the
// sole authority for the resulting quantity and for clamping at zero; the
// client never sends an absolute target.
type Delta struct {
	LineRef LineRef `json:"lineRef"`
	Delta   int     `json:"delta"`
}
