package scene

// Line is one unit produced by the narrative source per advance.
type Line struct {
	// Speaker is the explicit speaker label; empty when the script leaves it to
	// the "name: text" prefix convention inside Content.
	Speaker string   `json:"speaker,omitempty"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// Choice is a selectable branch offered by the narrative source.
type Choice struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}
