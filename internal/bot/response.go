package bot

// Button is a link button attached to a reply.
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Menu is an ordered list of link buttons.
type Menu struct {
	Buttons []Button `json:"buttons"`
}

// Image is a picture reply. Title and Description are used when the image is
// offered as an inline query result.
type Image struct {
	URL         string `json:"url"`
	Caption     string `json:"caption,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Response is what a command hands back to the transport.
type Response struct {
	Text  string
	Menu  *Menu
	Image *Image
}

// Reply is shorthand for a text-only response.
func Reply(text string) Response { return Response{Text: text} }

// Empty reports whether the response should be suppressed.
func (r Response) Empty() bool {
	return r.Text == "" && (r.Menu == nil || len(r.Menu.Buttons) == 0) && r.Image == nil
}
