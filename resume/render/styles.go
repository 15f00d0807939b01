package render

// RGB is a text color.
type RGB struct {
	R, G, B int
}

// RunStyle captures the font settings for one kind of text run.
type RunStyle struct {
	Bold   bool
	Italic bool
	Size   float64
	Color  RGB
}

// fpdf style string for the run.
func (s RunStyle) fontStyle() string {
	out := ""
	if s.Bold {
		out += "B"
	}
	if s.Italic {
		out += "I"
	}
	return out
}

var (
	HeadingColor = RGB{R: 31, G: 41, B: 55}
	NameColor    = RGB{R: 17, G: 17, B: 17}
	BodyColor    = RGB{R: 55, G: 65, B: 81}
	MutedColor   = RGB{R: 107, G: 114, B: 128}
)

const (
	NameSize    = 24
	HeadingSize = 13
	BodySize    = 10.5
	MetaSize    = 9.5
	fontFamily  = "Helvetica"
	lineHeight  = 5.2
	pageMargin  = 18
)

// StyleMap centralizes the formatting for key resume elements.
var StyleMap = map[string]RunStyle{
	"name": {
		Bold:  true,
		Size:  NameSize,
		Color: NameColor,
	},
	"contact": {
		Size:  MetaSize,
		Color: MutedColor,
	},
	"sectionHeading": {
		Bold:  true,
		Size:  HeadingSize,
		Color: HeadingColor,
	},
	"roleLine": {
		Bold:  true,
		Size:  BodySize,
		Color: NameColor,
	},
	"meta": {
		Italic: true,
		Size:   MetaSize,
		Color:  MutedColor,
	},
	"body": {
		Size:  BodySize,
		Color: BodyColor,
	},
}

// accent colors per template for section rules.
var templateAccent = map[string]RGB{
	"modern":  {R: 37, G: 99, B: 235},
	"classic": {R: 31, G: 41, B: 55},
	"minimal": {R: 209, G: 213, B: 219},
}
