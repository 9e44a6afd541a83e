package overlay

import (
	"fmt"
	"strings"
)

// Build translates the composition into a single ffmpeg filtergraph whose
// final output is labeled [vout]. The graph is the whole render contract:
// one declarative pass, no per-frame callbacks.
func (c *Composition) Build() string {
	if c.Empty() {
		return ""
	}

	var chains []string
	current := "[base]"
	chains = append(chains, fmt.Sprintf("[0:v]scale=%d:%d[base]", c.Width&^1, c.Height&^1))

	for i, layer := range c.Captions {
		next := fmt.Sprintf("[cap%d]", i)
		chains = append(chains, current+c.captionFilter(layer)+next)
		current = next
	}

	if c.Watermark.ImagePath != "" {
		chains = append(chains, fmt.Sprintf(
			"movie='%s',scale=%d:-1,format=rgba,colorchannelmixer=aa=%.2f[wmk]",
			escapeFilterValue(c.Watermark.ImagePath), watermarkLogoWidth, watermarkOpacity))
		next := "[wm0]"
		chains = append(chains, fmt.Sprintf("%s[wmk]overlay=x=W-w-%d:y=%d%s",
			current, watermarkPadding, watermarkPadding, next))
		current = next
	}
	if c.Watermark.Text != "" {
		next := "[wm1]"
		chains = append(chains, fmt.Sprintf("%s%s%s", current, c.watermarkTextFilter(), next))
		current = next
	}

	// Relabel the last link as the graph output.
	last := chains[len(chains)-1]
	chains[len(chains)-1] = strings.TrimSuffix(last, current) + "[vout]"

	return strings.Join(chains, ";")
}

// captionFilter renders one caption layer: bold white text on a dark plate
// with a soft shadow, centered at the fixed anchor. Opacity ramps in over
// FadeDuration from StartTime and out between FadeOutStart and EndTime; the
// pop effect scales the font from 90% to 100% over the fade-in.
func (c *Composition) captionFilter(layer CaptionLayer) string {
	fadeOutDur := layer.EndTime - layer.FadeOutStart
	if fadeOutDur <= 0 {
		fadeOutDur = 0.0001
	}

	alpha := fmt.Sprintf(
		"if(between(t\\,%.4f\\,%.4f)\\,clip(min((t-%.4f)/%.4f\\,(%.4f-t)/%.4f)\\,0\\,1)\\,0)",
		layer.StartTime, layer.EndTime,
		layer.StartTime, FadeDuration,
		layer.EndTime, fadeOutDur)

	baseSize := c.captionFontSize(layer.Text)
	fontsize := fmt.Sprintf("%d*(%0.2f+%0.2f*clip((t-%.4f)/%.4f\\,0\\,1))",
		baseSize, popStartScale, 1-popStartScale, layer.StartTime, FadeDuration)

	return fmt.Sprintf(
		"drawtext=%s:text='%s':fontcolor=white:fontsize=%s:alpha='%s':"+
			"box=1:boxcolor=black@0.55:boxborderw=14:"+
			"shadowcolor=black@0.7:shadowx=2:shadowy=2:"+
			"x=(w-text_w)/2:y=%d-(text_h/2)",
		c.fontSpec(),
		escapeFilterValue(layer.Text),
		fontsize,
		alpha,
		int(float64(c.Height)*captionAnchorY))
}

// watermarkTextFilter renders the watermark text line at the top-right,
// below the logo block when a logo is present.
func (c *Composition) watermarkTextFilter() string {
	y := watermarkPadding
	if c.Watermark.ImagePath != "" {
		y += watermarkLogoWidth + watermarkPadding/2
	}
	return fmt.Sprintf(
		"drawtext=%s:text='%s':fontcolor=white@%.2f:fontsize=%d:x=w-text_w-%d:y=%d",
		c.fontSpec(),
		escapeFilterValue(c.Watermark.Text),
		watermarkOpacity,
		c.Height/36,
		watermarkPadding, y)
}

// captionFontSize sizes the font so typical segment text spans about 85% of
// the frame width, bounded to stay legible on short and long lines alike.
func (c *Composition) captionFontSize(text string) int {
	chars := len([]rune(text))
	if chars < 1 {
		chars = 1
	}
	// Average glyph width runs about 0.55 of the font size for bold faces.
	size := int(float64(c.Width) * captionWidthFrac / (0.55 * float64(chars)))

	min := c.Height / 24
	max := c.Height / 10
	if size < min {
		size = min
	}
	if size > max {
		size = max
	}
	return size
}

// fontSpec picks the configured font file or a bold system family.
func (c *Composition) fontSpec() string {
	if c.FontFile != "" {
		return fmt.Sprintf("fontfile='%s'", escapeFilterValue(c.FontFile))
	}
	return "font='Sans Bold'"
}

// escapeFilterValue escapes characters that terminate or rewrite drawtext
// option values inside a filtergraph string.
func escapeFilterValue(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`,`, `\,`,
		`;`, `\;`,
		`%`, `\%`,
		`[`, `\[`,
		`]`, `\]`,
	)
	return r.Replace(s)
}
