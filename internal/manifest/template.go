package manifest

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// templateVar matches $Identifier$ and $Identifier%0Nd$ placeholders.
var templateVar = regexp.MustCompile(`\$(RepresentationID|Number|Bandwidth|Time)(%0(\d+)d)?\$`)

// expandTemplate substitutes DASH template identifiers. "$$" is a literal "$".
func expandTemplate(tmpl string, repID string, number, bandwidth, t int64) string {
	const escaped = "\x00"
	s := strings.ReplaceAll(tmpl, "$$", escaped)

	s = templateVar.ReplaceAllStringFunc(s, func(m string) string {
		parts := templateVar.FindStringSubmatch(m)
		name, width := parts[1], parts[3]

		var v int64
		switch name {
		case "RepresentationID":
			return repID
		case "Number":
			v = number
		case "Bandwidth":
			v = bandwidth
		case "Time":
			v = t
		}
		if width != "" {
			w, _ := strconv.Atoi(width)
			return fmt.Sprintf("%0*d", w, v)
		}
		return strconv.FormatInt(v, 10)
	})

	return strings.ReplaceAll(s, escaped, "$")
}

// resolveURL resolves ref against base. An unparsable ref is returned as-is.
func resolveURL(base, ref string) string {
	if ref == "" {
		return base
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
