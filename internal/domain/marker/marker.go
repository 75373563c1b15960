package marker

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateToken prefixes the line carrying the release date.
	DateToken = "__date__"
	// VersionToken prefixes the line carrying the release version.
	VersionToken = "__version__"
)

var months = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Kind identifies which stamped line a rewrite produced.
type Kind string

const (
	KindNone    Kind = ""
	KindDate    Kind = "date"
	KindVersion Kind = "version"
)

// FormatDate renders t as "<day> <Mon> <year>", e.g. "5 Mar 2024".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), months[t.Month()-1], t.Year())
}

// DateLine returns the stamped date line for t.
func DateLine(t time.Time) string {
	return DateToken + ` = "` + FormatDate(t) + `"`
}

// VersionLine returns the stamped version line for version.
func VersionLine(version string) string {
	return VersionToken + ` = "` + version + `"`
}

// Rewriter replaces stamped lines with freshly generated ones.
type Rewriter struct {
	dateLine    string
	versionLine string
}

// NewRewriter builds a Rewriter stamping date and version.
func NewRewriter(date time.Time, version string) Rewriter {
	return Rewriter{
		dateLine:    DateLine(date),
		versionLine: VersionLine(version),
	}
}

// Rewrite returns the replacement for line and the kind of marker it carried.
// Lines without a marker are returned unchanged with KindNone.
func (r Rewriter) Rewrite(line string) (string, Kind) {
	switch {
	case strings.HasPrefix(line, DateToken):
		return r.dateLine, KindDate
	case strings.HasPrefix(line, VersionToken):
		return r.versionLine, KindVersion
	default:
		return line, KindNone
	}
}

// RewriteLine is Rewrite reporting only whether the line was stamped.
func (r Rewriter) RewriteLine(line string) (string, bool) {
	out, kind := r.Rewrite(line)
	return out, kind != KindNone
}
