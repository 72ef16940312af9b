package formats

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/encoding"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// Platform letters accepted on the first header line.
const (
	PlatformApple = "A"
	PlatformIBM   = "I"
)

// Header is the three-line preamble shared by every format.
type Header struct {
	Platform string `yaml:"platform"`
	Version  int    `yaml:"version"`
	Keyword  string `yaml:"keyword"`
}

// command is one non-empty, non-comment line split on whitespace.
type command struct {
	line int
	raw  string
	tok  []string
}

func (c command) name() string { return c.tok[0] }

// args is the number of arguments after the command name.
func (c command) args() int { return len(c.tok) - 1 }

// need returns a FormatError when fewer than n arguments are present.
func (c command) need(n int) error {
	if c.args() < n {
		return xperr.Format(c.line, "%s: want at least %d arguments, got %d", c.name(), n, c.args())
	}
	return nil
}

func (c command) str(i int) string {
	if i+1 < len(c.tok) {
		return c.tok[i+1]
	}
	return ""
}

func (c command) float(i int) (float32, error) {
	v, err := strconv.ParseFloat(c.str(i), 32)
	if err != nil {
		return 0, xperr.Format(c.line, "%s: argument %d: %q is not a number", c.name(), i+1, c.str(i))
	}
	return float32(v), nil
}

func (c command) integer(i int) (int, error) {
	s := c.str(i)
	v, err := strconv.Atoi(s)
	if err != nil {
		// Some writers emit integral values with a decimal point.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, xperr.Format(c.line, "%s: argument %d: %q is not an integer", c.name(), i+1, s)
		}
		return int(f), nil
	}
	return v, nil
}

// floats parses n consecutive floats starting at argument i.
func (c command) floats(i, n int) ([]float32, error) {
	out := make([]float32, n)
	for k := 0; k < n; k++ {
		v, err := c.float(i + k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (c command) vec3(i int) (xpmath.Vec3, error) {
	f, err := c.floats(i, 3)
	if err != nil {
		return xpmath.Vec3{}, err
	}
	return xpmath.Vec3{X: f[0], Y: f[1], Z: f[2]}, nil
}

// rest returns the raw text from argument i to the end of the line with
// interior spacing preserved. Used for tooltips and opaque parameter tails.
func (c command) rest(i int) string {
	s := c.raw
	for k := 0; k <= i; k++ {
		s = strings.TrimLeft(s, " \t")
		end := strings.IndexAny(s, " \t")
		if end < 0 {
			return ""
		}
		s = s[end:]
	}
	return strings.TrimSpace(s)
}

// scanLines splits data into commands. Comments start with '#'; lines that
// are not valid UTF-8 are decoded as Windows-1252.
func scanLines(data []byte) []command {
	var out []command
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		text := encoding.LineToUTF8(sc.Bytes())
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimRight(text, " \t\r")
		tok := strings.Fields(text)
		if len(tok) == 0 {
			continue
		}
		out = append(out, command{line: n, raw: strings.TrimSpace(text), tok: tok})
	}
	return out
}

// readHeader consumes the three header lines and checks the keyword.
func readHeader(cmds []command, keyword string) (Header, []command, error) {
	if len(cmds) < 3 {
		return Header{}, nil, xperr.Format(0, "truncated header")
	}
	h := Header{Platform: cmds[0].tok[0], Keyword: cmds[2].tok[0]}
	if h.Platform != PlatformApple && h.Platform != PlatformIBM {
		return Header{}, nil, xperr.Format(cmds[0].line, "bad platform letter %q", h.Platform)
	}
	v, err := strconv.Atoi(cmds[1].tok[0])
	if err != nil {
		return Header{}, nil, xperr.Format(cmds[1].line, "bad version %q", cmds[1].tok[0])
	}
	h.Version = v
	if h.Keyword != keyword {
		return Header{}, nil, xperr.Format(cmds[2].line, "expected %s, got %q", keyword, h.Keyword)
	}
	return h, cmds[3:], nil
}

// warnSkip logs a recoverable parse problem.
func warnSkip(log *zap.Logger, c command, err error) {
	log.Warn("skipping command", zap.Int("line", c.line), zap.String("cmd", c.name()), zap.Error(err))
}

func warnUnknown(log *zap.Logger, c command) {
	log.Warn("unknown command", zap.Int("line", c.line), zap.String("cmd", c.name()))
}
