package transcript

import (
	"fmt"

	"github.com/paulschiretz/venv-bootstrap/pkg/util"
)

// Format selects how a transcript is compressed, or whether one is written at all.
type Format string

const (
	None Format = "none"
	Gz   Format = "gz"
	Zst  Format = "zst"
)

var formatToString = map[Format]string{
	None: "none",
	Gz:   "gz",
	Zst:  "zst",
}

var stringToFormat map[string]Format

func init() {
	stringToFormat = util.InvertMap(formatToString)
}

func (f Format) String() string {
	if str, ok := formatToString[f]; ok {
		return str
	}
	return fmt.Sprintf("unknown_transcript_format(%s)", string(f))
}

// Extension is the file name suffix of a transcript in this format.
func (f Format) Extension() string {
	switch f {
	case Gz:
		return ".log.gz"
	case Zst:
		return ".log.zst"
	default:
		return ".log"
	}
}

// ParseFormat maps a user supplied name to a Format. The empty string means None.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return None, nil
	}
	if format, ok := stringToFormat[s]; ok {
		return format, nil
	}
	return "", fmt.Errorf("invalid transcript format: %q. Must be 'none', 'gz' or 'zst'", s)
}
