package record

import (
	"cmp"
	"fmt"
	"path"
	"strconv"
	"strings"

	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
)

// Key identifies one haul.
type Key struct {
	Year   int32  `json:"year"`
	Survey string `json:"survey"`
	Haul   int64  `json:"haul"`
}

// String is the path stem form, e.g. "2023_NBS_5".
func (k Key) String() string {
	return fmt.Sprintf("%d_%s_%d", k.Year, k.Survey, k.Haul)
}

func CompareKeys(a, b Key) int {
	if c := cmp.Compare(a.Year, b.Year); c != 0 {
		return c
	}
	if c := strings.Compare(a.Survey, b.Survey); c != 0 {
		return c
	}
	return cmp.Compare(a.Haul, b.Haul)
}

// ParseKeyPath recovers the Key from a haul or joined path such as
// "joined/2023_NBS_5.batch". The year is the first underscore-separated part
// and the haul the last, so surveys may contain underscores.
func ParseKeyPath(p string) (Key, error) {
	stem := path.Base(p)
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	parts := strings.Split(stem, "_")
	if len(parts) < 3 {
		return Key{}, apperrors.Newf(apperrors.ErrInvalidInput, p, "expected {year}_{survey}_{haul}")
	}
	year, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return Key{}, apperrors.Newf(apperrors.ErrInvalidInput, p, "bad year %q", parts[0])
	}
	haul, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return Key{}, apperrors.Newf(apperrors.ErrInvalidInput, p, "bad haul %q", parts[len(parts)-1])
	}
	survey := strings.Join(parts[1:len(parts)-1], "_")
	if survey == "" {
		return Key{}, apperrors.Newf(apperrors.ErrInvalidInput, p, "empty survey")
	}
	return Key{Year: int32(year), Survey: survey, Haul: haul}, nil
}
