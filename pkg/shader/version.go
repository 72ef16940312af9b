package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// HostVersion is the host application version the graph targets.
type HostVersion struct {
	Major int
	Minor int
}

// ParseHostVersion parses "major.minor" (a trailing patch component is ignored).
func ParseHostVersion(s string) (HostVersion, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 {
		return HostVersion{}, errors.Errorf("host version %q: want major.minor", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return HostVersion{}, errors.Wrapf(err, "host version %q", s)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return HostVersion{}, errors.Wrapf(err, "host version %q", s)
	}
	return HostVersion{Major: major, Minor: minor}, nil
}

func (v HostVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Less reports whether v is older than o.
func (v HostVersion) Less(o HostVersion) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// Sockets holds the principled BSDF input socket names and indices.
type Sockets struct {
	BaseColor        Socket
	Metallic         Socket
	Roughness        Socket
	Alpha            Socket
	Normal           Socket
	Emission         Socket
	EmissionStrength Socket
}

// Socket is a named input with its positional index.
type Socket struct {
	Name  string
	Index int
}

var (
	socketsV2 = Sockets{
		BaseColor:        Socket{"Base Color", 0},
		Metallic:         Socket{"Metallic", 4},
		Roughness:        Socket{"Roughness", 7},
		Emission:         Socket{"Emission", 17},
		EmissionStrength: Socket{"Emission Strength", 18},
		Alpha:            Socket{"Alpha", 19},
		Normal:           Socket{"Normal", 20},
	}
	socketsV3 = Sockets{
		BaseColor:        Socket{"Base Color", 0},
		Metallic:         Socket{"Metallic", 6},
		Roughness:        Socket{"Roughness", 9},
		Emission:         Socket{"Emission", 19},
		EmissionStrength: Socket{"Emission Strength", 20},
		Alpha:            Socket{"Alpha", 21},
		Normal:           Socket{"Normal", 22},
	}
	socketsV4 = Sockets{
		BaseColor:        Socket{"Base Color", 0},
		Metallic:         Socket{"Metallic", 1},
		Roughness:        Socket{"Roughness", 2},
		Alpha:            Socket{"Alpha", 4},
		Normal:           Socket{"Normal", 5},
		Emission:         Socket{"Emission Color", 26},
		EmissionStrength: Socket{"Emission Strength", 27},
	}
)

// PrincipledSockets returns the socket layout for the host version window
// containing v: before 3.0, 3.x, or 4.0 and later.
func PrincipledSockets(v HostVersion) Sockets {
	switch {
	case v.Major < 3:
		return socketsV2
	case v.Major == 3:
		return socketsV3
	default:
		return socketsV4
	}
}
