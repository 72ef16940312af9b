package material

import (
	"fmt"
	"strings"
)

// Surface is an X-Plane hard-surface type.
type Surface string

// Known hard surfaces.
const (
	SurfaceNone     Surface = "none"
	SurfaceWater    Surface = "water"
	SurfaceConcrete Surface = "concrete"
	SurfaceAsphalt  Surface = "asphalt"
	SurfaceGrass    Surface = "grass"
	SurfaceDirt     Surface = "dirt"
	SurfaceGravel   Surface = "gravel"
	SurfaceLakebed  Surface = "lakebed"
	SurfaceSnow     Surface = "snow"
	SurfaceShoulder Surface = "shoulder"
	SurfaceBlastpad Surface = "blastpad"
	SurfaceGrate    Surface = "grate"
	SurfaceWood     Surface = "wood"
	SurfaceMetal    Surface = "metal"
)

var surfaces = []Surface{
	SurfaceNone, SurfaceWater, SurfaceConcrete, SurfaceAsphalt, SurfaceGrass, SurfaceDirt,
	SurfaceGravel, SurfaceLakebed, SurfaceSnow, SurfaceShoulder, SurfaceBlastpad,
	SurfaceGrate, SurfaceWood, SurfaceMetal,
}

// ParseSurface accepts a surface name case-insensitively.
func ParseSurface(s string) (Surface, error) {
	s = strings.ToLower(s)
	if s == "" {
		return SurfaceNone, nil
	}
	for _, known := range surfaces {
		if Surface(s) == known {
			return known, nil
		}
	}
	return SurfaceNone, fmt.Errorf("unknown surface %q", s)
}

// IsHard reports whether the surface makes geometry solid.
func (s Surface) IsHard() bool {
	return s != "" && s != SurfaceNone
}
