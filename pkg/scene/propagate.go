package scene

import (
	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/material"
)

// Propagate derives the collection-level material of c from the materials
// its mesh objects use. The first material wins; later materials that
// disagree on a collection-level attribute are reported and ignored. Render
// state (blend, draped, surface) is per draw call in .obj files, so it is
// only checked for the other export types.
func Propagate(s *Scene, c *Collection, log *zap.Logger) (*material.Material, error) {
	log = nopIfNil(log)
	skip := ""
	if c.Object != nil {
		skip = c.Object.Draped
	}
	var base *material.Material
	var baseName string
	for _, p := range c.AllObjects() {
		for _, name := range p.Object.materialNames() {
			if name == skip {
				continue
			}
			m, err := s.Material(name)
			if err != nil {
				return nil, err
			}
			if base == nil {
				cp := *m
				base, baseName = &cp, name
				continue
			}
			for _, attr := range conflicts(base, m, c.Type != ExportOBJ) {
				log.Warn("conflicting material attribute ignored",
					zap.String("collection", c.Name),
					zap.String("attribute", attr),
					zap.String("kept", baseName),
					zap.String("material", name))
			}
		}
	}
	if base == nil {
		return &material.Material{}, nil
	}
	return base, nil
}

// materialNames lists the materials o uses, single or per polygon.
func (o *Object) materialNames() []string {
	if o.Kind != KindMesh {
		return nil
	}
	if len(o.Materials) > 0 {
		return o.Materials
	}
	if o.Material == "" {
		return nil
	}
	return []string{o.Material}
}

func conflicts(a, b *material.Material, state bool) []string {
	var out []string
	check := func(name string, differ bool) {
		if differ {
			out = append(out, name)
		}
	}
	check("alb", a.Albedo != b.Albedo)
	check("nrm", a.Normal != b.Normal)
	check("lit", a.Lit != b.Lit)
	check("mat", a.Mat != b.Mat)
	check("weather", a.Weather != b.Weather)
	check("modulator", a.Modulator != b.Modulator)
	check("layer_group", a.LayerGroup != b.LayerGroup || a.LayerGroupOffset != b.LayerGroupOffset)
	if state {
		check("blend", a.BlendMode() != b.BlendMode() || a.Cutoff() != b.Cutoff())
		check("draped", a.Draped != b.Draped)
		check("surface", a.Surface != b.Surface)
	}
	return out
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
