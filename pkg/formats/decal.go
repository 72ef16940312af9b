package formats

import (
	"github.com/Faultbox/xplane-assets/pkg/material"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// readDecal parses one of the decal commands into the next free slot.
// Albedo decals take slots 0/1 (2/3 too unless normal decals are present);
// normal decals take slots 2/3 and switch the material to separate decals.
func readDecal(c command, m *material.Material) error {
	var d material.Decal
	normal := false
	switch c.name() {
	case "DECAL":
		// DECAL tile path: applied at full strength.
		if err := c.need(2); err != nil {
			return err
		}
		tile, err := c.float(0)
		if err != nil {
			return err
		}
		d.TileRatio = tile
		d.RGBStrength.Const = 1
		d.AlphaStrength.Const = 1
		d.Albedo = assetPath(c.rest(1))
	case "DECAL_PARAMS", "DECAL_PARAMS_PROJ":
		i := 0
		n := 15
		if c.name() == "DECAL_PARAMS_PROJ" {
			n = 16
		}
		if err := c.need(n); err != nil {
			return err
		}
		if n == 16 {
			f, err := c.floats(0, 2)
			if err != nil {
				return err
			}
			d.Projected = true
			d.ScaleX, d.ScaleY = f[0], f[1]
			i = 2
		} else {
			tile, err := c.float(0)
			if err != nil {
				return err
			}
			d.TileRatio = tile
			i = 1
		}
		f, err := c.floats(i, 13)
		if err != nil {
			return err
		}
		d.DitherRatio = f[0]
		d.RGBKey = material.Key{R: f[1], G: f[2], B: f[3], A: f[4]}
		d.RGBStrength = material.Strength{Mod: f[5], Const: f[6]}
		d.AlphaKey = material.Key{R: f[7], G: f[8], B: f[9], A: f[10]}
		d.AlphaStrength = material.Strength{Mod: f[11], Const: f[12]}
		d.Albedo = assetPath(c.rest(i + 13))
	case "NORMAL_DECAL_PARAMS", "NORMAL_DECAL_PARAMS_PROJ":
		normal = true
		i := 1
		n := 8
		if c.name() == "NORMAL_DECAL_PARAMS_PROJ" {
			i, n = 2, 9
		}
		if err := c.need(n); err != nil {
			return err
		}
		if i == 2 {
			f, err := c.floats(0, 2)
			if err != nil {
				return err
			}
			d.Projected = true
			d.ScaleX, d.ScaleY = f[0], f[1]
		} else {
			tile, err := c.float(0)
			if err != nil {
				return err
			}
			d.TileRatio = tile
		}
		f, err := c.floats(i, 6)
		if err != nil {
			return err
		}
		d.NrmKey = material.Key{R: f[0], G: f[1], B: f[2], A: f[3]}
		d.NrmStrength = material.Strength{Mod: f[4], Const: f[5]}
		d.Normal = assetPath(c.rest(i + 6))
	}
	d.Enabled = true

	slot := -1
	if normal {
		for s := 2; s < material.MaxDecals; s++ {
			if !m.Decals[s].Enabled {
				slot = s
				break
			}
		}
		if slot < 0 {
			return xperr.Format(c.line, "no free normal decal slot")
		}
		m.SeparateDecals = true
	} else {
		for s := 0; s < material.MaxDecals; s++ {
			if !m.Decals[s].Enabled && m.IsAlbedoSlot(s) {
				slot = s
				break
			}
		}
		if slot < 0 {
			return xperr.Format(c.line, "no free albedo decal slot")
		}
	}
	d.ModulatorChannel = slot % 2
	m.Decals[slot] = d
	return nil
}

// writeDecals emits enabled decal slots in slot order.
func writeDecals(w *textWriter, m *material.Material) {
	if m.Modulator != "" {
		w.line("TEXTURE_MODULATOR", m.Modulator)
	}
	for _, i := range m.EnabledDecals() {
		d := &m.Decals[i]
		if m.IsAlbedoSlot(i) {
			keys := w.fs(d.DitherRatio,
				d.RGBKey.R, d.RGBKey.G, d.RGBKey.B, d.RGBKey.A, d.RGBStrength.Mod, d.RGBStrength.Const,
				d.AlphaKey.R, d.AlphaKey.G, d.AlphaKey.B, d.AlphaKey.A, d.AlphaStrength.Mod, d.AlphaStrength.Const)
			if d.Projected {
				w.line("DECAL_PARAMS_PROJ", w.fs(d.ScaleX, d.ScaleY), keys, d.Albedo)
			} else {
				w.line("DECAL_PARAMS", w.f(d.Ratio()), keys, d.Albedo)
			}
			continue
		}
		k, s := d.NormalKey()
		keys := w.fs(k.R, k.G, k.B, k.A, s.Mod, s.Const)
		if d.Projected {
			w.line("NORMAL_DECAL_PARAMS_PROJ", w.fs(d.ScaleX, d.ScaleY), keys, d.Normal)
		} else {
			w.line("NORMAL_DECAL_PARAMS", w.f(d.Ratio()), keys, d.Normal)
		}
	}
}
