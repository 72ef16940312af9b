package formats

import (
	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/encoding"
	"github.com/Faultbox/xplane-assets/pkg/material"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// readPreamble applies a shared material command to m. It reports whether
// the command belongs to the preamble; a malformed preamble command is
// logged and skipped.
func readPreamble(c command, m *material.Material, log *zap.Logger) bool {
	ok, err := preambleCommand(c, m)
	if ok && err != nil {
		warnSkip(log, c, err)
	}
	return ok
}

func preambleCommand(c command, m *material.Material) (bool, error) {
	switch c.name() {
	case "TEXTURE", "TEXTURE_NOWRAP":
		if err := c.need(1); err != nil {
			return true, err
		}
		m.Albedo = assetPath(c.rest(0))
		m.NoWrap = c.name() == "TEXTURE_NOWRAP"
	case "TEXTURE_LIT", "TEXTURE_LIT_NOWRAP":
		if err := c.need(1); err != nil {
			return true, err
		}
		m.Lit = assetPath(c.rest(0))
	case "TEXTURE_NORMAL", "TEXTURE_NORMAL_NOWRAP":
		if err := c.need(2); err != nil {
			return true, err
		}
		ratio, err := c.float(0)
		if err != nil {
			return true, err
		}
		m.NormalTileRatio = ratio
		m.Normal = assetPath(c.rest(1))
	case "TEXTURE_MATERIAL":
		if err := c.need(1); err != nil {
			return true, err
		}
		m.Mat = assetPath(c.rest(0))
		m.SeparateMaterialTexture = true
	case "TEXTURE_MODULATOR":
		if err := c.need(1); err != nil {
			return true, err
		}
		m.Modulator = assetPath(c.rest(0))
	case "WEATHER":
		if err := c.need(1); err != nil {
			return true, err
		}
		m.Weather = assetPath(c.rest(0))
	case "NO_BLEND":
		m.Blend = material.BlendClip
		m.BlendCutoff = material.DefaultCutoff
		if c.args() > 0 {
			v, err := c.float(0)
			if err != nil {
				return true, err
			}
			m.BlendCutoff = v
		}
	case "NO_SHADOW":
		m.NoShadow = true
	case "NORMAL_METALNESS":
	case "SURFACE":
		if err := c.need(1); err != nil {
			return true, err
		}
		s, err := material.ParseSurface(c.str(0))
		if err != nil {
			return true, xperr.Format(c.line, "%v", err)
		}
		m.Surface = s
	case "LAYER_GROUP":
		if err := c.need(1); err != nil {
			return true, err
		}
		m.LayerGroup = c.str(0)
		m.LayerGroupOffset = 0
		if c.args() > 1 {
			off, err := c.integer(1)
			if err != nil {
				return true, err
			}
			m.LayerGroupOffset = off
		}
	case "DECAL", "DECAL_PARAMS", "DECAL_PARAMS_PROJ", "NORMAL_DECAL_PARAMS", "NORMAL_DECAL_PARAMS_PROJ":
		return true, readDecal(c, m)
	default:
		return false, nil
	}
	return true, nil
}

func assetPath(p string) string {
	return encoding.NormalizeAssetPath(p)
}

// writePreamble emits the shared material commands.
func writePreamble(w *textWriter, m *material.Material) {
	if m.Albedo != "" {
		if m.NoWrap {
			w.line("TEXTURE_NOWRAP", m.Albedo)
		} else {
			w.line("TEXTURE", m.Albedo)
		}
	}
	if m.Lit != "" {
		w.line("TEXTURE_LIT", m.Lit)
	}
	if m.Normal != "" {
		w.line("TEXTURE_NORMAL", w.f(m.TileRatio()), m.Normal)
		if !m.SeparateMaterialTexture {
			w.line("NORMAL_METALNESS")
		}
	}
	if m.SeparateMaterialTexture && m.Mat != "" {
		w.line("TEXTURE_MATERIAL", m.Mat)
	}
	if m.Weather != "" {
		w.line("WEATHER", m.Weather)
	}
	if m.BlendMode() == material.BlendClip {
		w.line("NO_BLEND", w.f(m.Cutoff()))
	}
	if !m.CastShadow() {
		w.line("NO_SHADOW")
	}
	if m.Surface != "" && m.Surface != material.SurfaceNone {
		w.line("SURFACE", string(m.Surface))
	}
	if m.LayerGroup != "" {
		w.line("LAYER_GROUP", m.LayerGroup, itoa(m.LayerGroupOffset))
	}
	writeDecals(w, m)
}
