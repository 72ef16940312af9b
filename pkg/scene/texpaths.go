package scene

import (
	"path/filepath"

	"github.com/Faultbox/xplane-assets/pkg/material"
	"github.com/Faultbox/xplane-assets/pkg/paths"
)

// mapTextures rewrites every texture path of m with fn.
func mapTextures(m *material.Material, fn func(string) (string, error)) error {
	fields := []*string{&m.Albedo, &m.Normal, &m.Lit, &m.Mat, &m.Weather, &m.Modulator}
	for i := range m.Decals {
		fields = append(fields, &m.Decals[i].Albedo, &m.Decals[i].Normal)
	}
	for _, f := range fields {
		if *f == "" {
			continue
		}
		p, err := fn(*f)
		if err != nil {
			return err
		}
		*f = p
	}
	return nil
}

// toAssetPaths rewrites scene texture paths relative to the asset file.
func (s *Scene) toAssetPaths(m *material.Material, assetFile string) error {
	r := s.Resolver()
	return mapTextures(m, func(p string) (string, error) {
		if !paths.IsRelative(p) && !filepath.IsAbs(p) {
			return p, nil
		}
		abs, err := r.ToAbsolute(p)
		if err != nil {
			return "", err
		}
		return paths.AssetRelative(assetFile, abs)
	})
}

// fromAssetPaths rewrites asset-relative texture paths as scene paths.
func (s *Scene) fromAssetPaths(m *material.Material, assetFile string) {
	r := s.Resolver()
	_ = mapTextures(m, func(p string) (string, error) {
		return r.ToRelative(paths.FromAsset(assetFile, p)), nil
	})
}
