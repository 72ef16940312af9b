package scene

import (
	"path/filepath"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/formats"
	"github.com/Faultbox/xplane-assets/pkg/material"
	"github.com/Faultbox/xplane-assets/pkg/paths"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// ExportOptions control a batch export.
type ExportOptions struct {
	Write formats.WriteOptions
	// Backup renames existing files out of the way before writing.
	Backup bool
	Log    *zap.Logger
}

// ExportCollection builds the asset of an exported collection according to
// its type. Auto-split objects of an autogen collection come back as extra
// .obj files keyed by file name.
func ExportCollection(s *Scene, c *Collection, log *zap.Logger) (formats.Asset, map[string]*formats.Object, error) {
	switch c.Type {
	case ExportOBJ, "":
		o, err := ExportObject(s, c, log)
		return o, nil, err
	case ExportLIN:
		l, err := ExportLine(s, c, log)
		return l, nil, err
	case ExportPOL:
		p, err := ExportPolygon(s, c, log)
		return p, nil, err
	case ExportFAC:
		f, err := ExportFacade(s, c, log)
		return f, nil, err
	case ExportAGP:
		return ExportAutogen(s, c, log)
	}
	return nil, nil, xperr.Invariant("collection %q: unknown export type %q", c.Name, c.Type)
}

// ExportAll writes every collection marked for export into outDir, in
// insertion order. A failing collection is logged and skipped; the errors
// are returned together with the paths written.
func ExportAll(s *Scene, outDir string, opts ExportOptions) ([]string, error) {
	log := nopIfNil(opts.Log)
	if opts.Write.Log == nil {
		opts.Write.Log = log
	}
	if opts.Write.Lights == nil {
		opts.Write.Lights = formats.DefaultLights()
	}
	var written []string
	var errs error
	walkCollections(s.Collections, func(c *Collection) {
		if !c.Export {
			return
		}
		out, err := exportOne(s, c, outDir, opts)
		written = append(written, out...)
		if err != nil {
			log.Error("export failed", zap.String("collection", c.Name), zap.Error(err))
			errs = multierr.Append(errs, err)
			return
		}
		log.Info("exported", zap.String("collection", c.Name), zap.Strings("files", out))
	})
	return written, errs
}

func exportOne(s *Scene, c *Collection, outDir string, opts ExportOptions) ([]string, error) {
	asset, splits, err := ExportCollection(s, c, opts.Log)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(outDir, c.FileName())
	for _, m := range assetMaterials(asset) {
		if err := s.toAssetPaths(m, path); err != nil {
			return nil, err
		}
	}
	var written []string
	names := make([]string, 0, len(splits))
	for name := range splits {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := filepath.Join(outDir, name)
		if err := write(s, splits[name], p, opts); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	if err := write(s, asset, path, opts); err != nil {
		return written, err
	}
	return append(written, path), nil
}

func write(s *Scene, a formats.Asset, path string, opts ExportOptions) error {
	if o, ok := a.(*formats.Object); ok {
		for _, m := range []*material.Material{&o.Material, &o.Draped} {
			if err := s.toAssetPaths(m, path); err != nil {
				return err
			}
		}
	}
	data, err := a.Encode(opts.Write)
	if err != nil {
		return err
	}
	return paths.WriteFile(path, data, opts.Backup)
}

// assetMaterials lists the materials of non-object assets; objects are
// handled in write.
func assetMaterials(a formats.Asset) []*material.Material {
	switch v := a.(type) {
	case *formats.LinePaint:
		return []*material.Material{&v.Material}
	case *formats.Polygon:
		return []*material.Material{&v.Material}
	case *formats.Facade:
		out := []*material.Material{&v.Wall}
		if v.Roof != nil {
			out = append(out, v.Roof)
		}
		return out
	case *formats.Autogen:
		return []*material.Material{&v.Material}
	}
	return nil
}
