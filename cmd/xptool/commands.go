package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/xplane-assets/internal/assets"
	"github.com/Faultbox/xplane-assets/internal/config"
	"github.com/Faultbox/xplane-assets/pkg/bake"
	"github.com/Faultbox/xplane-assets/pkg/formats"
	"github.com/Faultbox/xplane-assets/pkg/paths"
	"github.com/Faultbox/xplane-assets/pkg/scene"
	"github.com/Faultbox/xplane-assets/pkg/shader"
)

func writeOptions(cfg *config.Config, log *zap.Logger) formats.WriteOptions {
	return formats.WriteOptions{
		Platform:         cfg.Export.Platform,
		Precision:        cfg.Export.Precision,
		HeadingPrecision: cfg.Export.HeadingPrecision,
		Log:              log,
	}
}

func cmdInfo(args []string, log *zap.Logger, out io.Writer) error {
	if len(args) < 1 {
		return usage("info <asset>")
	}
	asset, err := formats.Decode(args[0], log)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "File:     %s\n", args[0])
	fmt.Fprintf(out, "Kind:     %s\n", asset.Kind())
	switch a := asset.(type) {
	case *formats.Object:
		levels, actions, calls, lights := 0, 0, 0, 0
		if a.Root != nil {
			a.Root.Walk(func(l *formats.AnimLevel, _ int) {
				levels++
				actions += len(l.Actions)
				calls += len(l.DrawCalls)
				lights += len(l.Lights)
			})
		}
		fmt.Fprintf(out, "Texture:  %s\n", a.Material.Albedo)
		fmt.Fprintf(out, "Vertices: %d\n", len(a.Vertices))
		fmt.Fprintf(out, "Indices:  %d\n", len(a.Indices))
		fmt.Fprintf(out, "Levels:   %d (%d actions)\n", levels, actions)
		fmt.Fprintf(out, "Draws:    %d\n", calls)
		fmt.Fprintf(out, "Lights:   %d\n", lights)
		fmt.Fprintf(out, "LODs:     %d\n", len(a.LODBuckets))
	case *formats.LinePaint:
		fmt.Fprintf(out, "Texture:  %s\n", a.Material.Albedo)
		fmt.Fprintf(out, "Scale:    %g x %g\n", a.ScaleX, a.ScaleY)
		fmt.Fprintf(out, "Segments: %d\n", len(a.Segments))
		fmt.Fprintf(out, "Caps:     %d\n", len(a.Caps))
	case *formats.Polygon:
		fmt.Fprintf(out, "Texture:  %s\n", a.Material.Albedo)
		fmt.Fprintf(out, "Scale:    %g x %g\n", a.ScaleX, a.ScaleY)
		fmt.Fprintf(out, "Subtex:   %d\n", len(a.Subtextures))
	case *formats.Facade:
		fmt.Fprintf(out, "Texture:  %s\n", a.Wall.Albedo)
		fmt.Fprintf(out, "Objects:  %d\n", len(a.Objects))
		for _, fl := range a.Floors {
			fmt.Fprintf(out, "  floor %-12s segments=%d walls=%d roofs=%d\n",
				fl.Name, len(fl.Segments), len(fl.Walls), len(fl.RoofHeights))
		}
	case *formats.Autogen:
		fmt.Fprintf(out, "Texture:  %s\n", a.Material.Albedo)
		fmt.Fprintf(out, "Objects:  %d\n", len(a.Objects))
		fmt.Fprintf(out, "Facades:  %d\n", len(a.Facades))
		for i, t := range a.Tiles {
			fmt.Fprintf(out, "  tile %d  objects=%d trees=%d crops=%d\n",
				i, len(t.Objects), len(t.Trees), len(t.Crops))
		}
	}
	return nil
}

func cmdRoundtrip(args []string, cfg *config.Config, log *zap.Logger, out io.Writer) error {
	if len(args) < 1 {
		return usage("roundtrip <asset> [output]")
	}
	in := args[0]
	target := strings.TrimSuffix(in, filepath.Ext(in)) + "_roundtrip" + filepath.Ext(in)
	if len(args) > 1 {
		target = args[1]
	}
	if formats.Detect(target) != formats.Detect(in) {
		return fmt.Errorf("output %s must keep the %s extension", target, filepath.Ext(in))
	}

	asset, err := formats.Decode(in, log)
	if err != nil {
		return err
	}
	data, err := asset.Encode(writeOptions(cfg, log))
	if err != nil {
		return err
	}
	if err := paths.WriteFile(target, data, cfg.Export.Backup); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s (%d bytes)\n", target, len(data))
	return nil
}

func loadOrCreate(path string) (*scene.Scene, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		return scene.New(abs), nil
	}
	return scene.Load(path)
}

func cmdImport(args []string, cfg *config.Config, log *zap.Logger, out io.Writer) error {
	if len(args) < 2 {
		return usage("import <asset> <scene.yaml>")
	}
	s, err := loadOrCreate(args[1])
	if err != nil {
		return err
	}
	c, err := scene.Import(s, args[0], log)
	if err != nil {
		return err
	}
	if err := s.Save(args[1], cfg.Export.Backup); err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %s as collection %q (%d objects)\n", args[0], c.Name, len(c.AllObjects()))
	return nil
}

func cmdExport(args []string, cfg *config.Config, log *zap.Logger, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	manifest := fs.String("lights", "", "Light manifest (default built-in table)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 2 {
		return usage("export [-lights manifest] <scene.yaml> <dir>")
	}

	s, err := scene.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	opts := scene.ExportOptions{Write: writeOptions(cfg, log), Backup: cfg.Export.Backup, Log: log}
	if *manifest != "" {
		table, err := loadLights(*manifest)
		if err != nil {
			return err
		}
		opts.Write.Lights = table
	}

	written, err := scene.ExportAll(s, fs.Arg(1), opts)
	for _, path := range written {
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
	return err
}

func cmdCompose(args []string, cfg *config.Config, log *zap.Logger, out io.Writer) error {
	if len(args) < 4 {
		return usage("compose <normal> <metal> <rough> <out.png>")
	}
	images := assets.NewManager(cfg.Images.ForceReload, log)
	defer images.Close()

	normal, err := images.Load(args[0])
	if err != nil {
		return err
	}
	metal, err := images.LoadAs(args[1], "metalness")
	if err != nil {
		return err
	}
	rough, err := images.LoadAs(args[2], "roughness")
	if err != nil {
		return err
	}
	packed, err := bake.ComposePackedNormal(normal, metal, rough)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, packed); err != nil {
		return err
	}
	if err := paths.WriteFile(args[3], buf.Bytes(), cfg.Export.Backup); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s (%dx%d)\n", args[3], packed.Rect.Dx(), packed.Rect.Dy())
	return nil
}

func cmdGraph(args []string, cfg *config.Config, out io.Writer) error {
	if len(args) < 2 {
		return usage("graph <scene.yaml> <material>")
	}
	s, err := scene.Load(args[0])
	if err != nil {
		return err
	}
	m, err := s.Material(args[1])
	if err != nil {
		return err
	}
	v, err := shader.ParseHostVersion(cfg.Export.HostVersion)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(shader.Normalize(shader.Synthesize(m, v)))
}

func loadLights(path string) (formats.LightTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return formats.ParseLightManifest(f)
}

func cmdLights(args []string, out io.Writer) error {
	table := formats.DefaultLights()
	if len(args) > 0 {
		t, err := loadLights(args[0])
		if err != nil {
			return err
		}
		table = t
	}
	for _, name := range table.Names() {
		def := table[name]
		unit := ""
		if def.Photometric() {
			unit = " (cd)"
		}
		fmt.Fprintf(out, "%-40s %s%s\n", name, strings.Join(def.Params, " "), unit)
	}
	fmt.Fprintf(out, "\n%d lights\n", len(table))
	return nil
}
