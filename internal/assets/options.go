package assets

import (
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

const (
	entryNamespace = "pagepack-entry"
	entryPrefix    = entryNamespace + ":"
)

// imageFilter matches the images subject to the inline limit.
const imageFilter = `\.(png|jpe?g|gif)$`

// BuildOptions assembles the esbuild options for this configuration. Output
// is not written by esbuild; the pipeline places files itself.
func (c *Config) BuildOptions() api.BuildOptions {
	jsRel := relSlash(c.Paths.Root, c.Paths.JSDest)
	imagesRel := relSlash(c.Paths.Root, c.Paths.ImagesDest)

	opts := api.BuildOptions{
		EntryPointsAdvanced: c.entryPoints(jsRel),
		AbsWorkingDir:       c.Paths.Dirname,
		Outdir:              c.Paths.Root,
		ChunkNames:          path.Join(jsRel, "async_component", "[name]-[hash]"),
		AssetNames:          path.Join(imagesRel, "[name]"),
		PublicPath:          c.PublicPaths.Root,
		Bundle:              true,
		Splitting:           true,
		Write:               false,
		Metafile:            true,
		Format:              api.FormatESModule,
		Platform:            api.PlatformBrowser,
		Target:              api.ES2017,
		JSX:                 api.JSXAutomatic,
		TreeShaking:         api.TreeShakingTrue,
		LogLevel:            api.LogLevelSilent,
		Alias:               c.Paths.Aliases(),
		NodePaths:           []string{filepath.Join(c.Paths.Dirname, "node_modules")},
		Loader: map[string]api.Loader{
			".html":  api.LoaderText,
			".css":   api.LoaderCSS,
			".png":   api.LoaderFile,
			".jpg":   api.LoaderFile,
			".jpeg":  api.LoaderFile,
			".gif":   api.LoaderFile,
			".svg":   api.LoaderFile,
			".woff":  api.LoaderFile,
			".woff2": api.LoaderFile,
		},
		Plugins: []api.Plugin{
			c.entryPlugin(),
			imagePlugin(c.ImageInlineLimit),
		},
	}

	switch c.Mode {
	case Production:
		opts.Sourcemap = api.SourceMapNone
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
		opts.Drop = api.DropDebugger
		opts.LegalComments = api.LegalCommentsNone
	default:
		opts.Sourcemap = api.SourceMapLinked
		opts.MinifySyntax = true
	}

	return opts
}

// entryPoints returns one esbuild entry per entry name. Entries with several
// sources are served by the virtual module from entryPlugin.
func (c *Config) entryPoints(jsRel string) []api.EntryPoint {
	points := make([]api.EntryPoint, 0, len(c.Entries))
	for _, ent := range c.Entries {
		in := ent.Sources[0]
		if len(ent.Sources) > 1 {
			in = entryPrefix + ent.Name
		}
		points = append(points, api.EntryPoint{
			InputPath:  in,
			OutputPath: path.Join(jsRel, ent.Name),
		})
	}
	return points
}

// entryPlugin loads "pagepack-entry:<name>" as a module importing every
// source of that entry in discovery order.
func (c *Config) entryPlugin() api.Plugin {
	return api.Plugin{
		Name: entryNamespace,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + entryPrefix},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      strings.TrimPrefix(args.Path, entryPrefix),
						Namespace: entryNamespace,
					}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: entryNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					ent, ok := c.entries.Get(args.Path)
					if !ok {
						return api.OnLoadResult{}, os.ErrNotExist
					}
					contents := entryModule(ent.Sources)
					return api.OnLoadResult{
						Contents:   &contents,
						ResolveDir: c.Paths.Dirname,
						Loader:     api.LoaderJS,
					}, nil
				})
		},
	}
}

func entryModule(sources []string) string {
	var b strings.Builder
	for _, src := range sources {
		b.WriteString("import ")
		b.WriteString(strconv.Quote(filepath.ToSlash(src)))
		b.WriteString(";\n")
	}
	return b.String()
}

// imagePlugin inlines images of at most limit bytes as data URLs and emits
// larger ones as files. A limit of zero never inlines.
func imagePlugin(limit int64) api.Plugin {
	return api.Plugin{
		Name: "pagepack-images",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: imageFilter, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					b, err := os.ReadFile(args.Path)
					if err != nil {
						return api.OnLoadResult{}, err
					}
					contents := string(b)
					return api.OnLoadResult{
						Contents: &contents,
						Loader:   imageLoader(int64(len(b)), limit),
					}, nil
				})
		},
	}
}

func imageLoader(size, limit int64) api.Loader {
	if limit > 0 && size <= limit {
		return api.LoaderDataURL
	}
	return api.LoaderFile
}

func relSlash(root, dest string) string {
	rel := relInside(root, dest)
	if rel == "" || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}
