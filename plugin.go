package fimo

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"

	"github.com/fimoengine/fimo-go/internal/abidecl"
	"github.com/fimoengine/fimo-go/internal/loadset"
)

// ModuleMarkerFile is the directory-marker file name spec.md §6 names as
// the alternative discovery mechanism to the linker-section iterator:
// "a file named module.fimo_module in a directory."
const ModuleMarkerFile = "module.fimo_module"

// ExportsSymbolName is the package-level symbol every module binary built
// with `go build -buildmode=plugin` must export: a niladic function
// returning the binary's export declarations. This is this repository's
// Go-native analogue of the linker-section iterator spec.md §6 describes
// — Go has no equivalent of scanning a named linker section at runtime,
// but plugin.Open/plugin.Lookup solve the same "find declarations in a
// separately compiled binary" problem.
const ExportsSymbolName = "FimoExports"

// ExportsFromPlugin loads every export declaration a plugin advertises by
// looking up a niladic `func() []*fimo.ExportDecl` symbol named symbol
// (ExportsSymbolName, by convention) and invoking it.
func ExportsFromPlugin(p *plugin.Plugin, symbol string) ([]*ExportDecl, error) {
	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("fimo: plugin has no %q symbol: %w", symbol, err)
	}
	fn, ok := sym.(func() []*abidecl.ExportDecl)
	if !ok {
		return nil, fmt.Errorf("fimo: plugin symbol %q has the wrong type (want func() []*fimo.ExportDecl)", symbol)
	}
	return fn(), nil
}

// pluginPathDiscover resolves path to a loadset.DiscoverFunc. If path is a
// directory containing ModuleMarkerFile, the first *.so file in that
// directory is treated as the module's plugin binary; otherwise path
// itself must be a *.so file. The plugin is opened exactly once, lazily,
// the first time the returned DiscoverFunc is actually invoked.
func pluginPathDiscover(path string) (loadset.DiscoverFunc, error) {
	soPath, err := resolvePluginPath(path)
	if err != nil {
		return nil, err
	}
	return func() ([]*abidecl.ExportDecl, error) {
		p, err := plugin.Open(soPath)
		if err != nil {
			return nil, fmt.Errorf("fimo: opening plugin %q: %w", soPath, err)
		}
		return ExportsFromPlugin(p, ExportsSymbolName)
	}, nil
}

func resolvePluginPath(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("fimo: resolving module path %q: %w", path, err)
	}
	if !fi.IsDir() {
		return path, nil
	}
	if _, err := os.Stat(filepath.Join(path, ModuleMarkerFile)); err != nil {
		return "", fmt.Errorf("fimo: directory %q has no %s marker", path, ModuleMarkerFile)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("fimo: reading module directory %q: %w", path, err)
	}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".so" {
			return filepath.Join(path, e.Name()), nil
		}
	}
	return "", fmt.Errorf("fimo: directory %q has a %s marker but no .so plugin", path, ModuleMarkerFile)
}
