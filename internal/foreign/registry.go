package foreign

// Native function modules. Each builder returns a prepared module exposing
// handle definitions and native functions; the embedder attaches the enabled
// ones as imported namespaces.

import (
	"comp/internal/config"
	"comp/internal/module"
)

// Modules builds the enabled native modules keyed by namespace name.
func Modules(cfg config.ForeignModules) map[string]*module.Module {
	out := map[string]*module.Module{}
	if cfg.DB {
		out["sql"] = DB()
	}
	if cfg.Store {
		out["store"] = Store()
	}
	if cfg.Codec {
		out["codec"] = Codec()
	}
	return out
}
