package plugin

// ModuleDirFunc is the function every asset shim calls to locate assets
// next to the importing module.
const ModuleDirFunc = "__GetModuleDir"

const (
	devModuleDirHelper = "var __moduleDir__;" +
		"function __GetModuleDir() {return __moduleDir__ || (__moduleDir__ = import.meta.url.substring(0, import.meta.url.lastIndexOf('/') + 1));}"

	prodModuleDirHelper = "const __moduleDir__ = import.meta.url.substring(0, import.meta.url.lastIndexOf('/') + 1);" +
		"function __GetModuleDir() {return __moduleDir__;}"
)

// ModuleDirHelper returns the definition of __GetModuleDir. The production
// form captures the module URL once at load; the development form computes
// it lazily on first call.
func ModuleDirHelper(prod bool) string {
	if prod {
		return prodModuleDirHelper
	}
	return devModuleDirHelper
}

// InjectHelper adds the module-dir helper to a rewritten script. Production
// output gets it prepended so the constant is initialized before use;
// development output gets it appended, relying on function hoisting.
func InjectHelper(code string, prod bool) string {
	if prod {
		return ModuleDirHelper(true) + "\n" + code
	}
	return code + "\n" + ModuleDirHelper(false)
}
