package resolve

import "strings"

// ModuleType is the ESM_FILE_FORMAT classification of a resolved file.
type ModuleType int

const (
	ModuleTypeUnknown ModuleType = iota
	ModuleTypeCommonJS
	ModuleTypeModule
	ModuleTypeJSON
	ModuleTypeWasm
	ModuleTypeAddon
)

func (m ModuleType) String() string {
	switch m {
	case ModuleTypeCommonJS:
		return "CommonJs"
	case ModuleTypeModule:
		return "Module"
	case ModuleTypeJSON:
		return "Json"
	case ModuleTypeWasm:
		return "Wasm"
	case ModuleTypeAddon:
		return "Addon"
	default:
		return "Unknown"
	}
}

// classifyModuleType implements ESM_FILE_FORMAT: the file extension
// dominates for unambiguous extensions; ".js"/".jsx"/".ts"/".tsx" defer to
// the enclosing package.json's "type" field ("module" vs the CommonJS
// default).
func classifyModuleType(path string, packageType string) ModuleType {
	switch {
	case strings.HasSuffix(path, ".mjs") || strings.HasSuffix(path, ".mts"):
		return ModuleTypeModule
	case strings.HasSuffix(path, ".cjs") || strings.HasSuffix(path, ".cts"):
		return ModuleTypeCommonJS
	case strings.HasSuffix(path, ".json"):
		return ModuleTypeJSON
	case strings.HasSuffix(path, ".wasm"):
		return ModuleTypeWasm
	case strings.HasSuffix(path, ".node"):
		return ModuleTypeAddon
	case strings.HasSuffix(path, ".js") || strings.HasSuffix(path, ".jsx") ||
		strings.HasSuffix(path, ".ts") || strings.HasSuffix(path, ".tsx"):
		if packageType == "module" {
			return ModuleTypeModule
		}
		return ModuleTypeCommonJS
	default:
		return ModuleTypeUnknown
	}
}
