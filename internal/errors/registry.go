package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
	DocURL     string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Runtime Errors (R001-R019)
	// ============================================

	"R001": {
		Category:   CategoryEffect,
		Message:    "Dependency arity changed",
		Detail:     "An effect position declared a dependency list of a different length, or switched between absent, empty and explicit lists, between two evaluations. Its stored cleanup can no longer be matched to the right dependencies, so the instance stops evaluating.",
		Suggestion: "Keep the dependency list of each effect the same shape on every evaluation, or set runtime.arityPolicy to \"warn\".",
		DocURL:     "https://reactor.dev/docs/errors/R001",
	},
	"R002": {
		Category:   CategoryScheduler,
		Message:    "Update to unmounted instance",
		Detail:     "A state update targeted an instance that was never mounted or has already been unmounted. The update was dropped.",
		Suggestion: "Cancel timers and subscriptions in the effect's cleanup so they cannot update an unmounted instance.",
		DocURL:     "https://reactor.dev/docs/errors/R002",
	},
	"R003": {
		Category:   CategoryPortal,
		Message:    "Portal target missing",
		Detail:     "Output was routed to a portal key that has no bound target, or the binding was removed before commit.",
		Suggestion: "Bind the target with BindPortalTarget before mounting instances that route to it.",
		DocURL:     "https://reactor.dev/docs/errors/R003",
	},
	"R004": {
		Category:   CategoryScheduler,
		Message:    "Re-evaluation did not settle",
		Detail:     "Instances kept marking each other dirty for more ticks than runtime.maxTickIterations allows.",
		Suggestion: "Guard state updates in effects with a dependency list, or only update when the value actually changes.",
		DocURL:     "https://reactor.dev/docs/errors/R004",
	},
	"R005": {
		Category:   CategoryEffect,
		Message:    "Hook order changed",
		Detail:     "An evaluation declared a different number of state slots, refs or effects than the first evaluation. Hooks are matched by position, so they must not be declared conditionally.",
		Suggestion: "Declare every hook unconditionally at the top of Evaluate.",
		DocURL:     "https://reactor.dev/docs/errors/R005",
	},
	"R006": {
		Category: CategoryEffect,
		Message:  "Effect callback failed",
		Detail:   "An effect or cleanup callback returned an error or panicked. The instance's pass was aborted and it will not evaluate again.",
		DocURL:   "https://reactor.dev/docs/errors/R006",
	},
	"R007": {
		Category: CategoryRuntime,
		Message:  "Evaluation failed",
		Detail:   "Evaluate returned an error or panicked. The instance will not evaluate again; other instances are unaffected.",
		DocURL:   "https://reactor.dev/docs/errors/R007",
	},
	"R008": {
		Category:   CategoryRuntime,
		Message:    "State slot out of range",
		Detail:     "An update or read referred to a state slot the instance never declared.",
		Suggestion: "Use the Setter returned by UseState instead of raw slot indices.",
		DocURL:     "https://reactor.dev/docs/errors/R008",
	},
	"R009": {
		Category: CategoryRuntime,
		Message:  "Instance has failed",
		Detail:   "The instance stopped evaluating after an earlier failure and no longer accepts updates. Unmount it and mount a new instance.",
		DocURL:   "https://reactor.dev/docs/errors/R009",
	},
	"R010": {
		Category: CategoryRuntime,
		Message:  "Commit failed",
		Detail:   "The host committer rejected the instance's render output.",
		DocURL:   "https://reactor.dev/docs/errors/R010",
	},

	// ============================================
	// Config Errors (R020-R039)
	// ============================================

	"R020": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be parsed.",
		DocURL:   "https://reactor.dev/docs/errors/R020",
	},
	"R021": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration value",
		Detail:     "A configuration field has a value outside its allowed set.",
		Suggestion: "runtime.arityPolicy must be \"fatal\" or \"warn\"; log.level one of debug, info, warn, error; log.format text or json.",
		DocURL:     "https://reactor.dev/docs/errors/R021",
	},
	"R022": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No reactor.json or reactor.yaml was found at the given path.",
		DocURL:   "https://reactor.dev/docs/errors/R022",
	},

	// ============================================
	// CLI Errors (R040-R059)
	// ============================================

	"R040": {
		Category:   CategoryCLI,
		Message:    "Unknown demo",
		Detail:     "The requested demo scenario does not exist.",
		Suggestion: "Run one of: counter, debounce, portal, users, all.",
		DocURL:     "https://reactor.dev/docs/errors/R040",
	},
	"R041": {
		Category: CategoryCLI,
		Message:  "Invalid benchmark parameters",
		Detail:   "Instance and update counts must be positive.",
		DocURL:   "https://reactor.dev/docs/errors/R041",
	},
}

// GetAllCodes returns all registered error codes in ascending order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
