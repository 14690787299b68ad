package models

// Module is one learning module a user can mark complete.
type Module struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

var Modules = []Module{
	{
		Key:         "typescript",
		Title:       "TypeScript Fundamentals",
		Path:        "/typescript",
		Description: "The TypeScript type system, interfaces, classes, generics, and async/await.",
	},
	{
		Key:         "playwright",
		Title:       "Playwright Essentials",
		Path:        "/playwright",
		Description: "Browser automation with Playwright: locators, interactions, assertions and configuration.",
	},
	{
		Key:         "pom",
		Title:       "Page Object Model",
		Path:        "/pom",
		Description: "Organizing test code into maintainable, reusable page objects.",
	},
	{
		Key:         "k6",
		Title:       "Performance Testing with K6",
		Path:        "/k6",
		Description: "Load, stress and soak tests written in JavaScript and run with K6.",
	},
	{
		Key:         "postman",
		Title:       "API Testing with Postman",
		Path:        "/postman",
		Description: "Collections, environments, test scripts and Newman runs.",
	},
	{
		Key:         "qaci",
		Title:       "QA in CI/CD",
		Path:        "/qaci",
		Description: "Running test suites in pipelines, reporting and quality gates.",
	},
}

// Progress maps a module key to its completion flag.
type Progress map[string]bool

func ModuleKeys() []string {
	keys := make([]string, len(Modules))
	for i, m := range Modules {
		keys[i] = m.Key
	}
	return keys
}

func IsModuleKey(key string) bool {
	for _, m := range Modules {
		if m.Key == key {
			return true
		}
	}
	return false
}

func ModuleByPath(path string) (Module, bool) {
	for _, m := range Modules {
		if m.Path == path {
			return m, true
		}
	}
	return Module{}, false
}

// DefaultProgress returns every known module set to false.
func DefaultProgress() Progress {
	p := make(Progress, len(Modules))
	for _, m := range Modules {
		p[m.Key] = false
	}
	return p
}

func (p Progress) Clone() Progress {
	out := make(Progress, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (p Progress) CompletedCount() int {
	n := 0
	for _, m := range Modules {
		if p[m.Key] {
			n++
		}
	}
	return n
}
