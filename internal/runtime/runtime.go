package runtime

// The generated module code only refers to runtime helpers by name. Each
// module records which helpers it needs in a "Globals" set, and the bundle
// assembly step injects the implementations of exactly those helpers.

import (
	"strings"

	"github.com/esmlink/esmlink/internal/helpers"
)

type Globals uint16

const (
	// "__webpack_require__" itself
	Require Globals = 1 << iota

	// Marks an exports object as an ES module namespace
	MakeNamespaceObject

	// Defines getters for ES module exports
	DefinePropertyGetters

	HasOwnProperty

	// Wraps a non-ESM module so that its default export can be read
	CompatGetDefaultExport

	// Copies the exports of one module onto another for "export * from"
	ExportStar

	// Wraps a module whose evaluation awaits other async modules
	AsyncModule

	globalsEnd
)

const RequireName = "__webpack_require__"

// These are the parameter names of the async module wrapper
const (
	HandleAsyncDependenciesName = "__webpack_handle_async_dependencies__"
	AsyncResultName             = "__webpack_async_result__"
)

var globalsTable = []struct {
	property string
	code     string
	requires Globals
}{
	{"", "", 0},
	{"r", makeNamespaceObjectCode, 0},
	{"d", definePropertyGettersCode, HasOwnProperty},
	{"o", hasOwnPropertyCode, 0},
	{"n", compatGetDefaultExportCode, DefinePropertyGetters},
	{"es", exportStarCode, 0},
	{"a", asyncModuleCode, 0},
}

func entryFor(global Globals) int {
	index := 0
	for bit := Globals(1); bit < globalsEnd; bit <<= 1 {
		if bit == global {
			return index
		}
		index++
	}
	panic("Internal error")
}

// The expression used to reference a single helper in generated code
func (g Globals) Name() string {
	property := globalsTable[entryFor(g)].property
	if property == "" {
		return RequireName
	}
	return RequireName + "." + property
}

func (g Globals) Has(other Globals) bool {
	return g&other == other
}

func (g *Globals) Add(other Globals) {
	*g |= other
}

func (g Globals) Union(other Globals) Globals {
	return g | other
}

func (g Globals) IsEmpty() bool {
	return g == 0
}

// Returns each helper in the set individually, in a stable order
func (g Globals) Split() []Globals {
	var result []Globals
	for bit := Globals(1); bit < globalsEnd; bit <<= 1 {
		if g.Has(bit) {
			result = append(result, bit)
		}
	}
	return result
}

func (g Globals) Names() []string {
	var names []string
	for _, bit := range g.Split() {
		names = append(names, bit.Name())
	}
	return names
}

func (g Globals) String() string {
	return "{" + strings.Join(g.Names(), ", ") + "}"
}

// Adds every helper that the helpers in this set call into
func (g Globals) WithDependencies() Globals {
	for {
		next := g
		for _, bit := range g.Split() {
			next |= globalsTable[entryFor(bit)].requires
		}
		if next == g {
			return g
		}
		g = next
	}
}

// Returns the implementation of every helper in the set (and the helpers
// those depend on) in a stable order. "__webpack_require__" itself is
// provided by the bundle bootstrap and has no code here.
func Code(g Globals) string {
	j := helpers.Joiner{}
	for _, bit := range g.WithDependencies().Split() {
		if code := globalsTable[entryFor(bit)].code; code != "" {
			j.AddString(code)
			j.EnsureNewlineAtEnd()
		}
	}
	return j.Done()
}

const makeNamespaceObjectCode = `__webpack_require__.r = function(exports) {
	if (typeof Symbol !== 'undefined' && Symbol.toStringTag) {
		Object.defineProperty(exports, Symbol.toStringTag, { value: 'Module' });
	}
	Object.defineProperty(exports, '__esModule', { value: true });
};
`

const definePropertyGettersCode = `__webpack_require__.d = function(exports, definition) {
	for (var key in definition) {
		if (__webpack_require__.o(definition, key) && !__webpack_require__.o(exports, key)) {
			Object.defineProperty(exports, key, { enumerable: true, get: definition[key] });
		}
	}
};
`

const hasOwnPropertyCode = `__webpack_require__.o = function(obj, prop) {
	return Object.prototype.hasOwnProperty.call(obj, prop);
};
`

const compatGetDefaultExportCode = `__webpack_require__.n = function(module) {
	var getter = module && module.__esModule ?
		function() { return module['default']; } :
		function() { return module; };
	__webpack_require__.d(getter, { a: getter });
	return getter;
};
`

// Names that already exist on the target win, and "default" is never copied
const exportStarCode = `__webpack_require__.es = function(from, to) {
	Object.keys(from).forEach(function(key) {
		if (key !== 'default' && !Object.prototype.hasOwnProperty.call(to, key)) {
			Object.defineProperty(to, key, { enumerable: true, get: function() { return from[key]; } });
		}
	});
	return from;
};
`

// An async module publishes a promise as its exports. Importers hand their
// async dependencies to "__webpack_handle_async_dependencies__" and rebind the
// import variables to the settled exports before evaluating their own body.
const asyncModuleCode = `var webpackQueues = typeof Symbol === 'function' ? Symbol('webpack queues') : '__webpack_queues__';
var webpackExports = typeof Symbol === 'function' ? Symbol('webpack exports') : '__webpack_exports__';
var webpackError = typeof Symbol === 'function' ? Symbol('webpack error') : '__webpack_error__';
var resolveQueue = function(queue) {
	if (queue && queue.d < 1) {
		queue.d = 1;
		queue.forEach(function(fn) { fn.r--; });
		queue.forEach(function(fn) { fn.r-- ? fn.r++ : fn(); });
	}
};
var wrapDeps = function(deps) {
	return deps.map(function(dep) {
		if (dep !== null && typeof dep === 'object') {
			if (dep[webpackQueues]) return dep;
			if (dep.then) {
				var queue = [];
				queue.d = 0;
				var obj = {};
				dep.then(function(result) {
					obj[webpackExports] = result;
					resolveQueue(queue);
				}, function(error) {
					obj[webpackError] = error;
					resolveQueue(queue);
				});
				obj[webpackQueues] = function(fn) { fn(queue); };
				return obj;
			}
		}
		var ret = {};
		ret[webpackQueues] = function() {};
		ret[webpackExports] = dep;
		return ret;
	});
};
__webpack_require__.a = function(module, body, hasAwait) {
	var queue;
	hasAwait && ((queue = []).d = -1);
	var depQueues = new Set();
	var exports = module.exports;
	var currentDeps;
	var outerResolve;
	var reject;
	var promise = new Promise(function(resolve, rej) {
		reject = rej;
		outerResolve = resolve;
	});
	promise[webpackExports] = exports;
	promise[webpackQueues] = function(fn) {
		queue && fn(queue);
		depQueues.forEach(fn);
		promise['catch'](function() {});
	};
	module.exports = promise;
	body(function(deps) {
		currentDeps = wrapDeps(deps);
		var fn;
		var getResult = function() {
			return currentDeps.map(function(dep) {
				if (dep[webpackError]) throw dep[webpackError];
				return dep[webpackExports];
			});
		};
		var depsPromise = new Promise(function(resolve) {
			fn = function() { resolve(getResult); };
			fn.r = 0;
			var fnQueue = function(q) {
				if (q !== queue && !depQueues.has(q)) {
					depQueues.add(q);
					if (q && !q.d) {
						fn.r++;
						q.push(fn);
					}
				}
			};
			currentDeps.map(function(dep) { dep[webpackQueues](fnQueue); });
		});
		return fn.r ? depsPromise : getResult();
	}, function(error) {
		error ? reject(promise[webpackError] = error) : outerResolve(exports);
		resolveQueue(queue);
	});
	queue && queue.d < 0 && (queue.d = 0);
};
`
