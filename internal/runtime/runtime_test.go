package runtime

import (
	"strings"
	"testing"

	"github.com/esmlink/esmlink/internal/test"
)

func TestGlobalsNames(t *testing.T) {
	test.AssertEqual(t, Require.Name(), "__webpack_require__")
	test.AssertEqual(t, ExportStar.Name(), "__webpack_require__.es")
	test.AssertEqual(t, AsyncModule.Name(), "__webpack_require__.a")
	test.AssertEqual(t, CompatGetDefaultExport.Name(), "__webpack_require__.n")

	var g Globals
	test.AssertEqual(t, g.IsEmpty(), true)
	g.Add(ExportStar)
	g.Add(Require)
	g.Add(ExportStar)
	test.AssertEqual(t, g.Has(ExportStar), true)
	test.AssertEqual(t, g.Has(AsyncModule), false)
	test.AssertEqual(t, g.Has(ExportStar|Require), true)
	test.AssertEqual(t, g.String(), "{__webpack_require__, __webpack_require__.es}")
}

func TestWithDependencies(t *testing.T) {
	test.AssertEqual(t, CompatGetDefaultExport.WithDependencies(), CompatGetDefaultExport|DefinePropertyGetters|HasOwnProperty)
	test.AssertEqual(t, ExportStar.WithDependencies(), ExportStar)
}

func TestCode(t *testing.T) {
	test.AssertEqual(t, Code(Require), "")

	code := Code(CompatGetDefaultExport | ExportStar)
	d := strings.Index(code, "__webpack_require__.d = ")
	o := strings.Index(code, "__webpack_require__.o = ")
	n := strings.Index(code, "__webpack_require__.n = ")
	es := strings.Index(code, "__webpack_require__.es = ")
	if d < 0 || o < 0 || n < 0 || es < 0 {
		t.Fatalf("Missing helper in:\n%s", code)
	}
	if !(d < o && o < n && n < es) {
		t.Fatalf("Helpers are not in a stable order:\n%s", code)
	}
	test.AssertEqual(t, strings.Contains(code, "__webpack_require__.a = "), false)

	// The same set always produces the same text
	test.AssertEqual(t, Code(ExportStar|CompatGetDefaultExport), code)
}
