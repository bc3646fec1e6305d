package header

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/23skdu/longbow-qfix/internal/config"
	"github.com/23skdu/longbow-qfix/internal/tensor"
)

func smallConfig() config.Config {
	cfg := config.Default()
	cfg.InputSize = 3
	cfg.HiddenSize = 2
	cfg.OutputSize = 2
	return cfg
}

const smallHeader = `#ifndef MNIST_WEIGHTS_H
#define MNIST_WEIGHTS_H

// Trained weights, 3 -> 2 -> 2
const float W1[3][2] = {
    {0.1f, -0.2f},
    {1.5e-3f, -4E2f},
    {.5f, 7.f}
};

const float b1[2] = {0.01f, -0.02f};

/* second layer */
const float W2[2][2] = {
    1.0f, 2.0f,
    3.0f, 4.0f,
};
const float b2[2] = {-1.0f, +1.0f};

#endif
`

func TestExtractSmallHeader(t *testing.T) {
	found, err := Extract([]byte(smallHeader), smallConfig())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if err := Require(found, smallConfig()); err != nil {
		t.Fatalf("Require failed: %v", err)
	}

	w1 := found["W1"]
	if !w1.HasShape([]int{3, 2}) {
		t.Fatalf("W1 dims %v", w1.Dims)
	}
	want := []float32{0.1, -0.2, 1.5e-3, -400, 0.5, 7}
	for i, w := range want {
		if w1.Data[i] != float64(w) {
			t.Errorf("W1[%d] = %v, want %v", i, w1.Data[i], float64(w))
		}
	}

	w2 := found["W2"]
	if w2.Row(1)[0] != 3 || w2.Row(0)[1] != 2 {
		t.Errorf("W2 not row-major: %v", w2.Data)
	}
	b2 := found["b2"]
	if b2.Data[0] != -1 || b2.Data[1] != 1 {
		t.Errorf("b2 = %v", b2.Data)
	}
}

func TestFloatDeclarationsUseSinglePrecision(t *testing.T) {
	src := []byte(`float f[1] = {0.1}; double d[1] = {0.1};`)
	decls, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(decls))
	}
	if decls[0].Values[0] != float64(float32(0.1)) {
		t.Errorf("float value %v not rounded to float32", decls[0].Values[0])
	}
	if decls[1].Values[0] != 0.1 {
		t.Errorf("double value %v changed", decls[1].Values[0])
	}
}

func TestDimensionSizedValuesAreKept(t *testing.T) {
	src := []byte("const float b2[10] = {784, 32, 10, 784.0f, 32.0, 10.0f, 0, 0, 0, 1};\n")
	found, err := ExtractSpecs(src, []config.TensorSpec{{Name: "b2", Dims: []int{10}}})
	if err != nil {
		t.Fatalf("ExtractSpecs failed: %v", err)
	}
	b2 := found["b2"]
	if b2.Data[0] != 784 || b2.Data[1] != 32 || b2.Data[2] != 10 || b2.Data[9] != 1 {
		t.Errorf("dimension-valued weights dropped: %v", b2.Data)
	}
}

func TestExtractInsideWrapperBlocks(t *testing.T) {
	tests := []struct {
		name string
		open string
		end  string
	}{
		{"extern C", "#ifdef __cplusplus\nextern \"C\" {\n#endif\n", "#ifdef __cplusplus\n}\n#endif\n"},
		{"namespace", "namespace mnist {\n", "}\n"},
		{"nested", "namespace a { namespace b {\n", "} }\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tt.open + smallHeader + tt.end
			found, err := Extract([]byte(src), smallConfig())
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if err := Require(found, smallConfig()); err != nil {
				t.Fatalf("Require failed: %v", err)
			}
			if !found["W1"].HasShape([]int{3, 2}) {
				t.Errorf("W1 dims %v", found["W1"].Dims)
			}
			if found["b2"].Data[1] != 1 {
				t.Errorf("b2 = %v", found["b2"].Data)
			}
		})
	}
}

func TestWrapperBlockDoesNotLeakIntoType(t *testing.T) {
	decls, err := Parse([]byte(`extern "C" { float b1[2] = {0.5f, 0.25f}; }`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(decls) != 1 || decls[0].Type != "float" {
		t.Fatalf("declarations = %+v", decls)
	}
	if decls[0].ElementBits() != 32 {
		t.Errorf("ElementBits = %d, want 32", decls[0].ElementBits())
	}
}

func TestHexFloatLiterals(t *testing.T) {
	decls, err := Parse([]byte(`const float b1[3] = {0x1p-3f, 0x1.8p1F, 0xff};`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if decls[0].Err != nil {
		t.Fatalf("declaration error: %v", decls[0].Err)
	}
	want := []float64{0.125, 3, 255}
	for i, w := range want {
		if decls[0].Values[i] != w {
			t.Errorf("b1[%d] = %v, want %v", i, decls[0].Values[i], w)
		}
	}
}

func TestMacroDimensions(t *testing.T) {
	src := []byte(`#define HIDDEN_SIZE 2
#define OUTPUT_SIZE (3)
float W2[HIDDEN_SIZE][OUTPUT_SIZE] = {1, 2, 3, 4, 5, 6};
`)
	found, err := ExtractSpecs(src, []config.TensorSpec{{Name: "W2", Dims: []int{2, 3}}})
	if err != nil {
		t.Fatalf("ExtractSpecs failed: %v", err)
	}
	if found["W2"] == nil || found["W2"].Row(1)[2] != 6 {
		t.Errorf("macro-sized declaration not extracted: %+v", found["W2"])
	}
}

func TestMissingDeclaration(t *testing.T) {
	src := strings.Replace(smallHeader, "const float b2[2] = {-1.0f, +1.0f};", "", 1)
	cfg := smallConfig()

	found, err := Extract([]byte(src), cfg)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if _, ok := found["b2"]; ok {
		t.Fatal("b2 should be absent")
	}
	if len(found) != 3 {
		t.Errorf("expected 3 arrays, got %d", len(found))
	}

	err = Require(found, cfg)
	var missing *MissingDeclarationError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingDeclarationError, got %v", err)
	}
	if len(missing.Names) != 1 || missing.Names[0] != "b2" {
		t.Errorf("missing names = %v, want [b2]", missing.Names)
	}
}

func TestShapeMismatch(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"too few literals", `float b1[2] = {1.0};`},
		{"too many literals", `float b1[2] = {1.0, 2.0, 3.0};`},
		{"wrong dimensions", `float b1[3] = {1.0, 2.0, 3.0};`},
		{"wrong rank", `float b1[1][2] = {1.0, 2.0};`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractSpecs([]byte(tt.src), []config.TensorSpec{{Name: "b1", Dims: []int{2}}})
			var sm *tensor.ShapeMismatchError
			if !errors.As(err, &sm) {
				t.Fatalf("expected ShapeMismatchError, got %v", err)
			}
			if sm.Name != "b1" {
				t.Errorf("error names %q, want b1", sm.Name)
			}
		})
	}
}

func TestUnparseableLiteral(t *testing.T) {
	tests := []struct {
		name string
		src  string
		tok  string
	}{
		{"identifier in body", "float b1[2] = {1.0,\n oops};", "oops"},
		{"malformed number", "float b1[2] = {1.0, 1.2.3};", "1.2.3"},
		{"missing comma", "float b1[2] = {1.0 2.0};", "2.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractSpecs([]byte(tt.src), []config.TensorSpec{{Name: "b1", Dims: []int{2}}})
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if pe.Name != "b1" || pe.Token != tt.tok {
				t.Errorf("ParseError = %+v", pe)
			}
		})
	}
}

func TestBrokenUnrelatedDeclarationIsIgnored(t *testing.T) {
	src := []byte(`static const int lut[2] = {A, B};
float b1[2] = {1, 2};`)
	found, err := ExtractSpecs(src, []config.TensorSpec{{Name: "b1", Dims: []int{2}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found["b1"] == nil {
		t.Fatal("b1 not extracted after broken declaration")
	}
}

func TestLexicalErrors(t *testing.T) {
	for _, src := range []string{"float b1[2] = {1, 2}; /* open", `const char *s = "open`} {
		if _, err := Parse([]byte(src)); err == nil {
			t.Errorf("expected error for %q", src)
		}
	}
}

func TestParseIgnoresNonInitializedArrays(t *testing.T) {
	src := []byte(`extern float scratch[16];
static const char *labels[] = {"zero", "one"};
int32_t acc[4] = {0};
void f(void) { float local[2] = {9, 9}; }
`)
	decls, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(decls) != 1 || decls[0].Name != "acc" || decls[0].Type != "int32_t" {
		t.Fatalf("unexpected declarations: %+v", decls)
	}
}

func TestParseIntegerHeader(t *testing.T) {
	src := []byte(`const int32_t W1_fp[2][2] = {
    {65536, -65536},
    {32768, 2147483647}
};
const int32_t b1_fp[3] = {0, 7, -7};
const int32_t lo[1] = {-2147483648};
`)
	decls, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(decls) != 3 {
		t.Fatalf("expected 3 declarations, got %d", len(decls))
	}
	if decls[0].Values[3] != 2147483647 {
		t.Errorf("W1_fp[1][1] = %v", decls[0].Values[3])
	}
	if decls[2].Values[0] != math.MinInt32 {
		t.Errorf("lo = %v", decls[2].Values[0])
	}
}

func TestExtractFileNotFound(t *testing.T) {
	_, err := ExtractFile(filepath.Join(t.TempDir(), "missing.h"), smallConfig())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.h")
	if err := os.WriteFile(path, []byte(smallHeader), 0o644); err != nil {
		t.Fatal(err)
	}
	found, err := ExtractFile(path, smallConfig())
	if err != nil {
		t.Fatalf("ExtractFile failed: %v", err)
	}
	if len(found) != 4 {
		t.Errorf("expected 4 arrays, got %d", len(found))
	}
}

func TestParseErrorMessage(t *testing.T) {
	err := &ParseError{Name: "W1", Line: 3, Col: 7, Token: "x", Msg: "unexpected identifier, expected numeric literal"}
	want := `parse error at 3:7 in W1: unexpected identifier, expected numeric literal "x"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
