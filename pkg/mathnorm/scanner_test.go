package mathnorm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// marker 用于测试的渲染函数，输出易于断言的标记
func marker(span MathSpan) string {
	mode := "i"
	if span.Display {
		mode = "d"
	}
	return "[" + mode + ":" + span.Latex + "]"
}

func TestScannerDialects(t *testing.T) {
	s := NewScanner(DefaultScannerOptions)

	doc := `<p><span data-type="math" data-latex="\frac{a}{b}"></span>` +
		`<span class="math-tex" data-formula="x^2"></span>` +
		`<span class="math-tex">\(y_1\)</span>` +
		`\[z\] $$w$$ \(u\) $v$ and p^{2}q end</p>`

	spans := s.Scan(doc)
	require.Len(t, spans, 8)

	want := []struct {
		dialect Dialect
		latex   string
		display bool
	}{
		{DialectTiptap, `\frac{a}{b}`, false},
		{DialectCKEditorFormula, `x^2`, false},
		{DialectCKEditorBody, `y_1`, false},
		{DialectDisplayBracket, `z`, true},
		{DialectDisplayDollar, `w`, true},
		{DialectInlineParen, `u`, false},
		{DialectInlineDollar, `v`, false},
		{DialectNaked, `p^{2}q`, false},
	}
	for i, w := range want {
		assert.Equal(t, w.dialect, spans[i].Dialect, "span %d", i)
		assert.Equal(t, w.latex, spans[i].Latex, "span %d", i)
		assert.Equal(t, w.display, spans[i].Display, "span %d", i)
	}
	assert.Equal(t, "tiptap", spans[0].Dialect.String())
	assert.Equal(t, `<span class="math-tex">\(y_1\)</span>`, spans[2].Source)
}

func TestScannerRewrite(t *testing.T) {
	s := NewScanner(DefaultScannerOptions)

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "Empty document",
			doc:  "",
			want: "",
		},
		{
			name: "Nested spans inside a math node",
			doc:  `<span data-type="math" data-latex="x^2"><span>x</span><span>2</span></span> tail`,
			want: `[i:x^2] tail`,
		},
		{
			name: "Empty latex attribute is left alone",
			doc:  `<span data-type="math" data-latex=""></span>`,
			want: `<span data-type="math" data-latex=""></span>`,
		},
		{
			name: "Display marker",
			doc:  `<span data-type="math" data-display="true" data-latex="x"></span>`,
			want: `[d:x]`,
		},
		{
			name: "Entities in attributes",
			doc:  `<span class="math-tex" data-latex="a &lt; b"></span>`,
			want: `[i:a < b]`,
		},
		{
			name: "Data latex wins over formula",
			doc:  `<span class="math-tex" data-formula="f" data-latex="l"></span>`,
			want: `[i:l]`,
		},
		{
			name: "Body with display delimiters",
			doc:  `<span class="math-tex">\[<b>x</b>+1\]</span>`,
			want: `[d:x+1]`,
		},
		{
			name: "Line breaks inside delimiters",
			doc:  `\(\frac{1}<br>{125}\)`,
			want: `[i:\frac{1} {125}]`,
		},
		{
			name: "Inline delimiters promoted by content",
			doc:  `\(\displaystyle x\) and $\dfrac{1}{2}$ and \(y\)`,
			want: `[d:\displaystyle x] and [d:\dfrac{1}{2}] and [i:y]`,
		},
		{
			name: "Adjacent inline dollars",
			doc:  `Find $a$$b$.`,
			want: `Find [i:a][i:b].`,
		},
		{
			name: "Escaped dollar is not a delimiter",
			doc:  `costs \$5 and \$6`,
			want: `costs \$5 and \$6`,
		},
		{
			name: "Empty delimiters are preserved",
			doc:  `\( \) and $$ $$`,
			want: `\( \) and $$ $$`,
		},
		{
			name: "Naked latex keeps the trailing period",
			doc:  `the root of 5^{x-4}=\frac{1}{125}.`,
			want: `the root of [i:5^{x-4}=\frac{1}{125}].`,
		},
		{
			name: "Naked dfrac is display",
			doc:  `so \dfrac{1}{2} holds`,
			want: `so [d:\dfrac{1}{2}] holds`,
		},
		{
			name: "Naked latex ignores attributes",
			doc:  `<img alt="x^{2}"> y`,
			want: `<img alt="x^{2}"> y`,
		},
		{
			name: "Naked latex ignores code",
			doc:  `<code>a_{i}</code>`,
			want: `<code>a_{i}</code>`,
		},
		{
			name: "Texttt outside math",
			doc:  `use \texttt{print(x)} here`,
			want: `use <code>print(x)</code> here`,
		},
		{
			name: "Owned containers are skipped",
			doc:  `<span class="math-inline">&#92;&#40;x&#92;&#41;</span>`,
			want: `<span class="math-inline">&#92;&#40;x&#92;&#41;</span>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Rewrite(tt.doc, marker))
		})
	}
}

func TestScannerOptions(t *testing.T) {
	t.Run("Naked detection disabled", func(t *testing.T) {
		s := NewScanner(ScannerOptions{NakedLatex: false, DollarDelimiters: true})
		doc := `the root of 5^{x-4}=\frac{1}{125}.`
		assert.Equal(t, doc, s.Rewrite(doc, marker))
	})

	t.Run("Dollar delimiters disabled", func(t *testing.T) {
		s := NewScanner(ScannerOptions{NakedLatex: true, DollarDelimiters: false})
		assert.Equal(t, `$x$ and [i:y]`, s.Rewrite(`$x$ and \(y\)`, marker))
	})
}

func TestScannerVerbatim(t *testing.T) {
	s := NewScanner(DefaultScannerOptions)

	t.Run("Math tokens are not transformed", func(t *testing.T) {
		out := s.Rewrite(`<p>\begin{verbatim}\frac{1}{2} x^{2} &lt;b&gt;\end{verbatim}</p>`, marker)
		assert.Equal(t,
			`<p><pre class="latex-verbatim"><code>\frac{1}{2} x^{2} &lt;b&gt;</code></pre></p>`, out)
	})

	t.Run("Editor line breaks", func(t *testing.T) {
		out := s.Rewrite(`\begin{verbatim}a<br>b</p><p>c\end{verbatim}`, marker)
		assert.Equal(t, `<pre class="latex-verbatim"><code>a<br>b<br>c</code></pre>`, out)
	})

	t.Run("Delimiters inside verbatim", func(t *testing.T) {
		out := s.Rewrite(`\begin{verbatim}$x$ \(y\)\end{verbatim}`, marker)
		assert.NotContains(t, out, "[i:")
		assert.True(t, strings.HasPrefix(out, `<pre class="latex-verbatim">`))
	})
}

func TestPreserveManager(t *testing.T) {
	t.Run("Protect and restore", func(t *testing.T) {
		pm := NewPreserveManager()
		a := pm.Protect("<b>a</b>")
		b := pm.Protect("$b$")
		assert.NotEqual(t, a, b)

		text := "x " + a + " y " + b + " " + a
		assert.Equal(t, "x <b>a</b> y $b$ <b>a</b>", pm.Restore(text))
	})

	t.Run("Nested placeholders", func(t *testing.T) {
		pm := NewPreserveManager()
		inner := pm.Protect("inner")
		outer := pm.Protect("[" + inner + "]")
		assert.Equal(t, "([inner])", pm.Restore("("+outer+")"))
	})

	t.Run("Unknown placeholders are kept", func(t *testing.T) {
		pm := NewPreserveManager()
		text := placeholderPrefix + "7" + placeholderSuffix
		assert.Equal(t, text, pm.Restore(text))
	})
}
