package mathnorm

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBalanced(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		pos       int
		wantInner string
		wantEnd   int
	}{
		{"Nested group", "{a{b}c}", 0, "a{b}c", 7},
		{"Group in the middle", `x^{2}+1`, 2, "2", 5},
		{"Unterminated group returns the rest", "{abc", 0, "abc", 4},
		{"Not at a brace", "abc", 0, "", 0},
		{"Out of range", "{}", 5, "", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner, end := extractBalanced(tt.text, tt.pos)
			assert.Equal(t, tt.wantInner, inner)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestConvertFrac(t *testing.T) {
	r := defaultRules()

	t.Run("Simple fraction", func(t *testing.T) {
		assert.Equal(t,
			`<span class="frac"><span class="num">1</span><span class="den">2</span></span>`,
			r.convertFrac(`\frac{1}{2}`))
	})

	t.Run("Nested numerator", func(t *testing.T) {
		assert.Equal(t,
			`<span class="frac"><span class="num">`+
				`<span class="frac"><span class="num">1</span><span class="den">2</span></span>`+
				`</span><span class="den">3</span></span>`,
			r.convertFrac(`\frac{\frac{1}{2}}{3}`))
	})

	t.Run("Display fraction", func(t *testing.T) {
		assert.Equal(t,
			`<span class="frac"><span class="num">a</span><span class="den">b</span></span>`,
			r.convertFrac(`\dfrac{a}{b}`))
	})

	t.Run("Missing denominator stays literal", func(t *testing.T) {
		assert.Equal(t, `\frac{1}`, r.convertFrac(`\frac{1}`))
		assert.Equal(t, `\frac`, r.convertFrac(`\frac`))
	})

	t.Run("Longer command names are not fractions", func(t *testing.T) {
		assert.Equal(t, `\fraction{1}{2}`, r.convertFrac(`\fraction{1}{2}`))
	})
}

func TestConvertSqrt(t *testing.T) {
	r := defaultRules()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Cube root", `\sqrt[3]{8}`, `<sup>3</sup>√<span class="sqrt-arg">8</span>`},
		{"Square root", `\sqrt{x}`, `√<span class="sqrt-arg">x</span>`},
		{"Nested root", `\sqrt{\sqrt{x}}`, `√<span class="sqrt-arg">√<span class="sqrt-arg">x</span></span>`},
		{"No argument", `\sqrt x`, `\sqrt x`},
		{"Unclosed degree", `\sqrt[3`, `\sqrt[3`},
		{"Unclosed argument", `\sqrt{abc`, `\sqrt{abc`},
		{"Unclosed argument with degree", `\sqrt[3]{abc`, `\sqrt[3]{abc`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.convertSqrt(tt.input))
		})
	}
}

func TestConverter(t *testing.T) {
	c := NewConverter()

	tests := []struct {
		name    string
		latex   string
		display bool
		want    string
	}{
		{"Superscript", `x^{2}+1`, false, `<span class="math-inline">x<sup>2</sup>+1</span>`},
		{"Single char scripts", `\int_0^1 f`, false, `<span class="math-inline">∫<sub>0</sub><sup>1</sup> f</span>`},
		{"Symbol command", `x^\circ`, false, `<span class="math-inline">x<sup>∘</sup></span>`},
		{"Whole word symbols", `\alpha \le \beta`, false, `<span class="math-inline">α ≤ β</span>`},
		{"Sizing commands", `\left( x \right)`, false, `<span class="math-inline">( x )</span>`},
		{"Empty delimiter", `\left. x \right|`, false, `<span class="math-inline">x |</span>`},
		{"Functions", `\sin x + \log y`, false, `<span class="math-inline"><span class="mf">sin</span> x + <span class="mf">log</span> y</span>`},
		{"Escaped braces", `\{x\}`, false, `<span class="math-inline">&#123;x&#125;</span>`},
		{"Literal markup characters", `a < b \& c`, false, `<span class="math-inline">a &lt; b &amp; c</span>`},
		{"Unknown command", `\foo{x}`, false, `<span class="math-inline">x</span>`},
		{"Text style", `\textbf{a}+\text{b}`, false, `<span class="math-inline"><b>a</b>+b</span>`},
		{"Entities and tags", `x&nbsp;&lt;<br>y`, false, `<span class="math-inline">x &lt; y</span>`},
		{"Display wrapper", `x`, true, `<div class="math-display">x</div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Convert(tt.latex, tt.display))
		})
	}
}

func TestConverterEnvironments(t *testing.T) {
	c := NewConverter()

	t.Run("Cases", func(t *testing.T) {
		out := c.Convert(`\begin{cases}x=1\\y=2\end{cases}`, true)
		assert.Contains(t, out, `<table class="cases-table">`)
		assert.Contains(t, out, `<td class="cases-brace" rowspan="2">&#123;</td>`)
		assert.Contains(t, out, `<td class="cases-row">x=1</td>`)
		assert.Contains(t, out, `<td class="cases-row">y=2</td>`)
		assert.True(t, strings.HasPrefix(out, `<div class="math-display">`))
	})

	t.Run("Empty cases", func(t *testing.T) {
		assert.Equal(t, `<div class="math-display"></div>`, c.Convert(`\begin{cases}\end{cases}`, true))
	})

	t.Run("Aligned", func(t *testing.T) {
		out := c.Convert(`\begin{aligned} a &= b \\ c &= d \end{aligned}`, true)
		assert.Contains(t, out,
			`<div class="math-env"><div class="math-row">a = b</div><div class="math-row">c = d</div></div>`)
	})

	t.Run("Aligned markers become a space", func(t *testing.T) {
		out := c.Convert(`\begin{aligned}x&=1\\y&=2\end{aligned}`, true)
		assert.Contains(t, out,
			`<div class="math-env"><div class="math-row">x =1</div><div class="math-row">y =2</div></div>`)
	})

	t.Run("Array", func(t *testing.T) {
		out := c.Convert(`\begin{array}{cc} 1 & 2 \\ \hline 3 & 4 \end{array}`, true)
		assert.Contains(t, out, `<table class="array-table"><tbody>`)
		assert.Contains(t, out, `<tr class="array-row"><td class="array-cell">1</td><td class="array-cell">2</td></tr>`)
		assert.Contains(t, out, `<tr class="array-row"><td class="array-cell">3</td><td class="array-cell">4</td></tr>`)
	})

	t.Run("Nested environments", func(t *testing.T) {
		out := c.Convert(`\begin{aligned} f &= \begin{cases} 1 \\ 0 \end{cases} \end{aligned}`, true)
		assert.Contains(t, out, `<div class="math-env"><div class="math-row">f = <table class="cases-table">`)
		assert.Contains(t, out, `<td class="cases-row">1</td>`)
		assert.Contains(t, out, `<td class="cases-row">0</td>`)
		assert.True(t, defaultRules().tagsBalanced(out))
	})
}

func TestConverterBalancedTags(t *testing.T) {
	c := NewConverter()
	r := defaultRules()

	inputs := []string{
		"",
		`{{{`,
		`}}}`,
		`\frac{1}{`,
		`x^{`,
		`a_{b^{c}`,
		`\sqrt[3`,
		`\sqrt{`,
		`\begin{cases}x`,
		`\end{cases}`,
		`\left(\frac{a}{b}\right.`,
		`\\\\`,
		`\`,
		`^^__`,
		`x^{\frac{1}{2}}_{3}`,
		`\frac{x^{2}{y}`,
		`\textbf{\frac{1}{2}}`,
		`\begin{array}{c} \frac{1}{ \\ 2 \end{array}`,
		`\begin{cases}a\begin{aligned}b\end{cases}c\end{aligned}`,
		`\begin{aligned}\textbf{a\end{aligned} b}`,
		`\begin{array}{\begin{aligned}a}b\end{aligned}\end{array}`,
		`\frac{\begin{aligned}a}{b\end{aligned}}`,
		`x^{\begin{cases}a}\end{cases}`,
	}

	for _, input := range inputs {
		out := c.Convert(input, false)
		assert.True(t, r.tagsBalanced(out), "unbalanced output for %q: %s", input, out)
		assert.True(t, strings.HasPrefix(out, `<span class="math-inline">`))
	}

	t.Run("Random token soup", func(t *testing.T) {
		tokens := []string{
			`\begin{cases}`, `\end{cases}`, `\begin{aligned}`, `\end{aligned}`,
			`\begin{array}{cc}`, `\end{array}`, `\textbf{`, `\mathit{`, `\overline{`,
			`\frac{`, `\sqrt{`, `\sqrt[3]{`, `{`, `}`, `^`, `_`, `&`, `\\`,
			`a`, `x`, ` `, `\alpha`, `\left(`, `\right)`, `\sin`, `<`, `>`, `\{`,
		}
		rng := rand.New(rand.NewPCG(7, 11))
		for i := 0; i < 3000; i++ {
			var b strings.Builder
			for n := 1 + rng.IntN(14); n > 0; n-- {
				b.WriteString(tokens[rng.IntN(len(tokens))])
			}
			input := b.String()
			out := c.Convert(input, i%2 == 0)
			require.True(t, r.tagsBalanced(out), "unbalanced output for %q: %s", input, out)
		}
	})
}

func TestIsDisplayMath(t *testing.T) {
	tests := []struct {
		name     string
		spanHTML string
		latex    string
		want     bool
	}{
		{"Cases environment", "", `\begin{cases}x=1\\y=2\end{cases}`, true},
		{"Plain expression", "", `x^2+1`, false},
		{"Display fraction", "", `\dfrac{1}{2}`, true},
		{"Displaystyle", "", `\displaystyle\sum x`, true},
		{"Double quoted marker", `<span data-display="true">`, `x`, true},
		{"Single quoted marker", `<span data-display='true'>`, `x`, true},
		{"False marker", `<span data-display="false">`, `x`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDisplayMath(tt.spanHTML, tt.latex))
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Empty", "", ""},
		{"Line break inside command", "\\frac{1}\n{125}", `\frac{1} {125}`},
		{"Break tags", `a<br>b<BR />c`, "a b c"},
		{"Entities", `x &lt; y&nbsp;&amp; z`, "x < y & z"},
		{"Surrounding spaces", "  x  ", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}
