package mathnorm

import (
	"regexp"
	"strings"
	"sync"
)

// 转换过程中使用的私有区字符。它们在最后一步被替换为实体，
// 因此不会被花括号清理或命令清理误删。
const (
	sentLT     = "\uE010"
	sentGT     = "\uE011"
	sentAmp    = "\uE012"
	sentLBrace = "\uE013"
	sentRBrace = "\uE014"
	sentUnder  = "\uE015"
	sentDollar = "\uE016"
)

const (
	thinSpace  = "\u2009"
	thickSpace = "\u2004"
	nbsp       = "\u00a0"
)

// mathSymbols 控制序列 → Unicode 字符
var mathSymbols = map[string]string{
	// 运算符与关系
	"times": "×", "div": "÷", "pm": "±", "mp": "∓",
	"cdot": "·", "neq": "≠", "ne": "≠", "leq": "≤", "le": "≤", "geq": "≥", "ge": "≥",
	"leqslant": "≤", "geqslant": "≥", "lt": sentLT, "gt": sentGT,
	"approx": "≈", "sim": "∼", "simeq": "≃", "cong": "≅", "equiv": "≡",
	"propto": "∝", "ll": "≪", "gg": "≫", "perp": "⊥", "parallel": "∥",
	"mid": "∣", "nmid": "∤", "infty": "∞", "partial": "∂", "nabla": "∇",
	"int": "∫", "oint": "∮", "sum": "∑", "prod": "∏", "angle": "∠", "triangle": "△",
	"degree": "°", "prime": "′", "star": "⋆", "ast": "∗",

	// 逻辑与集合
	"exists": "∃", "forall": "∀", "in": "∈", "notin": "∉", "ni": "∋",
	"subset": "⊂", "supset": "⊃", "subseteq": "⊆", "supseteq": "⊇",
	"cup": "∪", "cap": "∩", "emptyset": "∅", "varnothing": "∅", "setminus": "∖",
	"land": "∧", "wedge": "∧", "lor": "∨", "vee": "∨", "neg": "¬", "lnot": "¬",
	"oplus": "⊕", "otimes": "⊗",

	// 箭头
	"rightarrow": "→", "leftarrow": "←", "to": "→", "gets": "←",
	"Rightarrow": "⇒", "Leftarrow": "⇐", "leftrightarrow": "↔", "Leftrightarrow": "⇔",
	"implies": "⟹", "iff": "⟺", "mapsto": "↦", "uparrow": "↑", "downarrow": "↓",

	// 希腊字母
	"alpha": "α", "beta": "β", "gamma": "γ", "delta": "δ",
	"epsilon": "ε", "varepsilon": "ε", "zeta": "ζ", "eta": "η", "theta": "θ",
	"vartheta": "ϑ", "iota": "ι", "kappa": "κ", "lambda": "λ", "mu": "μ", "nu": "ν",
	"xi": "ξ", "pi": "π", "rho": "ρ", "sigma": "σ", "tau": "τ", "upsilon": "υ",
	"phi": "φ", "varphi": "φ", "chi": "χ", "psi": "ψ", "omega": "ω",
	"Gamma": "Γ", "Delta": "Δ", "Theta": "Θ", "Lambda": "Λ", "Xi": "Ξ",
	"Pi": "Π", "Sigma": "Σ", "Upsilon": "Υ", "Phi": "Φ", "Psi": "Ψ", "Omega": "Ω",

	// 其他
	"circ": "∘", "bullet": "•", "ldots": "…", "dots": "…", "cdots": "⋯",
	"vdots": "⋮", "ddots": "⋱",
	"qquad": nbsp + nbsp, "quad": nbsp,
}

// punctSymbols 单字符控制序列
var punctSymbols = map[string]string{
	" ": " ",
	",": thinSpace,
	";": thickSpace,
	"%": "%",
	"#": "#",
}

// mathFunctions 以正体显示的函数名
var mathFunctions = []string{
	"arcsin", "arccos", "arctan", "arccot",
	"sinh", "cosh", "tanh", "coth",
	"sin", "cos", "tan", "cot", "sec", "csc",
	"ln", "log", "lg", "exp",
	"lim", "max", "min", "sup", "inf",
	"gcd", "lcm", "det", "dim", "ker", "tr",
}

// bracketCommands 括号类命令
var bracketCommands = map[string]string{
	"langle": "⟨", "rangle": "⟩",
	"lbrace": sentLBrace, "rbrace": sentRBrace,
	"lvert": "|", "rvert": "|", "lVert": "‖", "rVert": "‖", "vert": "|", "Vert": "‖",
	"lfloor": "⌊", "rfloor": "⌋", "lceil": "⌈", "rceil": "⌉",
}

// thinSpaceCommands 残留的间距命令
var thinSpaceCommands = map[string]bool{
	"!": true, ":": true, ",": true, ";": true,
	"thinspace": true, "medspace": true, "thickspace": true,
}

// styleCommands 直接删除的样式命令
var styleCommands = map[string]bool{
	"displaystyle": true, "textstyle": true, "scriptstyle": true,
	"scriptscriptstyle": true, "limits": true, "nolimits": true,
}

// styleRule 文本样式命令的替换规则
type styleRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules 转换器和扫描器共享的只读查表数据，进程内只构建一次
type rules struct {
	symbols    map[string]string
	punct      map[string]string
	functions  map[string]bool
	brackets   map[string]string
	thinSpaces map[string]bool
	styles     map[string]bool

	styleRules []styleRule

	htmlTag      *regexp.Regexp
	brTag        *regexp.Regexp
	newlines     *regexp.Regexp
	spaces       *regexp.Regexp
	multiSpace   *regexp.Regexp
	escapedChar  *regexp.Regexp
	command      *regexp.Regexp
	commandDot   *regexp.Regexp
	powerSingle  *regexp.Regexp
	indexSingle  *regexp.Regexp
	powerCommand *regexp.Regexp
	indexCommand *regexp.Regexp
	rowSplit     *regexp.Regexp
	texttt       *regexp.Regexp
	anyTag       *regexp.Regexp

	outputEscaper *strings.Replacer
}

// defaultRules 全局共享的规则表
var defaultRules = sync.OnceValue(newRules)

// newRules 编译所有正则与查表
func newRules() *rules {
	functions := make(map[string]bool, len(mathFunctions))
	for _, name := range mathFunctions {
		functions[name] = true
	}

	return &rules{
		symbols:    mathSymbols,
		punct:      punctSymbols,
		functions:  functions,
		brackets:   bracketCommands,
		thinSpaces: thinSpaceCommands,
		styles:     styleCommands,

		styleRules: []styleRule{
			{regexp.MustCompile(`\\textbf\{([^{}]+)\}`), `<b>${1}</b>`},
			{regexp.MustCompile(`\\textit\{([^{}]+)\}`), `<i>${1}</i>`},
			{regexp.MustCompile(`\\texttt\{([^{}]*(?:\{[^{}]*\}[^{}]*)*)\}`), `<code>${1}</code>`},
			{regexp.MustCompile(`\\operatorname\{([^{}]+)\}`), `<span class="mf">${1}</span>`},
			{regexp.MustCompile(`\\(?:text|textrm|mathrm)\{([^{}]+)\}`), `${1}`},
			{regexp.MustCompile(`\\mathbf\{([^{}]+)\}`), `<b>${1}</b>`},
			{regexp.MustCompile(`\\mathit\{([^{}]+)\}`), `<i>${1}</i>`},
			{regexp.MustCompile(`\\overline\{([^{}]+)\}`), `<span style="text-decoration:overline">${1}</span>`},
			{regexp.MustCompile(`\\underline\{([^{}]+)\}`), `<u>${1}</u>`},
		},

		htmlTag:      regexp.MustCompile(`</?[a-zA-Z][^<>]*>`),
		brTag:        regexp.MustCompile(`(?i)<br\s*/?>`),
		newlines:     regexp.MustCompile(`[\r\n]+`),
		spaces:       regexp.MustCompile(`[ \t\x{00a0}]{2,}`),
		multiSpace:   regexp.MustCompile(` {2,}`),
		escapedChar:  regexp.MustCompile(`\\[\\{}&_$]`),
		command:      regexp.MustCompile(`\\(?:[a-zA-Z]+|.)`),
		commandDot:   regexp.MustCompile(`\\([a-zA-Z]+)(\s*\.)?`),
		powerSingle:  regexp.MustCompile(`\^([0-9a-zA-Zα-ωΑ-Ω])`),
		indexSingle:  regexp.MustCompile(`_([0-9a-zA-Zα-ωΑ-Ω])`),
		powerCommand: regexp.MustCompile(`\^\\([a-zA-Z]+)`),
		indexCommand: regexp.MustCompile(`_\\([a-zA-Z]+)`),
		rowSplit:     regexp.MustCompile(`\\\\`),
		texttt:       regexp.MustCompile(`\\texttt\{([^{}]*(?:\{[^{}]*\}[^{}]*)*)\}`),
		anyTag:       regexp.MustCompile(`<(/?)([a-zA-Z][a-zA-Z0-9]*)[^<>]*?(/?)>`),

		outputEscaper: strings.NewReplacer(
			"&", "&amp;",
			"$", "&#36;",
			sentLT, "&lt;",
			sentGT, "&gt;",
			sentAmp, "&amp;",
			sentLBrace, "&#123;",
			sentRBrace, "&#125;",
			sentUnder, "_",
			sentDollar, "&#36;",
		),
	}
}
