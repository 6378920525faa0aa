package parser

import (
	"regexp"

	"github.com/weftware/weft/internal/types"
)

// Construct patterns. Each construct is matched independently against the
// full source, case-insensitively, and may span lines; the matches are then
// merged by byte offset. Conditions and expression bodies are captured as
// literal, unparsed text.
var (
	ifOpenPattern   = regexp.MustCompile(`(?is)<if\s+(.+?)\s+then>`)
	elseIfPattern   = regexp.MustCompile(`(?is)<else\s*if\s+(.+?)\s+then>`)
	elsePattern     = regexp.MustCompile(`(?i)<else\s*/?>`)
	ifClosePattern  = regexp.MustCompile(`(?i)</if>`)
	funcOpenPattern = regexp.MustCompile(`(?i)<func\s+([A-Za-z_][A-Za-z0-9_]*)\s*>`)
	funcClosePattern = regexp.MustCompile(`(?i)</func>`)
	templateRefPattern = regexp.MustCompile(`(?i)<template\s+([A-Za-z0-9_][A-Za-z0-9_ -]*?)\s*/?>`)
	expressionPattern  = regexp.MustCompile(`(?s)\{=\s*(.+?)\s*\}`)
	setVarPattern      = regexp.MustCompile(`(?is)<setvar\s+([A-Za-z_][A-Za-z0-9_]*)\s*>(.*?)</setvar>`)
)

// construct binds one pattern to the token type it produces and the number
// of captures it carries.
type construct struct {
	pattern  *regexp.Regexp
	tokType  types.TokenType
	captures int
}

// constructs are ordered so that at equal offsets the more specific pattern
// wins (setvar before its inner text, elseif before a bare if at the same
// position can never happen, but the tie-break keeps matching deterministic).
var constructs = []construct{
	{setVarPattern, types.TokenSetVar, 2},
	{elseIfPattern, types.TokenElseIf, 1},
	{ifOpenPattern, types.TokenIfOpen, 1},
	{elsePattern, types.TokenElse, 0},
	{ifClosePattern, types.TokenIfClose, 0},
	{funcOpenPattern, types.TokenFuncOpen, 1},
	{funcClosePattern, types.TokenFuncClose, 0},
	{templateRefPattern, types.TokenTemplateRef, 1},
	{expressionPattern, types.TokenExpression, 1},
}

// syntaxMarkers are cheap substring probes for the fast path. They are
// deliberately loose (no trailing space) so that case variants and
// line-spanning tags still route to the full tokenizer; a false positive
// only costs the regex pass, which then finds no matches.
var syntaxMarkers = []string{
	"<if", "<else", "</if", "<func", "</func", "<template", "<setvar", "{=",
}
