package security

// Category names the functional grouping of a base allow-list entry. The
// grouping is purely descriptive; the policy decision is set membership.
type Category string

const (
	CategoryString     Category = "string"
	CategoryCollection Category = "collection"
	CategoryArithmetic Category = "arithmetic"
	CategoryDateTime   Category = "datetime"
	CategoryTypeCheck  Category = "typecheck"
	CategoryLogic      Category = "logic"
)

// baseAllowByCategory is the fixed base allow-list, organized by category.
// Pure data: the policy never inspects behavior, only names. Functions that
// accept callbacks (array_map, usort, preg_replace_callback and friends) are
// deliberately absent since a callback smuggles an arbitrary call past the
// identifier scan.
var baseAllowByCategory = map[Category][]string{
	CategoryString: {
		"strtoupper", "strtolower", "ucfirst", "ucwords", "lcfirst",
		"trim", "ltrim", "rtrim",
		"substr", "strlen", "strpos", "strrpos", "strrev",
		"str_replace", "str_pad", "str_repeat", "str_contains",
		"str_starts_with", "str_ends_with",
		"sprintf", "number_format", "wordwrap", "nl2br",
		"htmlspecialchars", "htmlentities", "strip_tags",
	},
	CategoryCollection: {
		"count", "in_array", "array_key_exists", "array_keys",
		"array_values", "array_merge", "array_slice", "array_reverse",
		"array_unique", "array_sum", "array_flip",
		"implode", "explode", "join", "range",
	},
	CategoryArithmetic: {
		"abs", "ceil", "floor", "round", "intdiv", "fmod",
		"pow", "sqrt", "min", "max",
	},
	CategoryDateTime: {
		"date", "time", "mktime", "strtotime", "checkdate", "date_diff",
	},
	CategoryTypeCheck: {
		"is_array", "is_string", "is_numeric", "is_int", "is_float",
		"is_bool", "is_null", "gettype",
		"intval", "floatval", "strval", "boolval",
	},
	CategoryLogic: {
		"isset", "empty",
	},
}

// Categories returns the base allow-list categories in stable order.
func Categories() []Category {
	return []Category{
		CategoryString,
		CategoryCollection,
		CategoryArithmetic,
		CategoryDateTime,
		CategoryTypeCheck,
		CategoryLogic,
	}
}

// AllowedByCategory returns a copy of the base allow-list entries for one
// category.
func AllowedByCategory(c Category) []string {
	src := baseAllowByCategory[c]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func baseAllowSet() map[string]struct{} {
	set := make(map[string]struct{})
	for _, names := range baseAllowByCategory {
		for _, name := range names {
			set[name] = struct{}{}
		}
	}
	return set
}
